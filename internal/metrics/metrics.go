package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	HedgeRequests   Counter
	OrdersCreated   Counter
	OrdersFulfilled Counter
	OrdersExited    Counter
	OrdersFailed    Counter
	OrdersDropped   Counter
	KeeperPolls     Counter
	KeeperErrors    Counter
	KeeperRetries   Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		HedgeRequests:   n,
		OrdersCreated:   n,
		OrdersFulfilled: n,
		OrdersExited:    n,
		OrdersFailed:    n,
		OrdersDropped:   n,
		KeeperPolls:     n,
		KeeperErrors:    n,
		KeeperRetries:   n,
	}
}
