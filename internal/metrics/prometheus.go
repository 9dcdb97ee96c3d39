package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "range_hedger"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry        *prometheus.Registry
	hedgeRequests   prometheus.Counter
	ordersCreated   prometheus.Counter
	ordersFulfilled prometheus.Counter
	ordersExited    prometheus.Counter
	ordersFailed    prometheus.Counter
	ordersDropped   prometheus.Counter
	keeperPolls     prometheus.Counter
	keeperErrors    prometheus.Counter
	keeperRetries   prometheus.Counter
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	hedgeRequests := newCounter("hedge_requests_total", "Total number of hedge delta requests.")
	ordersCreated := newCounter("orders_created_total", "Total number of range orders minted.")
	ordersFulfilled := newCounter("orders_fulfilled_total", "Total number of filled range orders harvested.")
	ordersExited := newCounter("orders_exited_total", "Total number of range orders exited before fill.")
	ordersFailed := newCounter("orders_failed_total", "Total number of failed order operations.")
	ordersDropped := newCounter("orders_dropped_total", "Total number of restored orders dropped because the pool no longer held them.")
	keeperPolls := newCounter("keeper_polls_total", "Total number of keeper poll iterations.")
	keeperErrors := newCounter("keeper_errors_total", "Total number of keeper poll failures.")
	keeperRetries := newCounter("keeper_retries_total", "Total number of retried keeper source reads.")

	registry.MustRegister(hedgeRequests, ordersCreated, ordersFulfilled, ordersExited, ordersFailed, ordersDropped, keeperPolls, keeperErrors, keeperRetries)

	m := &Metrics{
		HedgeRequests:   promCounter{hedgeRequests},
		OrdersCreated:   promCounter{ordersCreated},
		OrdersFulfilled: promCounter{ordersFulfilled},
		OrdersExited:    promCounter{ordersExited},
		OrdersFailed:    promCounter{ordersFailed},
		OrdersDropped:   promCounter{ordersDropped},
		KeeperPolls:     promCounter{keeperPolls},
		KeeperErrors:    promCounter{keeperErrors},
		KeeperRetries:   promCounter{keeperRetries},
	}

	return &Prometheus{
		Metrics:         m,
		registry:        registry,
		hedgeRequests:   hedgeRequests,
		ordersCreated:   ordersCreated,
		ordersFulfilled: ordersFulfilled,
		ordersExited:    ordersExited,
		ordersFailed:    ordersFailed,
		ordersDropped:   ordersDropped,
		keeperPolls:     keeperPolls,
		keeperErrors:    keeperErrors,
		keeperRetries:   keeperRetries,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
