package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rangeHedger/internal/rangeorder"
)

// ErrExpectation reports a step whose outcome differs from the script.
var ErrExpectation = errors.New("expectation failed")

type action func(ctx context.Context, env *Environment, step Step) error

var actions map[string]action

func init() {
	actions = map[string]action{
		"hedge":                  doHedge,
		"price":                  doPrice,
		"fulfill":                doFulfill,
		"exit":                   doExit,
		"withdraw":               doWithdraw,
		"recover":                doRecover,
		"set_fee":                doSetFee,
		"set_authorized_fulfill": doSetAuthorizedFulfill,
		"check":                  func(context.Context, *Environment, Step) error { return nil },
	}
}

// StepResult is the engine's state after a step.
type StepResult struct {
	Index     int    `json:"index"`
	Action    string `json:"action"`
	State     string `json:"state"`
	LowerTick int    `json:"lower_tick"`
	UpperTick int    `json:"upper_tick"`
	PoolPrice string `json:"pool_price"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	Name  string       `json:"name"`
	Steps []StepResult `json:"steps"`
}

// Run executes the steps in order and stops at the first unmet expectation.
func Run(ctx context.Context, env *Environment, f *File, logger *zap.Logger) (Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := Report{Name: f.Name}
	for i, step := range f.Steps {
		act, ok := actions[step.Action]
		if !ok {
			return report, fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}

		stepErr := act(ctx, env, step)
		result, err := snapshot(ctx, env, i, step.Action)
		if err != nil {
			return report, fmt.Errorf("step %d: %w", i, err)
		}
		if stepErr != nil {
			if result.Error = rangeorder.ErrorName(stepErr); result.Error == "" {
				result.Error = stepErr.Error()
			}
		}
		report.Steps = append(report.Steps, result)

		logger.Info("scenario step",
			zap.Int("index", i),
			zap.String("action", step.Action),
			zap.String("state", result.State),
			zap.Int("lower_tick", result.LowerTick),
			zap.Int("upper_tick", result.UpperTick),
			zap.String("pool_price", result.PoolPrice),
			zap.String("error", result.Error),
		)

		switch {
		case step.ExpectError != "" && stepErr == nil:
			return report, fmt.Errorf("step %d %s: %w: expected error %s", i, step.Action, ErrExpectation, step.ExpectError)
		case step.ExpectError != "" && result.Error != step.ExpectError:
			return report, fmt.Errorf("step %d %s: %w: expected error %s, got %v", i, step.Action, ErrExpectation, step.ExpectError, stepErr)
		case step.ExpectError == "" && stepErr != nil:
			return report, fmt.Errorf("step %d %s: %w", i, step.Action, stepErr)
		}

		if step.Expect != nil {
			if err := check(ctx, env, result, *step.Expect); err != nil {
				return report, fmt.Errorf("step %d %s: %w", i, step.Action, err)
			}
		}
	}
	return report, nil
}

func snapshot(ctx context.Context, env *Environment, index int, name string) (StepResult, error) {
	st, err := env.Manager.State(ctx)
	if err != nil {
		return StepResult{}, err
	}
	price, _, err := env.Controller.GetPoolPrice(ctx)
	if err != nil {
		return StepResult{}, err
	}
	lower, upper := env.Manager.CurrentPosition()
	return StepResult{
		Index:     index,
		Action:    name,
		State:     string(st),
		LowerTick: lower,
		UpperTick: upper,
		PoolPrice: price.StringFixed(6),
	}, nil
}

func check(ctx context.Context, env *Environment, result StepResult, want Expect) error {
	if want.State != "" && want.State != result.State {
		return fmt.Errorf("%w: state %s, want %s", ErrExpectation, result.State, want.State)
	}
	if want.Direction != "" {
		if got := string(env.Manager.Position().Direction); got != want.Direction {
			return fmt.Errorf("%w: direction %q, want %q", ErrExpectation, got, want.Direction)
		}
	}
	if want.PoolFee != 0 && env.Manager.PoolFee() != want.PoolFee {
		return fmt.Errorf("%w: pool fee %d, want %d", ErrExpectation, env.Manager.PoolFee(), want.PoolFee)
	}
	for _, bc := range want.Balances {
		if err := checkBalance(ctx, env, bc); err != nil {
			return err
		}
	}
	return nil
}

func checkBalance(ctx context.Context, env *Environment, bc BalanceCheck) error {
	owner, err := env.Account(bc.Account)
	if err != nil {
		return err
	}
	token, err := env.Token(bc.Token)
	if err != nil {
		return err
	}
	got, err := env.Balance(ctx, token, owner)
	if err != nil {
		return err
	}
	compare := func(bound string, ok func(decimal.Decimal) bool, rel string) error {
		if bound == "" {
			return nil
		}
		want, err := decimal.NewFromString(bound)
		if err != nil {
			return fmt.Errorf("balance bound %q: %w", bound, err)
		}
		if !ok(want) {
			return fmt.Errorf("%w: %s %s balance %s, want %s %s", ErrExpectation, bc.Account, bc.Token, got, rel, want)
		}
		return nil
	}
	if err := compare(bc.Equals, got.Equal, "="); err != nil {
		return err
	}
	if err := compare(bc.Min, got.GreaterThanOrEqual, ">="); err != nil {
		return err
	}
	return compare(bc.Max, got.LessThanOrEqual, "<=")
}

func doHedge(ctx context.Context, env *Environment, step Step) error {
	caller, err := env.Account(step.Caller)
	if err != nil {
		return err
	}
	delta, err := decimal.NewFromString(step.Delta)
	if err != nil {
		return fmt.Errorf("delta: %w", err)
	}
	_, err = env.Controller.HedgeDelta(ctx, caller, delta)
	return err
}

func doPrice(ctx context.Context, env *Environment, step Step) error {
	if step.Tick != nil {
		return env.MoveTick(ctx, *step.Tick)
	}
	price, err := decimal.NewFromString(step.Price)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	return env.MovePrice(ctx, price)
}

func doFulfill(ctx context.Context, env *Environment, step Step) error {
	caller, err := env.Account(step.Caller)
	if err != nil {
		return err
	}
	_, err = env.Manager.FulfillActiveRangeOrder(ctx, caller)
	return err
}

func doExit(ctx context.Context, env *Environment, step Step) error {
	caller, err := env.Account(defaultCaller(step.Caller, "manager"))
	if err != nil {
		return err
	}
	_, err = env.Manager.ExitActiveRangeOrder(ctx, caller)
	return err
}

func doWithdraw(ctx context.Context, env *Environment, step Step) error {
	caller, err := env.Account(step.Caller)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(step.Amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	_, err = env.Manager.Withdraw(ctx, caller, env.RawAmount(env.Manager.ReferenceToken(), amount))
	return err
}

func doRecover(ctx context.Context, env *Environment, step Step) error {
	caller, err := env.Account(defaultCaller(step.Caller, "guardian"))
	if err != nil {
		return err
	}
	token, err := env.Token(step.Token)
	if err != nil {
		return err
	}
	recipient, err := env.Account(defaultCaller(step.Recipient, "guardian"))
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(step.Amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	return env.Manager.RecoverERC20(ctx, caller, token, recipient, env.RawAmount(token, amount))
}

func doSetFee(ctx context.Context, env *Environment, step Step) error {
	caller, err := env.Account(defaultCaller(step.Caller, "manager"))
	if err != nil {
		return err
	}
	return env.Manager.SetPoolFee(ctx, caller, step.Fee)
}

func doSetAuthorizedFulfill(ctx context.Context, env *Environment, step Step) error {
	caller, err := env.Account(defaultCaller(step.Caller, "manager"))
	if err != nil {
		return err
	}
	if step.Enabled == nil {
		return errors.New("enabled is required")
	}
	return env.Manager.SetAuthorizedFulfill(ctx, caller, *step.Enabled)
}

func defaultCaller(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
