package orderstate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"campusrunner/internal/domain"

	"github.com/cucumber/godog"
)

type lifecycleContext struct {
	machine *Machine
	order   domain.Order
	err     error
}

func (c *lifecycleContext) reset() {
	c.machine = New(Policy{})
	c.order = domain.Order{}
	c.err = nil
}

func (c *lifecycleContext) anOrderInState(state string) error {
	status, ok := domain.ParseOrderStatus(state)
	if !ok {
		return fmt.Errorf("unknown state %q", state)
	}
	c.order = domain.Order{ID: "order-1", Status: status}
	if status != domain.StatusPending {
		runner := "runner-1"
		c.order.FulfillerID = &runner
	}
	return nil
}

func (c *lifecycleContext) runnerMovesIt(runner, from, to string) error {
	if c.err != nil {
		return nil
	}
	_, c.err = c.machine.Apply(&c.order, Request{
		From:        domain.OrderStatus(from),
		To:          domain.OrderStatus(to),
		FulfillerID: runner,
	})
	return nil
}

func (c *lifecycleContext) theOrderIsInState(state string) error {
	if c.err != nil {
		return fmt.Errorf("unexpected error: %v", c.err)
	}
	if string(c.order.Status) != state {
		return fmt.Errorf("expected state %s, got %s", state, c.order.Status)
	}
	return nil
}

func (c *lifecycleContext) theOrderIsBoundToRunner(runner string) error {
	if !c.order.FulfilledBy(runner) {
		return fmt.Errorf("expected order bound to %s", runner)
	}
	return nil
}

func (c *lifecycleContext) theTransitionIsRejectedWithCurrentState(state string) error {
	var terr *domain.TransitionError
	if !errors.As(c.err, &terr) {
		return fmt.Errorf("expected transition error, got %v", c.err)
	}
	if string(terr.Current) != state {
		return fmt.Errorf("expected current state %s, got %s", state, terr.Current)
	}
	return nil
}

func (c *lifecycleContext) theCancellationOutcomeIs(outcome string) error {
	switch outcome {
	case "applied":
		return c.theOrderIsInState(string(domain.StatusCancelled))
	case "rejected":
		if c.err == nil {
			return errors.New("expected cancellation to be rejected")
		}
		return nil
	default:
		return fmt.Errorf("unknown outcome %q", outcome)
	}
}

func InitializeLifecycleScenario(ctx *godog.ScenarioContext) {
	tc := &lifecycleContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^an order in state "([^"]*)"$`, tc.anOrderInState)
	ctx.Step(`^runner "([^"]*)" moves it from "([^"]*)" to "([^"]*)"$`, tc.runnerMovesIt)
	ctx.Step(`^the order is in state "([^"]*)"$`, tc.theOrderIsInState)
	ctx.Step(`^the order is bound to runner "([^"]*)"$`, tc.theOrderIsBoundToRunner)
	ctx.Step(`^the transition is rejected with current state "([^"]*)"$`, tc.theTransitionIsRejectedWithCurrentState)
	ctx.Step(`^the cancellation outcome is "([^"]*)"$`, tc.theCancellationOutcomeIs)
}

func TestLifecycleFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeLifecycleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/order_lifecycle.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
