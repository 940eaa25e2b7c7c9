// Package orderstate validates and applies order fulfillment transitions.
package orderstate

import (
	"fmt"
	"strings"
	"time"

	"campusrunner/internal/domain"
)

// Policy holds the product decisions the lifecycle depends on.
type Policy struct {
	// CancelWhileDelivering allows delivering -> cancelled. Off by default: once en
	// route the order runs to completion.
	CancelWhileDelivering bool
}

// Request asks to move an order from the state the caller last saw to a new one.
type Request struct {
	From        domain.OrderStatus
	To          domain.OrderStatus
	FulfillerID string
}

// Outcome describes an applied transition.
type Outcome struct {
	From     domain.OrderStatus
	To       domain.OrderStatus
	At       time.Time
	Warnings []string
}

type Machine struct {
	policy Policy
	now    func() time.Time
}

func New(policy Policy) *Machine {
	return &Machine{policy: policy, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a copy of m using fn as its time source.
func (m *Machine) WithClock(fn func() time.Time) *Machine {
	cp := *m
	cp.now = fn
	return &cp
}

var forward = map[domain.OrderStatus]domain.OrderStatus{
	domain.StatusPending:    domain.StatusAccepted,
	domain.StatusAccepted:   domain.StatusShopping,
	domain.StatusShopping:   domain.StatusDelivering,
	domain.StatusDelivering: domain.StatusCompleted,
}

func Terminal(s domain.OrderStatus) bool {
	return s == domain.StatusCompleted || s == domain.StatusCancelled
}

func (m *Machine) cancellable(from domain.OrderStatus) bool {
	switch from {
	case domain.StatusPending, domain.StatusAccepted, domain.StatusShopping:
		return true
	case domain.StatusDelivering:
		return m.policy.CancelWhileDelivering
	}
	return false
}

// Allowed reports whether from -> to is an edge of the lifecycle.
func (m *Machine) Allowed(from, to domain.OrderStatus) bool {
	if to == domain.StatusCancelled {
		return m.cancellable(from)
	}
	next, ok := forward[from]
	return ok && next == to
}

// Next lists the states reachable from from, forward step first.
func (m *Machine) Next(from domain.OrderStatus) []domain.OrderStatus {
	var out []domain.OrderStatus
	if next, ok := forward[from]; ok {
		out = append(out, next)
	}
	if m.cancellable(from) {
		out = append(out, domain.StatusCancelled)
	}
	return out
}

// Apply validates req against the order's recorded state and mutates o on success.
// It never coerces: a stale From or an illegal edge yields *domain.TransitionError.
func (m *Machine) Apply(o *domain.Order, req Request) (Outcome, error) {
	reject := func(reason string) error {
		return &domain.TransitionError{OrderID: o.ID, Current: o.Status, From: req.From, To: req.To, Reason: reason}
	}
	if !req.To.Valid() {
		return Outcome{}, reject("unknown target state")
	}
	if o.Status != req.From {
		return Outcome{}, reject("order is no longer in the expected state")
	}
	if !m.Allowed(req.From, req.To) {
		return Outcome{}, reject("transition not allowed")
	}

	var warnings []string
	switch req.To {
	case domain.StatusAccepted:
		fulfiller := strings.TrimSpace(req.FulfillerID)
		if fulfiller == "" {
			return Outcome{}, reject("accepting requires a fulfiller")
		}
		if o.FulfillerID != nil && *o.FulfillerID != fulfiller {
			return Outcome{}, reject("order already claimed by another fulfiller")
		}
		o.FulfillerID = &fulfiller
	case domain.StatusDelivering:
		for _, it := range o.UnfulfilledItems() {
			warnings = append(warnings, fmt.Sprintf("item %q not marked as bought", it.Name))
		}
	}

	at := m.now()
	o.Status = req.To
	o.Stamp(req.To, at)
	return Outcome{From: req.From, To: req.To, At: at, Warnings: warnings}, nil
}
