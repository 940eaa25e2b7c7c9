package orderstate

import (
	"testing"
	"time"

	"campusrunner/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []domain.OrderStatus{
	domain.StatusPending,
	domain.StatusAccepted,
	domain.StatusShopping,
	domain.StatusDelivering,
	domain.StatusCompleted,
	domain.StatusCancelled,
}

func TestAllowedEdges(t *testing.T) {
	m := New(Policy{})
	legal := map[[2]domain.OrderStatus]bool{
		{domain.StatusPending, domain.StatusAccepted}:     true,
		{domain.StatusAccepted, domain.StatusShopping}:    true,
		{domain.StatusShopping, domain.StatusDelivering}:  true,
		{domain.StatusDelivering, domain.StatusCompleted}: true,
		{domain.StatusPending, domain.StatusCancelled}:    true,
		{domain.StatusAccepted, domain.StatusCancelled}:   true,
		{domain.StatusShopping, domain.StatusCancelled}:   true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, legal[[2]domain.OrderStatus{from, to}], m.Allowed(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCancelWhileDeliveringPolicy(t *testing.T) {
	assert.False(t, New(Policy{}).Allowed(domain.StatusDelivering, domain.StatusCancelled))
	assert.True(t, New(Policy{CancelWhileDelivering: true}).Allowed(domain.StatusDelivering, domain.StatusCancelled))
}

func TestCompletedRejectsEverything(t *testing.T) {
	m := New(Policy{CancelWhileDelivering: true})
	for _, to := range allStatuses {
		o := domain.Order{ID: "o1", Status: domain.StatusCompleted}
		_, err := m.Apply(&o, Request{From: domain.StatusCompleted, To: to, FulfillerID: "r1"})
		var terr *domain.TransitionError
		require.ErrorAs(t, err, &terr, "completed -> %s", to)
		assert.Equal(t, domain.StatusCompleted, terr.Current)
		assert.Equal(t, domain.StatusCompleted, o.Status)
	}
	assert.Empty(t, m.Next(domain.StatusCompleted))
}

func TestPendingCannotSkipToDelivering(t *testing.T) {
	m := New(Policy{})
	o := domain.Order{ID: "o1", Status: domain.StatusPending}
	_, err := m.Apply(&o, Request{From: domain.StatusPending, To: domain.StatusDelivering, FulfillerID: "r1"})
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Nil(t, o.FulfillerID)
}

func TestShoppingCannotComplete(t *testing.T) {
	m := New(Policy{})
	o := domain.Order{ID: "o1", Status: domain.StatusShopping}
	_, err := m.Apply(&o, Request{From: domain.StatusShopping, To: domain.StatusCompleted})
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.StatusShopping, terr.Current)
}

func TestStaleSourceRejected(t *testing.T) {
	m := New(Policy{})
	o := domain.Order{ID: "o1", Status: domain.StatusAccepted}
	_, err := m.Apply(&o, Request{From: domain.StatusPending, To: domain.StatusAccepted, FulfillerID: "r2"})
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.StatusAccepted, terr.Current)
	assert.Equal(t, domain.StatusPending, terr.From)
}

func TestAcceptBindsFulfillerAndStamps(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := New(Policy{}).WithClock(func() time.Time { return at })
	o := domain.Order{ID: "o1", Status: domain.StatusPending}

	_, err := m.Apply(&o, Request{From: domain.StatusPending, To: domain.StatusAccepted})
	require.Error(t, err, "accept without fulfiller must fail")

	out, err := m.Apply(&o, Request{From: domain.StatusPending, To: domain.StatusAccepted, FulfillerID: "runner-7"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, out.To)
	require.NotNil(t, o.FulfillerID)
	assert.Equal(t, "runner-7", *o.FulfillerID)
	require.NotNil(t, o.AcceptedAt)
	assert.Equal(t, at, *o.AcceptedAt)
}

func TestFullLifecycleStampsEachState(t *testing.T) {
	m := New(Policy{})
	o := domain.Order{ID: "o1", Status: domain.StatusPending, Items: []domain.OrderItem{{Name: "Bread", Fulfilled: true}}}
	steps := []domain.OrderStatus{domain.StatusAccepted, domain.StatusShopping, domain.StatusDelivering, domain.StatusCompleted}
	for _, to := range steps {
		_, err := m.Apply(&o, Request{From: o.Status, To: to, FulfillerID: "runner-1"})
		require.NoError(t, err, "-> %s", to)
	}
	assert.NotNil(t, o.AcceptedAt)
	assert.NotNil(t, o.ShoppingAt)
	assert.NotNil(t, o.DeliveringAt)
	assert.NotNil(t, o.CompletedAt)
	assert.Nil(t, o.CancelledAt)
	assert.True(t, Terminal(o.Status))
}

func TestDeliveringWarnsOnUnfulfilledItems(t *testing.T) {
	m := New(Policy{})
	o := domain.Order{ID: "o1", Status: domain.StatusShopping, Items: []domain.OrderItem{
		{Name: "Bread", Fulfilled: true},
		{Name: "Sardines"},
	}}
	out, err := m.Apply(&o, Request{From: domain.StatusShopping, To: domain.StatusDelivering})
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "Sardines")
	assert.Equal(t, domain.StatusDelivering, o.Status)
}

func TestNextAffordances(t *testing.T) {
	m := New(Policy{})
	assert.Equal(t, []domain.OrderStatus{domain.StatusAccepted, domain.StatusCancelled}, m.Next(domain.StatusPending))
	assert.Equal(t, []domain.OrderStatus{domain.StatusCompleted}, m.Next(domain.StatusDelivering))
}
