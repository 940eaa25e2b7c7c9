package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"campusrunner/internal/cart"
	"campusrunner/internal/domain"
	"campusrunner/internal/events"
	"campusrunner/internal/formcache"
	"campusrunner/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrders struct {
	mu          sync.Mutex
	created     []domain.Order
	attachCalls int
	attachErrs  []error
	lastItems   []domain.OrderItem
	lastChange  *domain.StatusChange
	createErr   error
	updateErr   error
	block       chan struct{}
	entered     chan struct{}

	// lostAck makes a failing attach commit its items before reporting the error.
	lostAck  bool
	attached map[string][]domain.OrderItem
	getCalls int
}

func (s *stubOrders) CreateOrder(_ context.Context, o domain.Order) (domain.OrderRef, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return domain.OrderRef{}, s.createErr
	}
	s.created = append(s.created, o)
	n := len(s.created)
	return domain.OrderRef{ID: fmt.Sprintf("order-%d", n), Number: fmt.Sprintf("CR-%06d", n)}, nil
}

func (s *stubOrders) AddOrderItems(_ context.Context, orderID string, items []domain.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachCalls++
	s.lastItems = items
	if s.attached == nil {
		s.attached = make(map[string][]domain.OrderItem)
	}
	if len(s.attachErrs) > 0 {
		err := s.attachErrs[0]
		s.attachErrs = s.attachErrs[1:]
		if s.lostAck {
			s.attached[orderID] = items
		}
		return err
	}
	if _, dup := s.attached[orderID]; dup {
		return errors.New("duplicate key value violates unique constraint \"order_items_pkey\"")
	}
	s.attached[orderID] = items
	return nil
}

func (s *stubOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	return &domain.Order{ID: id, Items: s.attached[id]}, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, change domain.StatusChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastChange = &change
	if s.updateErr != nil {
		return false, s.updateErr
	}
	return true, nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

var requester = domain.User{ID: "student-1", Role: domain.RoleRequester}

func validInfo() domain.DeliveryInfo {
	return domain.DeliveryInfo{Hall: "Commonwealth", Room: "C14", Phone: "024 123 4567"}
}

func filledCart() *cart.Store {
	s := cart.New(requester.ID, pricing.DefaultPolicy())
	s.AddItem(domain.CatalogItem{ID: "rice", Name: "Rice 1kg", UnitPriceCents: 1000, Available: true}, 2, "")
	s.UpdateDeliveryAddress("Legon campus")
	return s
}

func newCoordinator(orders OrderWriter, opts ...Option) *Coordinator {
	opts = append([]Option{WithAttachRetry(3, 0), WithPayments(NewLinkInitiator("https://pay.example.test"))}, opts...)
	return New(orders, opts...)
}

func TestSubmitCashRoutesToConfirmation(t *testing.T) {
	orders := &stubOrders{}
	drafts := formcache.NewMemory()
	require.NoError(t, drafts.Save(context.Background(), requester.ID, formcache.Draft{PaymentMethod: domain.PaymentCash}))
	pub := &recordingPublisher{}
	c := newCoordinator(orders, WithDrafts(drafts), WithPublisher(pub))
	store := filledCart()

	res, err := c.Submit(context.Background(), requester, store, validInfo(), domain.PaymentCash)
	require.NoError(t, err)

	assert.Equal(t, NextConfirmation, res.Next)
	assert.Nil(t, res.Payment)
	assert.Equal(t, "order-1", res.Order.ID)
	assert.Equal(t, "CR-000001", res.Order.Number)
	assert.Equal(t, domain.StatusPending, res.Order.Status)
	assert.Equal(t, domain.Totals{SubtotalCents: 2000, DeliveryFeeCents: 500, ServiceFeeCents: 0, TotalCents: 2500}, res.Order.Totals)
	assert.Equal(t, "Legon campus", res.Order.Delivery.Address)
	assert.Equal(t, "0241234567", res.Order.Delivery.Phone)

	require.Len(t, orders.lastItems, 1)
	assert.Equal(t, "order-1", orders.lastItems[0].OrderID)
	assert.Equal(t, 2, orders.lastItems[0].Quantity)

	assert.Zero(t, store.TotalItemCount())
	_, ok, _ := drafts.Load(context.Background(), requester.ID)
	assert.False(t, ok)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeOrderPlaced, pub.events[0].Type)
}

func TestSubmitElectronicRoutesToPayment(t *testing.T) {
	c := newCoordinator(&stubOrders{})
	res, err := c.Submit(context.Background(), requester, filledCart(), validInfo(), domain.PaymentMobileMoney)
	require.NoError(t, err)

	assert.Equal(t, NextPayment, res.Next)
	require.NotNil(t, res.Payment)
	assert.Contains(t, res.Payment.URL, "https://pay.example.test/pay/CR-000001")
	assert.Contains(t, res.Payment.URL, "amount=2600")
	assert.Equal(t, int64(100), res.Order.Totals.ServiceFeeCents)
}

func TestSubmitPaymentFailureStillPlacesOrder(t *testing.T) {
	c := New(&stubOrders{}, WithAttachRetry(1, 0))
	store := filledCart()
	res, err := c.Submit(context.Background(), requester, store, validInfo(), domain.PaymentCard)
	require.NoError(t, err)
	assert.Equal(t, NextPayment, res.Next)
	assert.Nil(t, res.Payment)
	assert.NotEmpty(t, res.PaymentError)
	assert.Zero(t, store.TotalItemCount())
}

func TestSubmitValidationHasNoSideEffects(t *testing.T) {
	orders := &stubOrders{}
	c := newCoordinator(orders)
	store := filledCart()

	_, err := c.Submit(context.Background(), requester, store,
		domain.DeliveryInfo{Phone: "12345"}, domain.PaymentMethod("cheque"))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "hall")
	assert.Contains(t, verr.Fields, "room")
	assert.Equal(t, "phone number is not valid", verr.Fields["phone"])
	assert.Contains(t, verr.Fields, "paymentMethod")
	assert.NotContains(t, verr.Fields, "address")

	assert.Empty(t, orders.created)
	assert.Equal(t, 2, store.TotalItemCount())
}

func TestSubmitCheckoutGating(t *testing.T) {
	c := newCoordinator(&stubOrders{})

	empty := cart.New(requester.ID, pricing.DefaultPolicy())
	empty.UpdateDeliveryAddress("Legon")
	_, err := c.Submit(context.Background(), requester, empty, validInfo(), domain.PaymentCash)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cart is empty", verr.Fields["items"])

	noAddress := cart.New(requester.ID, pricing.DefaultPolicy())
	noAddress.AddItem(domain.CatalogItem{ID: "milk", Name: "Milk", UnitPriceCents: 300, Available: true}, 1, "")
	_, err = c.Submit(context.Background(), requester, noAddress, validInfo(), domain.PaymentCash)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "delivery address is required", verr.Fields["address"])
}

func TestPhonePattern(t *testing.T) {
	c := newCoordinator(&stubOrders{})
	for phone, ok := range map[string]bool{
		"0241234567":    true,
		"+233501234567": true,
		"020-123-4567":  true,
		"0141234567":    false,
		"024123456":     false,
		"+44241234567":  false,
	} {
		info := validInfo()
		info.Phone = phone
		_, err := c.validate(true, filledCart().Snapshot(), info, domain.PaymentCash)
		if ok {
			assert.NoError(t, err, phone)
		} else {
			assert.Error(t, err, phone)
		}
	}
}

func TestSubmitCreateFailureIsClean(t *testing.T) {
	orders := &stubOrders{createErr: errors.New("db down")}
	c := newCoordinator(orders)
	store := filledCart()

	_, err := c.Submit(context.Background(), requester, store, validInfo(), domain.PaymentCash)
	require.Error(t, err)
	var perr *domain.PartialOrderError
	assert.False(t, errors.As(err, &perr))
	assert.Equal(t, 2, store.TotalItemCount())
}

func TestSubmitRetriesItemAttachment(t *testing.T) {
	orders := &stubOrders{attachErrs: []error{errors.New("timeout"), errors.New("timeout")}}
	c := newCoordinator(orders)

	res, err := c.Submit(context.Background(), requester, filledCart(), validInfo(), domain.PaymentCash)
	require.NoError(t, err)
	assert.Equal(t, 3, orders.attachCalls)
	assert.Equal(t, "order-1", res.Order.ID)
	assert.Nil(t, orders.lastChange)
}

func TestSubmitPartialFailureCompensates(t *testing.T) {
	boom := errors.New("timeout")
	orders := &stubOrders{attachErrs: []error{boom, boom, boom}}
	c := newCoordinator(orders)
	store := filledCart()

	_, err := c.Submit(context.Background(), requester, store, validInfo(), domain.PaymentCash)
	var perr *domain.PartialOrderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "order-1", perr.OrderID)
	assert.Equal(t, "CR-000001", perr.OrderNumber)
	assert.True(t, perr.Compensated)
	assert.ErrorIs(t, err, boom)

	require.NotNil(t, orders.lastChange)
	assert.Equal(t, domain.StatusPending, orders.lastChange.From)
	assert.Equal(t, domain.StatusCancelled, orders.lastChange.To)
	assert.Equal(t, 2, store.TotalItemCount())
}

func TestSubmitPartialFailureUncompensated(t *testing.T) {
	orders := &stubOrders{attachErrs: []error{errors.New("x")}, updateErr: errors.New("db down")}
	c := New(orders, WithAttachRetry(1, 0))

	_, err := c.Submit(context.Background(), requester, filledCart(), validInfo(), domain.PaymentCash)
	var perr *domain.PartialOrderError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Compensated)
}

func TestSubmitRejectsConcurrentDoubleSubmit(t *testing.T) {
	orders := &stubOrders{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := newCoordinator(orders)
	store := filledCart()

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), requester, store, validInfo(), domain.PaymentCash)
		done <- err
	}()
	<-orders.entered

	_, err := c.Submit(context.Background(), requester, store, validInfo(), domain.PaymentCash)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(orders.block)
	require.NoError(t, <-done)
	assert.Len(t, orders.created, 1)

	// the guard is released once the first submission finishes
	_, err = c.Submit(context.Background(), requester, store, validInfo(), domain.PaymentCash)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSubmitKeepsLinesAddedDuringCheckout(t *testing.T) {
	orders := &stubOrders{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := newCoordinator(orders)
	store := filledCart()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.Submit(context.Background(), requester, store, validInfo(), domain.PaymentCash)
		done <- outcome{res, err}
	}()
	<-orders.entered

	store.AddItem(domain.CatalogItem{ID: "milk", Name: "Milk", UnitPriceCents: 300, Available: true}, 1, "")
	store.AddItem(domain.CatalogItem{ID: "rice", Name: "Rice 1kg", UnitPriceCents: 1000, Available: true}, 1, "")
	close(orders.block)

	out := <-done
	require.NoError(t, out.err)
	require.Len(t, orders.lastItems, 1)
	assert.Equal(t, 2, orders.lastItems[0].Quantity)

	snap := store.Snapshot()
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, 1, store.Quantity("rice"))
	assert.Equal(t, 1, store.Quantity("milk"))
	assert.Equal(t, "Legon campus", snap.DeliveryAddress)
	assert.Len(t, out.res.Remaining, 2)
}

func TestSubmitTreatsCommittedAttachAsSuccess(t *testing.T) {
	orders := &stubOrders{attachErrs: []error{errors.New("connection reset")}, lostAck: true}
	c := newCoordinator(orders)
	store := filledCart()

	res, err := c.Submit(context.Background(), requester, store, validInfo(), domain.PaymentCash)
	require.NoError(t, err)
	assert.Equal(t, 1, orders.attachCalls)
	assert.Equal(t, 1, orders.getCalls)
	assert.Nil(t, orders.lastChange, "order must not be cancelled")
	assert.Equal(t, domain.StatusPending, res.Order.Status)
	assert.Zero(t, store.TotalItemCount())
}

func TestLocalGuardReleaseIsIdempotent(t *testing.T) {
	g := NewLocalGuard()
	release, err := g.Acquire(context.Background(), "k")
	require.NoError(t, err)
	_, err = g.Acquire(context.Background(), "k")
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	release()
	release()
	again, err := g.Acquire(context.Background(), "k")
	require.NoError(t, err)
	again()
}

func TestAttachRetryStopsOnCancel(t *testing.T) {
	orders := &stubOrders{attachErrs: []error{errors.New("x"), errors.New("x"), errors.New("x")}}
	c := New(orders, WithAttachRetry(3, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.attachItems(ctx, domain.Order{ID: "o1"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, orders.attachCalls)
}
