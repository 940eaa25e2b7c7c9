// Package checkout turns a requester's cart into a persisted order.
package checkout

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"campusrunner/internal/domain"
	"campusrunner/internal/events"
	"campusrunner/internal/pricing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPhonePattern accepts Ghanaian mobile numbers in local or +233 form.
const DefaultPhonePattern = `^(?:\+233|0)[235]\d{8}$`

const (
	NextPayment      = "payment"
	NextConfirmation = "confirmation"
)

// Cart is the part of the cart store checkout reads and clears.
type Cart interface {
	CanCheckout() bool
	Snapshot() domain.Cart
	RemoveOrdered(ordered domain.Cart) []domain.LineItem
}

type OrderWriter interface {
	CreateOrder(ctx context.Context, order domain.Order) (domain.OrderRef, error)
	AddOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error
	UpdateStatus(ctx context.Context, change domain.StatusChange) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

type draftDeleter interface {
	Delete(ctx context.Context, requesterID string) error
}

// Result tells the caller where to send the requester next. Remaining lists cart
// lines added while the order was being placed; they stay in the cart.
type Result struct {
	Order        domain.Order      `json:"order"`
	Next         string            `json:"next"`
	Payment      *PaymentSession   `json:"payment,omitempty"`
	PaymentError string            `json:"paymentError,omitempty"`
	Remaining    []domain.LineItem `json:"remainingLineItems,omitempty"`
}

type Coordinator struct {
	orders    OrderWriter
	guard     Guard
	payments  PaymentInitiator
	drafts    draftDeleter
	publisher events.Publisher
	policy    pricing.Policy
	phone     *regexp.Regexp
	attempts  int
	delay     time.Duration
	newID     func() string
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Coordinator)

func WithGuard(g Guard) Option {
	return func(c *Coordinator) { c.guard = g }
}

func WithPayments(p PaymentInitiator) Option {
	return func(c *Coordinator) { c.payments = p }
}

func WithDrafts(d draftDeleter) Option {
	return func(c *Coordinator) { c.drafts = d }
}

func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

func WithPolicy(p pricing.Policy) Option {
	return func(c *Coordinator) { c.policy = p }
}

func WithPhonePattern(re *regexp.Regexp) Option {
	return func(c *Coordinator) { c.phone = re }
}

// WithAttachRetry sets how many times item attachment is tried and the base delay
// between tries. The n-th retry waits n*delay.
func WithAttachRetry(attempts int, delay time.Duration) Option {
	return func(c *Coordinator) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.delay = delay
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(c *Coordinator) { c.now = fn }
}

func New(orders OrderWriter, opts ...Option) *Coordinator {
	c := &Coordinator{
		orders:    orders,
		guard:     NewLocalGuard(),
		payments:  NewLinkInitiator(""),
		publisher: events.Nop{},
		policy:    pricing.DefaultPolicy(),
		phone:     regexp.MustCompile(DefaultPhonePattern),
		attempts:  3,
		delay:     200 * time.Millisecond,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit validates the cart and delivery details, persists the order header and its
// items, then clears the cart. Only one submission per requester runs at a time.
func (c *Coordinator) Submit(ctx context.Context, requester domain.User, cart Cart, info domain.DeliveryInfo, method domain.PaymentMethod) (*Result, error) {
	release, err := c.guard.Acquire(ctx, requester.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	snapshot := cart.Snapshot()
	delivery, verr := c.validate(cart.CanCheckout(), snapshot, info, method)
	if verr != nil {
		return nil, verr
	}

	order := c.buildOrder(requester.ID, snapshot, delivery, method)
	ref, err := c.orders.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	order.ID, order.Number = ref.ID, ref.Number
	for i := range order.Items {
		order.Items[i].OrderID = ref.ID
	}

	if err := c.attachItems(ctx, order); err != nil {
		compensated := c.compensate(ctx, order)
		return nil, &domain.PartialOrderError{OrderID: ref.ID, OrderNumber: ref.Number, Compensated: compensated, Err: err}
	}

	remaining := cart.RemoveOrdered(snapshot)
	if len(remaining) > 0 {
		c.logger.Info("cart changed during checkout; extra lines kept",
			zap.String("requester_id", requester.ID),
			zap.Int("remaining_lines", len(remaining)))
	}
	c.afterPlaced(ctx, requester.ID, order)

	res := &Result{Order: order, Next: NextConfirmation, Remaining: remaining}
	if method.Electronic() {
		res.Next = NextPayment
		session, err := c.payments.Initiate(ctx, order)
		if err != nil {
			c.logger.Warn("payment initiation failed", zap.String("order_id", order.ID), zap.Error(err))
			res.PaymentError = err.Error()
		} else {
			res.Payment = &session
		}
	}
	c.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.Number),
		zap.String("requester_id", requester.ID),
		zap.Int64("total_cents", order.Totals.TotalCents),
		zap.String("next", res.Next))
	return res, nil
}

func (c *Coordinator) validate(canCheckout bool, snapshot domain.Cart, info domain.DeliveryInfo, method domain.PaymentMethod) (domain.DeliveryInfo, error) {
	verr := &domain.ValidationError{}
	if len(snapshot.Lines) == 0 {
		verr.Add("items", "cart is empty")
	} else if !canCheckout {
		verr.Add("address", "delivery address is required")
	}

	d := domain.DeliveryInfo{
		Address: strings.TrimSpace(info.Address),
		Hall:    strings.TrimSpace(info.Hall),
		Room:    strings.TrimSpace(info.Room),
		Phone:   normalizePhone(info.Phone),
	}
	if d.Address == "" {
		d.Address = strings.TrimSpace(snapshot.DeliveryAddress)
	}
	if d.Address == "" {
		verr.Add("address", "delivery address is required")
	}
	if d.Hall == "" {
		verr.Add("hall", "hall or hostel is required")
	}
	if d.Room == "" {
		verr.Add("room", "room is required")
	}
	switch {
	case d.Phone == "":
		verr.Add("phone", "phone number is required")
	case !c.phone.MatchString(d.Phone):
		verr.Add("phone", "phone number is not valid")
	}
	if !method.Valid() {
		verr.Add("paymentMethod", "choose cash, mobile_money or card")
	}
	if !verr.Empty() {
		return domain.DeliveryInfo{}, verr
	}
	return d, nil
}

func normalizePhone(raw string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
}

func (c *Coordinator) buildOrder(requesterID string, snapshot domain.Cart, delivery domain.DeliveryInfo, method domain.PaymentMethod) domain.Order {
	now := c.now()
	items := make([]domain.OrderItem, 0, len(snapshot.Lines))
	for _, l := range snapshot.Lines {
		items = append(items, domain.OrderItemFromLine(c.newID(), l))
	}
	return domain.Order{
		RequesterID:         requesterID,
		Items:               items,
		Totals:              c.policy.Price(snapshot.Lines, method),
		Delivery:            delivery,
		SpecialInstructions: snapshot.SpecialInstructions,
		PaymentMethod:       method,
		Status:              domain.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (c *Coordinator) attachItems(ctx context.Context, order domain.Order) error {
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = c.orders.AddOrderItems(ctx, order.ID, order.Items); err == nil {
			return nil
		}
		c.logger.Warn("attach order items failed",
			zap.String("order_id", order.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if c.itemsAttached(ctx, order) {
			c.logger.Info("order items found after failed attach", zap.String("order_id", order.ID))
			return nil
		}
		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("attach order items: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * c.delay):
		}
	}
	return fmt.Errorf("attach order items: %w", err)
}

// itemsAttached reports whether a failed attach actually committed. Attachment
// is all-or-nothing, so a full item count means it landed.
func (c *Coordinator) itemsAttached(ctx context.Context, order domain.Order) bool {
	stored, err := c.orders.GetByID(context.WithoutCancel(ctx), order.ID)
	if err != nil {
		c.logger.Warn("check order items failed", zap.String("order_id", order.ID), zap.Error(err))
		return false
	}
	return len(order.Items) > 0 && len(stored.Items) == len(order.Items)
}

// compensate cancels the itemless header so no fulfiller can claim it.
func (c *Coordinator) compensate(ctx context.Context, order domain.Order) bool {
	applied, err := c.orders.UpdateStatus(context.WithoutCancel(ctx), domain.StatusChange{
		OrderID: order.ID,
		From:    domain.StatusPending,
		To:      domain.StatusCancelled,
		At:      c.now(),
	})
	if err != nil || !applied {
		c.logger.Error("order left without items; manual cleanup required",
			zap.String("order_id", order.ID),
			zap.String("order_number", order.Number),
			zap.Bool("applied", applied),
			zap.Error(err))
		return false
	}
	c.logger.Warn("order cancelled after item attachment failed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.Number))
	return true
}

func (c *Coordinator) afterPlaced(ctx context.Context, requesterID string, order domain.Order) {
	if c.drafts != nil {
		if err := c.drafts.Delete(ctx, requesterID); err != nil {
			c.logger.Warn("delete checkout draft failed", zap.String("requester_id", requesterID), zap.Error(err))
		}
	}
	if err := c.publisher.Publish(ctx, events.FromOrder(events.TypeOrderPlaced, order, "", requesterID)); err != nil {
		c.logger.Warn("publish order placed failed", zap.String("order_id", order.ID), zap.Error(err))
	}
}
