// Package ordersync keeps a local view of an actor's orders fresh by polling the
// order store on a fixed interval.
package ordersync

import (
	"context"
	"sort"
	"sync"
	"time"

	"campusrunner/internal/domain"

	"go.uber.org/zap"
)

const DefaultInterval = 15 * time.Second

// Fetcher returns the orders relevant to actor: a requester's own orders or the
// ones bound to a fulfiller.
type Fetcher interface {
	OrdersForActor(ctx context.Context, actor domain.User) ([]domain.Order, error)
}

// View is the local view-model. A successful poll replaces it wholesale; a failed
// poll leaves it untouched.
type View struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	order    []string
	lastErr  error
	syncedAt time.Time
}

func NewView() *View {
	return &View{orders: make(map[string]domain.Order)}
}

func (v *View) Replace(orders []domain.Order, at time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orders = make(map[string]domain.Order, len(orders))
	v.order = v.order[:0]
	for _, o := range orders {
		v.orders[o.ID] = o.Clone()
		v.order = append(v.order, o.ID)
	}
	v.lastErr = nil
	v.syncedAt = at
}

// ApplyLocal records an optimistic local result. The next successful poll wins
// over it.
func (v *View) ApplyLocal(o domain.Order) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.orders[o.ID]; !ok {
		v.order = append(v.order, o.ID)
	}
	v.orders[o.ID] = o.Clone()
}

func (v *View) recordError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastErr = err
}

func (v *View) Get(id string) (domain.Order, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	o, ok := v.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return o.Clone(), true
}

// Orders returns the view in fetch order, locally applied additions last.
func (v *View) Orders() []domain.Order {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]domain.Order, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.orders[id].Clone())
	}
	return out
}

// ByStatus groups the view, with each group sorted newest first.
func (v *View) ByStatus() map[domain.OrderStatus][]domain.Order {
	out := make(map[domain.OrderStatus][]domain.Order)
	for _, o := range v.Orders() {
		out[o.Status] = append(out[o.Status], o)
	}
	for _, group := range out {
		sort.SliceStable(group, func(i, j int) bool { return group[i].CreatedAt.After(group[j].CreatedAt) })
	}
	return out
}

func (v *View) LastError() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastErr
}

func (v *View) SyncedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.syncedAt
}

type Loop struct {
	fetcher  Fetcher
	actor    domain.User
	view     *View
	interval time.Duration
	logger   *zap.Logger
	onSync   func([]domain.Order)
	now      func() time.Time
}

type Option func(*Loop)

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// OnSync registers a callback invoked after each successful refresh.
func OnSync(fn func([]domain.Order)) Option {
	return func(l *Loop) { l.onSync = fn }
}

func NewLoop(fetcher Fetcher, actor domain.User, view *View, opts ...Option) *Loop {
	l := &Loop{
		fetcher:  fetcher,
		actor:    actor,
		view:     view,
		interval: DefaultInterval,
		logger:   zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) View() *View {
	return l.view
}

// Apply records an order returned by a successful local action, such as a status
// transition, and notifies the OnSync callback. The next successful Refresh
// replaces it.
func (l *Loop) Apply(o domain.Order) {
	l.view.ApplyLocal(o)
	l.logger.Debug("order sync applied local result", zap.String("order_id", o.ID), zap.String("status", string(o.Status)))
	if l.onSync != nil {
		l.onSync(l.view.Orders())
	}
}

// Run refreshes immediately, then once per interval until ctx is done. Failed
// refreshes are logged and retried on the next tick only.
func (l *Loop) Run(ctx context.Context) error {
	l.Refresh(ctx)

	t := time.NewTicker(l.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("order sync stopping", zap.String("actor_id", l.actor.ID))
			return nil
		case <-t.C:
			l.Refresh(ctx)
		}
	}
}

// Refresh performs one poll. A result that arrives after ctx is done is dropped.
func (l *Loop) Refresh(ctx context.Context) {
	orders, err := l.fetcher.OrdersForActor(ctx, l.actor)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		l.logger.Warn("order sync fetch failed",
			zap.String("actor_id", l.actor.ID),
			zap.String("role", string(l.actor.Role)),
			zap.Error(err))
		l.view.recordError(err)
		return
	}
	l.view.Replace(orders, l.now())
	l.logger.Debug("order sync refreshed", zap.String("actor_id", l.actor.ID), zap.Int("orders", len(orders)))
	if l.onSync != nil {
		l.onSync(l.view.Orders())
	}
}
