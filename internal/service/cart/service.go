package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"campusrunner/internal/cart"
	"campusrunner/internal/domain"
	"campusrunner/internal/pricing"

	"go.uber.org/zap"
)

type cartRepo interface {
	SaveCart(ctx context.Context, c domain.Cart) error
	GetByRequester(ctx context.Context, requesterID string) (*domain.Cart, error)
}

type itemLookup interface {
	ItemByID(ctx context.Context, id string) (*domain.CatalogItem, error)
}

// Sessions owns one cart store per requester. A store is restored from the cart
// repository the first time a requester is seen, and dropped again once idle.
type Sessions struct {
	mu       sync.Mutex
	stores   map[string]*cart.Store
	lastUsed map[string]time.Time
	repo     cartRepo
	catalog  itemLookup
	policy   pricing.Policy
	rules    cart.Rules
	logger   *zap.Logger
	now      func() time.Time
}

func New(repo cartRepo, catalog itemLookup, policy pricing.Policy, rules cart.Rules, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{
		stores:   make(map[string]*cart.Store),
		lastUsed: make(map[string]time.Time),
		repo:     repo,
		catalog:  catalog,
		policy:   policy,
		rules:    rules,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the requester's store, creating and restoring it on first use. The
// restore runs outside the session lock; when two callers race, the first store
// registered wins.
func (s *Sessions) Get(ctx context.Context, requesterID string) (*cart.Store, error) {
	if st, ok := s.cached(requesterID); ok {
		return st, nil
	}

	st := cart.New(requesterID, s.policy,
		cart.WithPersister(s.repo),
		cart.WithRules(s.rules),
		cart.WithLogger(s.logger.With(zap.String("requester_id", requesterID))),
	)
	saved, err := s.repo.GetByRequester(ctx, requesterID)
	switch {
	case err == nil:
		st.Restore(*saved)
	case errors.Is(err, domain.ErrNotFound):
	default:
		st.Close()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed[requesterID] = s.now()
	if existing, ok := s.stores[requesterID]; ok {
		st.Close()
		return existing, nil
	}
	s.stores[requesterID] = st
	return st, nil
}

func (s *Sessions) cached(requesterID string) (*cart.Store, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[requesterID]
	if ok {
		s.lastUsed[requesterID] = s.now()
	}
	return st, ok
}

// AddCatalogItem looks the item up and adds it to the requester's cart. Unavailable
// items leave the cart unchanged.
func (s *Sessions) AddCatalogItem(ctx context.Context, requesterID, itemID string, quantity int, notes string) (domain.Cart, error) {
	item, err := s.catalog.ItemByID(ctx, itemID)
	if err != nil {
		return domain.Cart{}, err
	}
	st, err := s.Get(ctx, requesterID)
	if err != nil {
		return domain.Cart{}, err
	}
	st.AddItem(*item, quantity, notes)
	return st.Snapshot(), nil
}

// EvictIdle drops stores unused for longer than maxIdle, after their pending saves
// finish. The next Get restores them from the repository. It returns the number
// evicted.
func (s *Sessions) EvictIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxIdle)
	n := 0
	for id, st := range s.stores {
		if s.lastUsed[id].After(cutoff) {
			continue
		}
		st.Wait()
		st.Close()
		delete(s.stores, id)
		delete(s.lastUsed, id)
		n++
	}
	return n
}

// RunEviction calls EvictIdle every half maxIdle until ctx is done.
func (s *Sessions) RunEviction(ctx context.Context, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	t := time.NewTicker(maxIdle / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.EvictIdle(maxIdle); n > 0 {
				s.logger.Debug("evicted idle carts", zap.Int("count", n))
			}
		}
	}
}

// Close stops every store's persistence. Pending saves are waited for first.
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.stores {
		st.Wait()
		st.Close()
		delete(s.stores, id)
		delete(s.lastUsed, id)
	}
}
