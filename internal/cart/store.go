// Package cart holds the requester's in-memory cart. Mutations apply synchronously
// and are persisted in the background; a failed save is surfaced through Err and
// never rolls the local state back.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"campusrunner/internal/domain"
	"campusrunner/internal/pricing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotCustomItem is returned when a custom-item edit targets a catalog line.
var ErrNotCustomItem = errors.New("line item is not a custom item")

// Persister stores cart snapshots. Implementations may be slow; the store never
// waits for them.
type Persister interface {
	SaveCart(ctx context.Context, c domain.Cart) error
}

// Rules bounds custom items.
type Rules struct {
	MinCustomNameLength  int
	MaxCustomBudgetCents int64
}

func DefaultRules() Rules {
	return Rules{MinCustomNameLength: 3, MaxCustomBudgetCents: 100_000}
}

type Option func(*Store)

func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRules(r Rules) Option {
	return func(s *Store) { s.rules = r }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

type Store struct {
	mu     sync.Mutex
	cart   domain.Cart
	policy pricing.Policy
	rules  Rules
	newID  func() string
	now    func() time.Time
	logger *zap.Logger

	persister Persister
	pending   *domain.Cart
	flushing  bool
	syncErr   error
	closed    bool
	wg        sync.WaitGroup
}

func New(requesterID string, policy pricing.Policy, opts ...Option) *Store {
	s := &Store{
		cart:   domain.Cart{RequesterID: requesterID, Lines: []domain.LineItem{}},
		policy: policy,
		rules:  DefaultRules(),
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cart.Totals = policy.Preview(nil)
	return s
}

// Restore replaces the cart with a previously persisted copy without scheduling a save.
// Lines that fail shape validation are dropped.
func (s *Store) Restore(c domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]domain.LineItem, 0, len(c.Lines))
	for _, l := range c.Lines {
		if err := l.Validate(); err != nil {
			s.logger.Warn("cart restore: dropping invalid line", zap.String("line_id", l.ID), zap.Error(err))
			continue
		}
		lines = append(lines, l.Clone())
	}
	s.cart.Lines = lines
	s.cart.DeliveryAddress = c.DeliveryAddress
	s.cart.SpecialInstructions = c.SpecialInstructions
	s.cart.Totals = s.policy.Preview(s.cart.Lines)
	s.cart.UpdatedAt = c.UpdatedAt
}

// AddItem merges into an existing line for the same catalog item, capped at
// domain.MaxQuantity. Unavailable items and non-positive quantities are ignored.
func (s *Store) AddItem(item domain.CatalogItem, quantity int, notes string) {
	if !item.Available || quantity <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOfCatalogLocked(item.ID); idx >= 0 {
		line := &s.cart.Lines[idx]
		line.Quantity = domain.AddQuantity(line.Quantity, quantity)
		it := item
		line.Catalog = &it
		if strings.TrimSpace(notes) != "" {
			line.Notes = notes
		}
	} else {
		s.cart.Lines = append(s.cart.Lines, domain.NewCatalogLine(s.newID(), item, quantity, notes))
	}
	s.commitLocked()
}

// AddCustomItem always appends a new line; custom items are never merged.
func (s *Store) AddCustomItem(name string, budgetCents int64, notes string) (domain.LineItem, error) {
	custom, err := s.validateCustom(name, budgetCents, notes)
	if err != nil {
		return domain.LineItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	line := domain.NewCustomLine(s.newID(), custom, 1)
	s.cart.Lines = append(s.cart.Lines, line)
	s.commitLocked()
	return line.Clone(), nil
}

func (s *Store) UpdateCustomItem(lineID, name string, budgetCents int64, notes string) error {
	custom, err := s.validateCustom(name, budgetCents, notes)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLineLocked(lineID)
	if idx < 0 {
		return domain.ErrNotFound
	}
	if s.cart.Lines[idx].Custom == nil {
		return ErrNotCustomItem
	}
	s.cart.Lines[idx].Custom = &custom
	s.commitLocked()
	return nil
}

// UpdateQuantity removes the line when quantity < 1 and otherwise clamps to the cap.
// An unknown line id is a no-op.
func (s *Store) UpdateQuantity(lineID string, quantity int) {
	if quantity < 1 {
		s.RemoveItem(lineID)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLineLocked(lineID)
	if idx < 0 {
		return
	}
	s.cart.Lines[idx].Quantity = domain.ClampQuantity(quantity)
	s.commitLocked()
}

func (s *Store) UpdateNotes(lineID, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLineLocked(lineID)
	if idx < 0 {
		return domain.ErrNotFound
	}
	s.cart.Lines[idx].Notes = strings.TrimSpace(notes)
	s.commitLocked()
	return nil
}

// RemoveItem is idempotent.
func (s *Store) RemoveItem(lineID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLineLocked(lineID)
	if idx < 0 {
		return
	}
	s.cart.Lines = append(s.cart.Lines[:idx], s.cart.Lines[idx+1:]...)
	s.commitLocked()
}

// Clear empties the cart and resets delivery metadata.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart.Lines = []domain.LineItem{}
	s.cart.DeliveryAddress = ""
	s.cart.SpecialInstructions = ""
	s.commitLocked()
}

// RemoveOrdered takes the lines captured in ordered out of the cart. Lines added
// after the snapshot stay, and a line whose quantity grew keeps the difference.
// Delivery metadata is reset only when nothing remains. It returns the lines left.
func (s *Store) RemoveOrdered(ordered domain.Cart) []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]int, len(ordered.Lines))
	for _, l := range ordered.Lines {
		taken[l.ID] = l.Quantity
	}
	kept := make([]domain.LineItem, 0, len(s.cart.Lines))
	for _, l := range s.cart.Lines {
		q, ok := taken[l.ID]
		switch {
		case !ok:
			kept = append(kept, l)
		case l.Quantity > q:
			l.Quantity -= q
			kept = append(kept, l)
		}
	}
	s.cart.Lines = kept
	if len(kept) == 0 {
		s.cart.DeliveryAddress = ""
		s.cart.SpecialInstructions = ""
	}
	s.commitLocked()

	out := make([]domain.LineItem, 0, len(kept))
	for _, l := range kept {
		out = append(out, l.Clone())
	}
	return out
}

func (s *Store) UpdateDeliveryAddress(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.DeliveryAddress = text
	s.commitLocked()
}

func (s *Store) UpdateSpecialInstructions(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.SpecialInstructions = text
	s.commitLocked()
}

// CanCheckout is true for a non-empty cart with a non-blank delivery address.
func (s *Store) CanCheckout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cart.Lines) > 0 && strings.TrimSpace(s.cart.DeliveryAddress) != ""
}

func (s *Store) IsItemInCart(catalogItemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOfCatalogLocked(catalogItemID) >= 0
}

func (s *Store) Quantity(catalogItemID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOfCatalogLocked(catalogItemID); idx >= 0 {
		return s.cart.Lines[idx].Quantity
	}
	return 0
}

// TotalItemCount sums quantities across lines, for badge display.
func (s *Store) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

// Snapshot returns a deep copy of the current cart.
func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Err reports the last background persistence failure, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncErr
}

func (s *Store) ClearErr() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncErr = nil
}

// Wait blocks until pending background saves have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Close stops scheduling saves. Results of saves still in flight are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
}

func (s *Store) validateCustom(name string, budgetCents int64, notes string) (domain.CustomItem, error) {
	verr := &domain.ValidationError{}
	name = strings.TrimSpace(name)
	if len([]rune(name)) < s.rules.MinCustomNameLength {
		verr.Add("name", fmt.Sprintf("must be at least %d characters", s.rules.MinCustomNameLength))
	}
	if budgetCents <= 0 {
		verr.Add("budget", "must be positive")
	} else if s.rules.MaxCustomBudgetCents > 0 && budgetCents > s.rules.MaxCustomBudgetCents {
		verr.Add("budget", "exceeds the maximum allowed budget")
	}
	if !verr.Empty() {
		return domain.CustomItem{}, verr
	}
	return domain.CustomItem{Name: name, BudgetCents: budgetCents, Notes: strings.TrimSpace(notes)}, nil
}

func (s *Store) indexOfLineLocked(lineID string) int {
	for i, l := range s.cart.Lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

func (s *Store) indexOfCatalogLocked(catalogItemID string) int {
	for i, l := range s.cart.Lines {
		if l.Catalog != nil && l.Catalog.ID == catalogItemID {
			return i
		}
	}
	return -1
}

// commitLocked recomputes totals from scratch and schedules persistence.
func (s *Store) commitLocked() {
	s.cart.Totals = s.policy.Preview(s.cart.Lines)
	s.cart.UpdatedAt = s.now()
	s.schedulePersistLocked()
}
