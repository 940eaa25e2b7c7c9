package order

import (
	"context"
	"errors"
	"fmt"

	"campusrunner/internal/domain"
	"campusrunner/internal/events"
	"campusrunner/internal/orderstate"
	orderrepo "campusrunner/internal/repository/order"

	"go.uber.org/zap"
)

// ErrNotShopping is returned when items are annotated outside the shopping state.
var ErrNotShopping = errors.New("items can only be annotated while shopping")

type orderRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListForActor(ctx context.Context, actor domain.User) ([]domain.Order, error)
	ListAvailable(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, change domain.StatusChange) (bool, error)
	AnnotateItem(ctx context.Context, a orderrepo.ItemAnnotation) (bool, error)
}

type Service struct {
	repo      orderRepo
	machine   *orderstate.Machine
	publisher events.Publisher
	logger    *zap.Logger
}

func New(repo orderRepo, machine *orderstate.Machine, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, machine: machine, publisher: publisher, logger: logger}
}

// TransitionInput names the state the caller last saw. An empty From means the
// currently stored state.
type TransitionInput struct {
	From domain.OrderStatus `json:"from,omitempty"`
	To   domain.OrderStatus `json:"to"`
}

type TransitionResult struct {
	Order    domain.Order         `json:"order"`
	Warnings []string             `json:"warnings,omitempty"`
	Next     []domain.OrderStatus `json:"next"`
}

type AnnotateInput struct {
	ActualPriceCents *int64 `json:"actualPriceCents"`
	Fulfilled        bool   `json:"fulfilled"`
}

// Get returns an order the actor may see: requesters their own, fulfillers the ones
// bound to them or still open for acceptance, admins any.
func (s *Service) Get(ctx context.Context, actor domain.User, id string) (*domain.Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, *o) {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

// OrdersForActor feeds the order sync loop.
func (s *Service) OrdersForActor(ctx context.Context, actor domain.User) ([]domain.Order, error) {
	return s.repo.ListForActor(ctx, actor)
}

func (s *Service) ListAvailable(ctx context.Context, actor domain.User) ([]domain.Order, error) {
	if actor.Role != domain.RoleFulfiller && actor.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	return s.repo.ListAvailable(ctx)
}

// Next lists the transitions the order's current state allows.
func (s *Service) Next(status domain.OrderStatus) []domain.OrderStatus {
	return s.machine.Next(status)
}

// Transition validates the move against the stored order, then persists it with a
// compare-and-set. Losing a race reports the state the winner left behind.
func (s *Service) Transition(ctx context.Context, actor domain.User, id string, in TransitionInput) (*TransitionResult, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(actor, *o, in.To) {
		return nil, domain.ErrForbidden
	}
	from := in.From
	if from == "" {
		from = o.Status
	}

	updated := o.Clone()
	req := orderstate.Request{From: from, To: in.To}
	if in.To == domain.StatusAccepted {
		req.FulfillerID = actor.ID
	}
	outcome, err := s.machine.Apply(&updated, req)
	if err != nil {
		return nil, err
	}

	change := domain.StatusChange{OrderID: o.ID, From: outcome.From, To: outcome.To, At: outcome.At}
	if outcome.To == domain.StatusAccepted {
		change.FulfillerID = updated.FulfillerID
	}
	applied, err := s.repo.UpdateStatus(ctx, change)
	if err != nil {
		return nil, fmt.Errorf("persist transition: %w", err)
	}
	if !applied {
		current := o.Status
		if fresh, ferr := s.repo.GetByID(ctx, id); ferr == nil {
			current = fresh.Status
		}
		return nil, &domain.TransitionError{OrderID: o.ID, Current: current, From: from, To: in.To, Reason: "order changed concurrently"}
	}

	s.logger.Info("order transitioned",
		zap.String("order_id", o.ID),
		zap.String("actor_id", actor.ID),
		zap.Stringer("from", outcome.From),
		zap.Stringer("to", outcome.To),
		zap.Strings("warnings", outcome.Warnings))
	s.publish(ctx, events.TypeOrderStatusChanged, updated, outcome.From, actor.ID)
	if outcome.To == domain.StatusCompleted {
		s.publish(ctx, events.TypeOrderCompleted, updated, outcome.From, actor.ID)
	}

	return &TransitionResult{Order: updated, Warnings: outcome.Warnings, Next: s.machine.Next(updated.Status)}, nil
}

// AnnotateItem records what the bound fulfiller actually paid for an item and
// whether it was bought.
func (s *Service) AnnotateItem(ctx context.Context, actor domain.User, orderID, itemID string, in AnnotateInput) (*domain.Order, error) {
	if in.ActualPriceCents != nil && *in.ActualPriceCents < 0 {
		return nil, domain.NewValidationError("actualPriceCents", "must not be negative")
	}
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.FulfilledBy(actor.ID) {
		return nil, domain.ErrForbidden
	}
	if o.Status != domain.StatusShopping {
		return nil, ErrNotShopping
	}
	found := false
	for _, it := range o.Items {
		if it.ID == itemID {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrNotFound
	}

	applied, err := s.repo.AnnotateItem(ctx, orderrepo.ItemAnnotation{
		OrderID:          orderID,
		ItemID:           itemID,
		FulfillerID:      actor.ID,
		ActualPriceCents: in.ActualPriceCents,
		Fulfilled:        in.Fulfilled,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrNotShopping
	}
	return s.repo.GetByID(ctx, orderID)
}

func (s *Service) publish(ctx context.Context, eventType string, o domain.Order, from domain.OrderStatus, actorID string) {
	if err := s.publisher.Publish(ctx, events.FromOrder(eventType, o, from, actorID)); err != nil {
		s.logger.Warn("publish order event failed", zap.String("type", eventType), zap.String("order_id", o.ID), zap.Error(err))
	}
}

func canView(actor domain.User, o domain.Order) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleRequester:
		return o.RequesterID == actor.ID
	case domain.RoleFulfiller:
		return o.FulfilledBy(actor.ID) || (o.Status == domain.StatusPending && o.FulfillerID == nil)
	}
	return false
}

func canTransition(actor domain.User, o domain.Order, to domain.OrderStatus) bool {
	if actor.Role == domain.RoleAdmin {
		return to != domain.StatusAccepted
	}
	switch to {
	case domain.StatusAccepted:
		return actor.Role == domain.RoleFulfiller
	case domain.StatusCancelled:
		return o.RequesterID == actor.ID || o.FulfilledBy(actor.ID)
	default:
		return actor.Role == domain.RoleFulfiller && o.FulfilledBy(actor.ID)
	}
}
