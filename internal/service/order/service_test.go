package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"campusrunner/internal/domain"
	"campusrunner/internal/events"
	"campusrunner/internal/orderstate"
	orderrepo "campusrunner/internal/repository/order"
)

type stubRepo struct {
	orders         map[string]domain.Order
	rejectUpdate   bool
	racedStatus    domain.OrderStatus
	lastChange     domain.StatusChange
	lastAnnotation orderrepo.ItemAnnotation
	lastActor      domain.User
}

func (s *stubRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := o.Clone()
	return &cp, nil
}

func (s *stubRepo) ListForActor(_ context.Context, actor domain.User) ([]domain.Order, error) {
	s.lastActor = actor
	return []domain.Order{s.orders["o1"]}, nil
}

func (s *stubRepo) ListAvailable(context.Context) ([]domain.Order, error) {
	return []domain.Order{s.orders["o1"]}, nil
}

func (s *stubRepo) UpdateStatus(_ context.Context, change domain.StatusChange) (bool, error) {
	s.lastChange = change
	if s.rejectUpdate {
		o := s.orders[change.OrderID]
		o.Status = s.racedStatus
		s.orders[change.OrderID] = o
		return false, nil
	}
	o := s.orders[change.OrderID]
	o.Status = change.To
	if change.FulfillerID != nil {
		o.FulfillerID = change.FulfillerID
	}
	s.orders[change.OrderID] = o
	return true, nil
}

func (s *stubRepo) AnnotateItem(_ context.Context, a orderrepo.ItemAnnotation) (bool, error) {
	s.lastAnnotation = a
	o := s.orders[a.OrderID]
	for i := range o.Items {
		if o.Items[i].ID == a.ItemID {
			o.Items[i].ActualPriceCents = a.ActualPriceCents
			o.Items[i].Fulfilled = a.Fulfilled
		}
	}
	s.orders[a.OrderID] = o
	return true, nil
}

type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

var (
	student = domain.User{ID: "student-1", Role: domain.RoleRequester}
	runner  = domain.User{ID: "runner-1", Role: domain.RoleFulfiller}
	other   = domain.User{ID: "runner-2", Role: domain.RoleFulfiller}
	admin   = domain.User{ID: "admin-1", Role: domain.RoleAdmin}
)

func pendingOrder() domain.Order {
	return domain.Order{
		ID:          "o1",
		Number:      "CR-000001",
		RequesterID: student.ID,
		Status:      domain.StatusPending,
		Items:       []domain.OrderItem{{ID: "i1", Name: "Rice", UnitPriceCents: 1000, Quantity: 1}},
	}
}

func bound(status domain.OrderStatus) domain.Order {
	o := pendingOrder()
	id := runner.ID
	o.FulfillerID = &id
	o.Status = status
	return o
}

func newService(repo *stubRepo, pub events.Publisher) *Service {
	machine := orderstate.New(orderstate.Policy{}).WithClock(func() time.Time {
		return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	})
	return New(repo, machine, pub, nil)
}

func TestTransitionAcceptBindsFulfiller(t *testing.T) {
	repo := &stubRepo{orders: map[string]domain.Order{"o1": pendingOrder()}}
	pub := &capturePublisher{}
	svc := newService(repo, pub)

	res, err := svc.Transition(context.Background(), runner, "o1", TransitionInput{From: domain.StatusPending, To: domain.StatusAccepted})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.Status != domain.StatusAccepted || !res.Order.FulfilledBy(runner.ID) || res.Order.AcceptedAt == nil {
		t.Fatalf("unexpected order %+v", res.Order)
	}
	if repo.lastChange.FulfillerID == nil || *repo.lastChange.FulfillerID != runner.ID || repo.lastChange.From != domain.StatusPending {
		t.Fatalf("unexpected change %+v", repo.lastChange)
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.TypeOrderStatusChanged {
		t.Fatalf("unexpected events %+v", pub.events)
	}
	if len(res.Next) != 2 || res.Next[0] != domain.StatusShopping {
		t.Fatalf("unexpected next states %v", res.Next)
	}
}

func TestTransitionLostRaceReportsCurrentState(t *testing.T) {
	repo := &stubRepo{orders: map[string]domain.Order{"o1": pendingOrder()}, rejectUpdate: true, racedStatus: domain.StatusAccepted}
	pub := &capturePublisher{}
	svc := newService(repo, pub)

	_, err := svc.Transition(context.Background(), runner, "o1", TransitionInput{To: domain.StatusAccepted})
	var terr *domain.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected transition error, got %v", err)
	}
	if terr.Current != domain.StatusAccepted {
		t.Fatalf("expected current accepted, got %s", terr.Current)
	}
	if len(pub.events) != 0 {
		t.Fatalf("no event expected on a lost race")
	}
}

func TestTransitionStaleFromIsRejected(t *testing.T) {
	repo := &stubRepo{orders: map[string]domain.Order{"o1": bound(domain.StatusShopping)}}
	svc := newService(repo, nil)

	_, err := svc.Transition(context.Background(), runner, "o1", TransitionInput{From: domain.StatusAccepted, To: domain.StatusShopping})
	var terr *domain.TransitionError
	if !errors.As(err, &terr) || terr.Current != domain.StatusShopping {
		t.Fatalf("expected stale-state rejection, got %v", err)
	}
}

func TestTransitionCompletedPublishesSettlementEvent(t *testing.T) {
	repo := &stubRepo{orders: map[string]domain.Order{"o1": bound(domain.StatusDelivering)}}
	pub := &capturePublisher{}
	svc := newService(repo, pub)

	res, err := svc.Transition(context.Background(), runner, "o1", TransitionInput{To: domain.StatusCompleted})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.CompletedAt == nil {
		t.Fatalf("completion must be stamped")
	}
	if len(pub.events) != 2 || pub.events[1].Type != events.TypeOrderCompleted || pub.events[1].From != domain.StatusDelivering {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestTransitionDeliveringWarnsAboutUnboughtItems(t *testing.T) {
	repo := &stubRepo{orders: map[string]domain.Order{"o1": bound(domain.StatusShopping)}}
	svc := newService(repo, nil)

	res, err := svc.Transition(context.Background(), runner, "o1", TransitionInput{To: domain.StatusDelivering})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", res.Warnings)
	}
}

func TestTransitionAuthorization(t *testing.T) {
	cases := []struct {
		name  string
		order domain.Order
		actor domain.User
		to    domain.OrderStatus
		err   error
	}{
		{"requester cannot accept", pendingOrder(), student, domain.StatusAccepted, domain.ErrForbidden},
		{"other fulfiller cannot shop", bound(domain.StatusAccepted), other, domain.StatusShopping, domain.ErrForbidden},
		{"requester cannot complete", bound(domain.StatusDelivering), student, domain.StatusCompleted, domain.ErrForbidden},
		{"stranger cannot cancel", pendingOrder(), other, domain.StatusCancelled, domain.ErrForbidden},
		{"admin cannot accept", pendingOrder(), admin, domain.StatusAccepted, domain.ErrForbidden},
		{"requester cancels pending", pendingOrder(), student, domain.StatusCancelled, nil},
		{"fulfiller cancels while shopping", bound(domain.StatusShopping), runner, domain.StatusCancelled, nil},
		{"admin cancels", bound(domain.StatusAccepted), admin, domain.StatusCancelled, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubRepo{orders: map[string]domain.Order{"o1": tc.order}}
			_, err := newService(repo, nil).Transition(context.Background(), tc.actor, "o1", TransitionInput{To: tc.to})
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestTransitionCancelWhileDeliveringRejected(t *testing.T) {
	repo := &stubRepo{orders: map[string]domain.Order{"o1": bound(domain.StatusDelivering)}}
	_, err := newService(repo, nil).Transition(context.Background(), student, "o1", TransitionInput{To: domain.StatusCancelled})
	var terr *domain.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected transition error, got %v", err)
	}
}

func TestGetVisibility(t *testing.T) {
	repo := &stubRepo{orders: map[string]domain.Order{"o1": pendingOrder()}}
	svc := newService(repo, nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx, student, "o1"); err != nil {
		t.Fatalf("owner must see order: %v", err)
	}
	if _, err := svc.Get(ctx, other, "o1"); err != nil {
		t.Fatalf("fulfiller must see open order: %v", err)
	}
	if _, err := svc.Get(ctx, domain.User{ID: "student-2", Role: domain.RoleRequester}, "o1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	repo.orders["o1"] = bound(domain.StatusAccepted)
	if _, err := svc.Get(ctx, other, "o1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("claimed order must be hidden from other fulfillers, got %v", err)
	}
	if _, err := svc.Get(ctx, student, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListAvailableRequiresFulfiller(t *testing.T) {
	svc := newService(&stubRepo{orders: map[string]domain.Order{"o1": pendingOrder()}}, nil)
	if _, err := svc.ListAvailable(context.Background(), student); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	list, err := svc.ListAvailable(context.Background(), runner)
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected result %v %v", list, err)
	}
}

func TestAnnotateItem(t *testing.T) {
	repo := &stubRepo{orders: map[string]domain.Order{"o1": bound(domain.StatusShopping)}}
	svc := newService(repo, nil)
	price := int64(900)

	o, err := svc.AnnotateItem(context.Background(), runner, "o1", "i1", AnnotateInput{ActualPriceCents: &price, Fulfilled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !o.Items[0].Fulfilled || *o.Items[0].ActualPriceCents != 900 {
		t.Fatalf("annotation not applied %+v", o.Items[0])
	}
	if repo.lastAnnotation.FulfillerID != runner.ID {
		t.Fatalf("unexpected annotation %+v", repo.lastAnnotation)
	}

	if _, err := svc.AnnotateItem(context.Background(), other, "o1", "i1", AnnotateInput{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.AnnotateItem(context.Background(), runner, "o1", "nope", AnnotateInput{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	neg := int64(-1)
	var verr *domain.ValidationError
	if _, err := svc.AnnotateItem(context.Background(), runner, "o1", "i1", AnnotateInput{ActualPriceCents: &neg}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	repo.orders["o1"] = bound(domain.StatusDelivering)
	if _, err := svc.AnnotateItem(context.Background(), runner, "o1", "i1", AnnotateInput{Fulfilled: true}); !errors.Is(err, ErrNotShopping) {
		t.Fatalf("expected ErrNotShopping, got %v", err)
	}
}

func TestOrdersForActorDelegates(t *testing.T) {
	repo := &stubRepo{orders: map[string]domain.Order{"o1": pendingOrder()}}
	if _, err := newService(repo, nil).OrdersForActor(context.Background(), runner); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastActor != runner {
		t.Fatalf("actor not forwarded: %+v", repo.lastActor)
	}
}
