package order

import (
	"context"

	"campusrunner/internal/domain"
)

// ItemAnnotation is a fulfiller's note on one order item while shopping.
type ItemAnnotation struct {
	OrderID          string
	ItemID           string
	FulfillerID      string
	ActualPriceCents *int64
	Fulfilled        bool
}

// Repository is the order persistence collaborator. UpdateStatus and AnnotateItem
// are conditional writes and report whether they applied.
type Repository interface {
	CreateOrder(ctx context.Context, o domain.Order) (domain.OrderRef, error)
	AddOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListForActor(ctx context.Context, actor domain.User) ([]domain.Order, error)
	ListAvailable(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, change domain.StatusChange) (bool, error)
	AnnotateItem(ctx context.Context, a ItemAnnotation) (bool, error)
}
