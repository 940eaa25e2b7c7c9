package cart

import (
	"context"

	"campusrunner/internal/domain"
)

// Repository stores the latest cart snapshot per requester.
type Repository interface {
	SaveCart(ctx context.Context, c domain.Cart) error
	GetByRequester(ctx context.Context, requesterID string) (*domain.Cart, error)
	Delete(ctx context.Context, requesterID string) error
}
