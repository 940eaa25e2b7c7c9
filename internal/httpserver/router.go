package httpserver

import (
	"context"
	"errors"
	"slices"
	"time"

	"campusrunner/internal/cart"
	"campusrunner/internal/checkout"
	"campusrunner/internal/domain"
	"campusrunner/internal/formcache"
	ordersvc "campusrunner/internal/service/order"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type catalogService interface {
	Categories(ctx context.Context) ([]domain.Category, error)
	ItemsByCategory(ctx context.Context, categoryID string) ([]domain.CatalogItem, error)
	Item(ctx context.Context, id string) (*domain.CatalogItem, error)
}

type cartSessions interface {
	Get(ctx context.Context, requesterID string) (*cart.Store, error)
	AddCatalogItem(ctx context.Context, requesterID, itemID string, quantity int, notes string) (domain.Cart, error)
}

type checkoutService interface {
	Submit(ctx context.Context, requester domain.User, c checkout.Cart, info domain.DeliveryInfo, method domain.PaymentMethod) (*checkout.Result, error)
}

type orderService interface {
	Get(ctx context.Context, actor domain.User, id string) (*domain.Order, error)
	OrdersForActor(ctx context.Context, actor domain.User) ([]domain.Order, error)
	ListAvailable(ctx context.Context, actor domain.User) ([]domain.Order, error)
	Transition(ctx context.Context, actor domain.User, id string, in ordersvc.TransitionInput) (*ordersvc.TransitionResult, error)
	AnnotateItem(ctx context.Context, actor domain.User, orderID, itemID string, in ordersvc.AnnotateInput) (*domain.Order, error)
	Next(status domain.OrderStatus) []domain.OrderStatus
}

// Deps carries the services the routes delegate to.
type Deps struct {
	CatalogSvc     catalogService
	Carts          cartSessions
	Checkout       checkoutService
	Drafts         formcache.Cache
	OrderSvc       orderService
	AllowedOrigins []string
	Now            func() time.Time
}

type handlers struct {
	Deps
	logger *zap.Logger
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db pinger, deps Deps) (*gin.Engine, error) {
	if deps.CatalogSvc == nil || deps.Carts == nil || deps.Checkout == nil || deps.OrderSvc == nil {
		return nil, errors.New("httpserver: catalog, cart, checkout and order services are required")
	}
	if deps.Drafts == nil {
		deps.Drafts = formcache.NewMemory()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	h := &handlers{Deps: deps, logger: logger}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery(), cors.New(corsConfig(deps.AllowedOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	v1 := router.Group("/v1", identityMiddleware())

	v1.GET("/categories", h.listCategories)
	v1.GET("/categories/:id/items", h.listCategoryItems)
	v1.GET("/items/:id", h.getItem)

	requester := v1.Group("", requireRole(domain.RoleRequester))
	requester.GET("/cart", h.getCart)
	requester.POST("/cart/items", h.addCartItem)
	requester.POST("/cart/custom-items", h.addCustomItem)
	requester.PUT("/cart/custom-items/:lineId", h.updateCustomItem)
	requester.PATCH("/cart/items/:lineId", h.updateCartLine)
	requester.DELETE("/cart/items/:lineId", h.removeCartLine)
	requester.DELETE("/cart", h.clearCart)
	requester.PUT("/cart/delivery", h.updateDelivery)

	requester.GET("/checkout/draft", h.getDraft)
	requester.PUT("/checkout/draft", h.saveDraft)
	requester.DELETE("/checkout/draft", h.deleteDraft)
	requester.POST("/checkout", h.submitCheckout)

	v1.GET("/orders", h.listOrders)
	v1.GET("/orders/available", h.listAvailableOrders)
	v1.GET("/orders/:id", h.getOrder)
	v1.POST("/orders/:id/transitions", h.transitionOrder)
	v1.PUT("/orders/:id/items/:itemId", h.annotateOrderItem)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", headerUserID, headerUserRole},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
