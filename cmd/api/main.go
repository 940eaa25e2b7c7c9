package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"campusrunner/internal/cart"
	"campusrunner/internal/checkout"
	"campusrunner/internal/config"
	"campusrunner/internal/db"
	"campusrunner/internal/domain"
	"campusrunner/internal/events"
	"campusrunner/internal/formcache"
	"campusrunner/internal/httpserver"
	"campusrunner/internal/logging"
	"campusrunner/internal/orderstate"
	"campusrunner/internal/pricing"
	cartrepo "campusrunner/internal/repository/cart"
	catalogrepo "campusrunner/internal/repository/catalog"
	orderrepo "campusrunner/internal/repository/order"
	cartsvc "campusrunner/internal/service/cart"
	catalogsvc "campusrunner/internal/service/catalog"
	ordersvc "campusrunner/internal/service/order"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const checkoutLockTTL = 30 * time.Second

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New("api", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	policy := pricing.Policy{
		DeliveryFeeCents: cfg.DeliveryFeeCents,
		ServiceFeeRate:   cfg.ServiceFeeRate,
		MethodRates:      map[domain.PaymentMethod]decimal.Decimal{domain.PaymentCash: cfg.CashServiceFeeRate},
	}
	phone, err := regexp.Compile(cfg.PhonePattern)
	if err != nil {
		logger.Fatal("invalid phone pattern", zap.String("pattern", cfg.PhonePattern), zap.Error(err))
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		writer := events.NewWriter(cfg.KafkaBrokers)
		defer writer.Close()
		publisher = events.NewKafkaPublisher(writer, cfg.KafkaOrderTopic, logger)
		logger.Info("publishing order events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaOrderTopic))
	}

	var (
		drafts formcache.Cache = formcache.NewMemory()
		guard  checkout.Guard  = checkout.NewLocalGuard()
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		drafts = formcache.NewRedis(rdb, cfg.FormCacheTTL)
		guard = checkout.NewRedisGuard(rdb, checkoutLockTTL)
		logger.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	}

	catalogService := catalogsvc.New(catalogrepo.NewPostgres(dbpool))
	carts := cartsvc.New(cartrepo.NewPostgres(dbpool), catalogService, policy, cart.Rules{
		MinCustomNameLength:  cfg.MinCustomNameLength,
		MaxCustomBudgetCents: cfg.MaxCustomBudgetCents,
	}, logger.Named("cart"))
	defer carts.Close()
	evictCtx, stopEviction := context.WithCancel(ctx)
	defer stopEviction()
	go carts.RunEviction(evictCtx, cfg.CartIdleTimeout)

	orders := orderrepo.NewPostgres(dbpool)
	machine := orderstate.New(orderstate.Policy{CancelWhileDelivering: cfg.OrderCancelWhileDelivering})
	orderService := ordersvc.New(orders, machine, publisher, logger.Named("orders"))

	coordinator := checkout.New(orders,
		checkout.WithGuard(guard),
		checkout.WithPayments(checkout.NewLinkInitiator(cfg.PaymentBaseURL)),
		checkout.WithDrafts(drafts),
		checkout.WithPublisher(publisher),
		checkout.WithPolicy(policy),
		checkout.WithPhonePattern(phone),
		checkout.WithAttachRetry(cfg.ItemAttachAttempts, 200*time.Millisecond),
		checkout.WithLogger(logger.Named("checkout")),
	)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		CatalogSvc:     catalogService,
		Carts:          carts,
		Checkout:       coordinator,
		Drafts:         drafts,
		OrderSvc:       orderService,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
