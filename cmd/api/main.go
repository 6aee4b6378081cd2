package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aravindkp/shopsphere-backend/api/routes"
	"github.com/aravindkp/shopsphere-backend/internal/address"
	"github.com/aravindkp/shopsphere-backend/internal/cart"
	checkoutsvc "github.com/aravindkp/shopsphere-backend/internal/checkout"
	"github.com/aravindkp/shopsphere-backend/internal/coupons"
	"github.com/aravindkp/shopsphere-backend/internal/offers"
	"github.com/aravindkp/shopsphere-backend/internal/orders"
	"github.com/aravindkp/shopsphere-backend/internal/products"
	"github.com/aravindkp/shopsphere-backend/internal/stock"
	"github.com/aravindkp/shopsphere-backend/internal/wallet"
	"github.com/aravindkp/shopsphere-backend/pkg/config"
	"github.com/aravindkp/shopsphere-backend/pkg/db"
	"github.com/aravindkp/shopsphere-backend/pkg/gateway"
	"github.com/aravindkp/shopsphere-backend/pkg/logger"
	"github.com/aravindkp/shopsphere-backend/pkg/metrics"
	"github.com/aravindkp/shopsphere-backend/pkg/migrate"
	"github.com/aravindkp/shopsphere-backend/pkg/outbox"
	"github.com/aravindkp/shopsphere-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}

	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	productsRepo := products.NewRepository(dbClient.DB())
	offersRepo := offers.NewRepository(dbClient.DB())
	couponsRepo := coupons.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())

	addressService, err := address.NewService(address.NewRepository(dbClient.DB()))
	requireService(logg, "address", err)
	cartService, err := cart.NewService(cartRepo, productsRepo, cfg.Shipping.MaxItemsPerLine)
	requireService(logg, "cart", err)
	stockService, err := stock.NewService(stock.NewRepository(dbClient.DB()), logg)
	requireService(logg, "stock", err)
	walletService, err := wallet.NewService(wallet.NewRepository(dbClient.DB()))
	requireService(logg, "wallet", err)

	ordersService, err := orders.NewService(dbClient, ordersRepo, stockService, walletService, couponsRepo, events, checkoutMetrics, logg, cfg.Shipping.ReturnReasonChars)
	requireService(logg, "orders", err)

	checkoutService, err := checkoutsvc.NewService(
		dbClient,
		ordersRepo,
		cartRepo,
		productsRepo,
		offersRepo,
		couponsRepo,
		addressService,
		stockService,
		walletService,
		gatewayClient,
		events,
		checkoutMetrics,
		logg,
		cfg.Shipping,
	)
	requireService(logg, "checkout", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			cartService,
			addressService,
			checkoutService,
			ordersRepo,
			ordersService,
			walletService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
