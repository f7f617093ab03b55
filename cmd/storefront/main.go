package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/pawmart/storefront/api/routes"
	"github.com/pawmart/storefront/internal/backend"
	"github.com/pawmart/storefront/internal/cart"
	"github.com/pawmart/storefront/internal/catalog"
	"github.com/pawmart/storefront/internal/chat"
	"github.com/pawmart/storefront/internal/orders"
	"github.com/pawmart/storefront/internal/reviews"
	"github.com/pawmart/storefront/internal/session"
	"github.com/pawmart/storefront/internal/wishlist"
	"github.com/pawmart/storefront/pkg/config"
	"github.com/pawmart/storefront/pkg/localstore"
	"github.com/pawmart/storefront/pkg/logger"
	"github.com/pawmart/storefront/pkg/metrics"
)

const shutdownGrace = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := openStore(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open local store", err)
		os.Exit(1)
	}

	backendClient, err := backend.New(cfg.Backend, logg)
	if err != nil {
		logg.Error(ctx, "failed to create backend client", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(session.ManagerParams{
		API:    backendClient,
		Store:  kv,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}
	sessionManager.Restore(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cartStore, err := cart.NewStore(cart.StoreParams{
		KV:          kv,
		Remote:      cart.NewBackendRemote(backendClient),
		Identity:    sessionManager,
		Logger:      logg,
		Metrics:     metrics.NewCartMetrics(registry),
		NoticeTTL:   cfg.Cart.NoticeTTL,
		SyncTimeout: cfg.Cart.SyncTimeout,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cart store", err)
		os.Exit(1)
	}
	cartStore.Init(ctx)

	catalogService, err := catalog.NewService(catalog.ServiceParams{API: backendClient})
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	wishlistService, err := wishlist.NewService(wishlist.ServiceParams{
		KV:       kv,
		API:      backendClient,
		Identity: sessionManager,
		Cart:     cartStore,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create wishlist service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		KV:       kv,
		Cart:     cartStore,
		API:      backendClient,
		Identity: sessionManager,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create order service", err)
		os.Exit(1)
	}

	reviewService, err := reviews.NewService(reviews.ServiceParams{
		KV:        kv,
		API:       backendClient,
		Purchases: orderService,
		Identity:  sessionManager,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create review service", err)
		os.Exit(1)
	}

	var chatService chat.Service
	if cfg.Chat.WSBaseURL != "" {
		chatService, err = chat.NewService(chat.ServiceParams{
			API:    backendClient,
			Jar:    backendClient.HTTPClient().Jar,
			Config: cfg.Chat,
			Logger: logg,
		})
		if err != nil {
			logg.Error(ctx, "failed to create chat service", err)
			os.Exit(1)
		}
	} else {
		logg.Info(ctx, "chat ws base url not set, support chat disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting storefront server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			Cart:     cartStore,
			Merger:   cartStore,
			Session:  sessionManager,
			Register: backendClient,
			Catalog:  catalogService,
			Wishlist: wishlistService,
			Orders:   orderService,
			Reviews:  reviewService,
			Chat:     chatService,
			Registry: registry,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logg.Info(context.Background(), "shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "storefront server stopped unexpectedly", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	if chatService != nil {
		closeErr = multierr.Append(closeErr, chatService.Close())
	}
	closeErr = multierr.Append(closeErr, cartStore.Close())
	closeErr = multierr.Append(closeErr, kv.Close())
	if closeErr != nil {
		logg.Error(shutdownCtx, "error during shutdown", closeErr)
		os.Exit(1)
	}
	logg.Info(shutdownCtx, "storefront stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (localstore.KV, error) {
	if cfg.Store.Driver == config.StoreDriverRedis {
		return localstore.OpenRedis(ctx, cfg.Redis, logg)
	}
	return localstore.OpenSQLite(ctx, cfg.Store, logg)
}
