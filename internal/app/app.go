package app

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/auth"
	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/collection"
	"github.com/xenking/storefront/internal/domain/dashboard"
	"github.com/xenking/storefront/internal/domain/favorite"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/sale"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/events"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/queue"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/internal/upload"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	ctx = zctx.Base(ctx, lg)

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(health.Options{})
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Add(health.Liveness, "gc-pause", time.Second, health.GCMaxPauseCheck(time.Second))

	// Catalog cache.
	catalogCache, closeCache, err := cache.New(ctx, cache.Config{
		Driver:    cache.Driver(cfg.Cache.Driver),
		RedisURL:  cfg.Cache.RedisURL,
		KeyPrefix: cfg.Cache.KeyPrefix,
		Capacity:  cfg.Cache.Capacity,
	})
	if err != nil {
		return errors.Wrap(err, "create cache")
	}
	defer func() { _ = closeCache() }()

	limiter, closeLimiter, err := rateLimitStore(ctx, cfg, catalogCache)
	if err != nil {
		return errors.Wrap(err, "create rate limit store")
	}
	defer func() { _ = closeLimiter() }()

	if rdb, ok := catalogCache.(*cache.Redis); ok {
		healthSvc.Add(health.Readiness, "redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Client().Ping(ctx).Err()
		})
	}

	// Order events.
	var publisher events.Publisher = events.Noop{}
	if len(cfg.Events.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		defer func() { _ = kp.Close() }()
		publisher = kp
		brokers := cfg.Events.Brokers
		healthSvc.Add(health.Readiness, "kafka", 3*time.Second, func(ctx context.Context) error {
			return events.Ping(ctx, brokers)
		})
	}

	// Background jobs.
	jobs, err := queue.New(lg.Named("queue"), m.MeterProvider().Meter("storefront/queue"))
	if err != nil {
		return errors.Wrap(err, "create queue")
	}
	queue.RegisterDefaults(jobs)

	// Uploads.
	uploads, err := upload.New(upload.Config{
		Root:         cfg.Upload.Root,
		MaxSize:      cfg.Upload.MaxSize,
		MaxDimension: cfg.Upload.MaxDimension,
		MaxPixels:    cfg.Upload.MaxPixels,
		Quality:      cfg.Upload.Quality,
		PublicPrefix: cfg.Upload.PublicPrefix,
	})
	if err != nil {
		return errors.Wrap(err, "create upload storage")
	}
	healthSvc.Add(health.Readiness, "uploads", time.Second, health.DirWritableCheck(uploads.Root()))

	// Auth.
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return errors.Wrap(err, "create token issuer")
	}
	policy, err := auth.DefaultPolicy()
	if err != nil {
		return errors.Wrap(err, "load access policy")
	}
	guard := auth.NewGuard(policy, tokens, handler.WriteError)

	// Repositories.
	userRepo := repository.NewUserRepository(pool)
	productRepo := repository.NewProductRepository(pool)

	// Domain services.
	products := product.NewService(productRepo, repository.NewReferences(pool), catalogCache,
		product.WithTTL(cfg.Cache.ProductTTL, cfg.Cache.ProductListTTL),
	)
	svc := handler.Services{
		Users: user.NewService(userRepo, auth.NewHasher(), tokens),
		Categories: category.NewService(
			repository.NewCategoryRepository(pool),
			repository.NewSubcategoryRepository(pool),
			products,
		),
		Collections: collection.NewService(repository.NewCollectionRepository(pool), products),
		Products:    products,
		Sales:       sale.NewService(repository.NewSaleRepository(pool), productRepo),
		Carts:       cart.NewService(repository.NewCartRepository(pool), productRepo),
		Favorites:   favorite.NewService(repository.NewFavoriteRepository(pool), productRepo),
		Orders: order.NewService(
			repository.NewOrderRepository(pool),
			repository.NewAddressRepository(pool),
			userRepo,
			productRepo,
			products,
			publisher,
			jobs,
		),
		Dashboard: dashboard.NewService(repository.NewDashboardRepository(pool)),
		Uploads:   uploads,
		Jobs:      jobs,
	}

	h := handler.New(handler.Config{
		UploadsDir:    uploads.Root(),
		UploadsPrefix: uploads.PublicPrefix(),
	}, svc)
	router, err := h.Router(guard, healthSvc)
	if err != nil {
		return errors.Wrap(err, "build router")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		if err := jobs.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("Queue stopped", zap.Error(err))
		}
	}()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			chimw.RealIP,
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Store:  limiter,
			}),
			httpmiddleware.Instrument(serviceName, m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		<-queueDone
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// rateLimitStore returns the counter store selected by cfg. The redis backend
// shares the cache connection when the cache runs on redis too.
func rateLimitStore(ctx context.Context, cfg *Config, c cache.Provider) (httpmiddleware.RateLimitStore, func() error, error) {
	noop := func() error { return nil }
	if cfg.RateLimit.Backend != "redis" {
		return nil, noop, nil
	}
	if rdb, ok := c.(*cache.Redis); ok {
		return httpmiddleware.NewRedisStore(rdb.Client(), cfg.Cache.KeyPrefix, cfg.RateLimit.Max, cfg.RateLimit.Window), noop, nil
	}
	rdb, err := cache.DialRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.KeyPrefix)
	if err != nil {
		return nil, nil, err
	}
	return httpmiddleware.NewRedisStore(rdb.Client(), cfg.Cache.KeyPrefix, cfg.RateLimit.Max, cfg.RateLimit.Window), rdb.Close, nil
}
