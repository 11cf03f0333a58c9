// Package app wires the checkout service together: configuration,
// database, storefront client, domain services, HTTP surface and
// lifecycle.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/retailhub/checkout-service/internal/currency"
	"github.com/retailhub/checkout-service/internal/domain/checkout"
	"github.com/retailhub/checkout-service/internal/domain/discount"
	"github.com/retailhub/checkout-service/internal/httpapi"
	"github.com/retailhub/checkout-service/internal/repository"
	"github.com/retailhub/checkout-service/internal/storefront"
	"github.com/retailhub/checkout-service/pkg/health"
	"github.com/retailhub/checkout-service/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Storefront client.
	sf := storefront.NewClient(storefront.ClientConfig{
		Endpoint:    cfg.Storefront.Endpoint,
		AccessToken: cfg.Storefront.AccessToken,
		Timeout:     cfg.Storefront.Timeout,
	}, lg)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("storefront", 5*time.Second,
		health.EndpointCheck(nil, cfg.Storefront.Endpoint))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	discountRepo := repository.NewDiscountRepository(pool)
	prefRepo := repository.NewPreferenceRepository(pool)
	rateRepo := repository.NewRateRepository(pool)

	// Discount validation with a bloom prefilter over the known titles.
	validator := discount.NewRepoValidator(discountRepo)
	titles, err := discountRepo.Titles(ctx)
	if err != nil {
		return errors.Wrap(err, "load discount titles")
	}
	if len(titles) > 0 {
		validator = validator.WithFilter(discount.BuildFilter(titles))
		lg.Info("discount prefilter built", zap.Int("titles", len(titles)))
	}

	// Domain services.
	checkoutSvc, err := checkout.NewService(sf, lg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	currencySvc := currency.NewService(rateRepo, currency.NewHTTPFetcher(cfg.RatesURL), lg)

	// HTTP surface: API routes + health endpoints on one server.
	h := httpapi.NewHandler(lg, checkoutSvc, sf, discountRepo, validator, prefRepo, currencySvc)
	h.StartAttemptEviction(ctx)

	router := chi.NewRouter()
	h.Routes(router)
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
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
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
