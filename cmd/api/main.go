package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mercadoforte/backend-caixa/internal/app"
	"github.com/mercadoforte/backend-caixa/internal/audit"
	"github.com/mercadoforte/backend-caixa/internal/auth"
	"github.com/mercadoforte/backend-caixa/internal/catalog"
	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/config"
	"github.com/mercadoforte/backend-caixa/internal/expense"
	"github.com/mercadoforte/backend-caixa/internal/health"
	"github.com/mercadoforte/backend-caixa/internal/ledger"
	"github.com/mercadoforte/backend-caixa/internal/obs"
	"github.com/mercadoforte/backend-caixa/internal/ratelimit"
	"github.com/mercadoforte/backend-caixa/internal/report"
	"github.com/mercadoforte/backend-caixa/internal/resilience"
	"github.com/mercadoforte/backend-caixa/internal/sale"
	"github.com/mercadoforte/backend-caixa/internal/security"
	"github.com/mercadoforte/backend-caixa/internal/settings"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("env", cfg.AppEnv).Str("service", "caixa-api").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "caixa")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, prometheus.DefaultRegisterer)
	resilience.MustRegisterMetrics(prometheus.DefaultRegisterer)

	if envBool("OBS_ENABLE_TRACING", true) {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "caixa-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, logger, app.Options{ApplicationName: "caixa-api", RedisMetrics: metricsEnabled})
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer deps.Close()

	svcs, err := app.NewServices(cfg, deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		ClockSkew: 30 * time.Second,
		MaxShift:  cfg.JWTMaxShift,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}
	authMiddleware := auth.Middleware{Verifier: verifier}
	resolver := tenant.NewResolver(cfg.TenantHeader, cfg.DefaultBusinessID)

	limiterStore, err := ratelimit.NewRedisStore(deps.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	limiter, err := ratelimit.New(limiterStore, cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	idem := common.Idem{
		R:   deps.Redis,
		TTL: cfg.IdempotencyTTL,
		Scope: func(r *http.Request) string {
			business, _ := tenant.From(r.Context())
			return business
		},
	}
	auditRecorder := audit.HTTPRecorder{Service: svcs.Audit}

	saleHandler := &sale.Handler{Svc: svcs.Sales}
	catalogHandler := &catalog.Handler{Svc: svcs.Catalog, DefaultPerPage: cfg.CatalogDefaultLimit, MaxPerPage: cfg.CatalogMaxLimit}
	ledgerHandler := &ledger.Handler{Svc: svcs.Ledger}
	expenseHandler := &expense.Handler{Svc: svcs.Expenses}
	reportHandler := &report.Handler{Svc: svcs.Reports}
	settingsHandler := &settings.Handler{Svc: svcs.Settings}
	auditHandler := audit.Handler{Svc: svcs.Audit}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.SpanAnnotator)
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(metricsNamespace, buckets, nil)}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", cfg.TenantHeader},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Probes{Pool: deps.DB, Redis: deps.Redis},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(resolver.Middleware)
		v.Use(authMiddleware.RequireAuth)
		v.Use(tenant.Guard)
		v.Use(ratelimit.Handler{Limiter: limiter}.Middleware)
		v.Use(auditRecorder.Destructive())

		v.Route("/sales/session", func(s chi.Router) {
			s.Use(idem.Middleware)
			saleHandler.Routes(s)
		})
		v.Route("/sales", reportHandler.SaleRoutes)
		v.Get("/reports/sales", reportHandler.Sales)

		v.Route("/products", catalogHandler.Routes)
		v.Get("/stock/balance", catalogHandler.StockBalance)

		v.Route("/clients", ledgerHandler.Routes)
		v.Get("/payments", ledgerHandler.Payments)

		v.Route("/expenses", expenseHandler.Routes)

		v.Get("/settings", settingsHandler.Get)
		v.Put("/settings", settingsHandler.Update)

		v.Get("/audit", auditHandler.List)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           otelhttp.NewHandler(r, "caixa-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		health.SetReady(false)
		logger.Info().Msg("draining")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
