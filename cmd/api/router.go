package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gastro-rechner/internal/common"
	"github.com/noah-isme/gastro-rechner/internal/config"
	"github.com/noah-isme/gastro-rechner/internal/health"
	"github.com/noah-isme/gastro-rechner/internal/identity"
	"github.com/noah-isme/gastro-rechner/internal/obs"
	"github.com/noah-isme/gastro-rechner/internal/ratelimit"
	"github.com/noah-isme/gastro-rechner/internal/security"
	"github.com/noah-isme/gastro-rechner/internal/settings"
	"github.com/noah-isme/gastro-rechner/internal/submission"
)

type routerDeps struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Redis       *redis.Client
	Limiter     ratelimit.Allower
	Tokens      identity.Parser
	Settings    *settings.Handler
	Submissions *submission.Handler
	Health      health.Handler

	HTTPMetrics    *obs.HTTPMetrics
	MetricsEnabled bool
	TracingEnabled bool
	PprofEnabled   bool
	PprofUser      string
	PprofPass      string
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if d.MetricsEnabled && d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{
		Enable:                cfg.SecurityHeaders,
		EnableHSTS:            cfg.SecurityHSTS,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition", "Location", "Retry-After"},
		AllowCredentials: len(cfg.CORSAllowedOrigins) > 0,
		MaxAge:           300,
	}))

	if d.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), d.PprofUser, d.PprofPass))
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	auth := identity.Middleware{Tokens: d.Tokens, AccessCookie: cfg.AccessCookieName}
	onLimiterError := func(err error) {
		d.Logger.Warn().Err(err).Msg("rate limiter unavailable")
	}
	readLimit := ratelimit.Handler{
		Limiter: d.Limiter,
		Config:  ratelimit.Config{Key: ratelimit.ByCaller("read"), Window: cfg.RateLimitWindow, Max: cfg.RateLimitReadMax},
		OnError: onLimiterError,
	}
	writeLimit := ratelimit.Handler{
		Limiter: d.Limiter,
		Config:  ratelimit.Config{Key: ratelimit.ByCaller("write"), Window: cfg.RateLimitWindow, Max: cfg.RateLimitWriteMax},
		OnError: onLimiterError,
	}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL, Prefix: "gastro:idem:"}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		v.Use(auth.Authenticate)
		v.Use(security.CSRF{AccessCookie: cfg.AccessCookieName, Secure: cfg.IsProduction()}.Middleware)

		v.Group(func(read chi.Router) {
			read.Use(readLimit.Middleware)
			read.Get("/settings", d.Settings.Get)
			read.Group(func(gated chi.Router) {
				if cfg.ReadRequiresAuth {
					gated.Use(auth.RequireAuth)
				}
				gated.Get("/submissions", d.Submissions.List)
				gated.Get("/submissions/totals", d.Submissions.Totals)
				gated.Get("/submissions/export.csv", d.Submissions.ExportCSV)
				gated.Get("/submissions/export.xlsx", d.Submissions.ExportXLSX)
				gated.Get("/submissions/{id}", d.Submissions.Get)
			})
		})

		v.Group(func(write chi.Router) {
			write.Use(writeLimit.Middleware)
			write.With(idem.Middleware).Post("/submissions", d.Submissions.Create)
			write.Put("/submissions/{id}", d.Submissions.Update)
			write.Delete("/submissions/{id}", d.Submissions.Delete)
			write.Delete("/submissions", d.Submissions.ClearAll)
			write.Put("/admin/settings", d.Settings.Update)
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
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
