package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atmx/landed-cost/internal/api"
	"github.com/atmx/landed-cost/internal/config"
	"github.com/atmx/landed-cost/internal/db"
	"github.com/atmx/landed-cost/internal/fees"
	"github.com/atmx/landed-cost/internal/landed"
	"github.com/atmx/landed-cost/internal/metrics"
	"github.com/atmx/landed-cost/internal/policy"
	"github.com/atmx/landed-cost/internal/pricing"
	"github.com/atmx/landed-cost/internal/ratematrix"
	"github.com/atmx/landed-cost/internal/store"
	"github.com/atmx/landed-cost/internal/tariff"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Money goes over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	cfg := config.Load()

	// --- Initialize reference store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL.String())
		}
	} else {
		var tables store.Tables
		var err error
		if cfg.ReferenceDataFile != "" {
			slog.Info("loading reference tables", "file", cfg.ReferenceDataFile)
			tables, err = store.LoadTablesFile(cfg.ReferenceDataFile)
		} else {
			slog.Warn("DATABASE_URL not set, using bundled reference tables")
			tables, err = store.DefaultTables()
		}
		if err != nil {
			slog.Error("reference tables invalid", "err", err)
			os.Exit(1)
		}
		st = store.NewMemoryStore(tables)
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Pricing engine ---
	solver := landed.NewSolver(
		ratematrix.NewResolver(st),
		tariff.NewResolver(st),
		fees.NewResolver(st, fees.Config{
			InternationalFeeRate:   cfg.InternationalFeeRate,
			PaymentFeeRate:         cfg.PaymentFeeRate,
			DefaultInsertionFeeUSD: cfg.DefaultInsertionFeeUSD,
			DefaultFVFRate:         cfg.DefaultFVFRate,
		}),
		landed.Config{
			MaxIterations: cfg.SolverMaxIterations,
			Tolerance:     cfg.SolverToleranceUSD,
		},
	)
	selector := policy.NewSelector(st, cfg.DefaultPolicyName)
	engine := pricing.NewEngine(solver, selector, cfg.BatchConcurrency)

	// --- WebSocket feed ---
	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	feed := api.NewQuoteFeed()
	go feed.Run(feedCtx)

	quoteSvc := api.NewService(engine, st, feed)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for dashboard cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"landed-cost"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket feed of computed quotes. Registered outside the timeout
		// group so long-lived connections are not cut.
		r.Get("/ws", feed.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			// Quoting.
			r.Post("/quotes", quoteSvc.CreateQuote)
			r.Post("/quotes/batch", quoteSvc.CreateQuoteBatch)

			// Catalog inspection.
			r.Get("/policies", quoteSvc.ListPolicies)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("landed-cost listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down landed-cost...")
	stopFeed()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("landed-cost stopped")
}
