package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valyala/fasthttp"

	"advisorgate/internal/auth"
	"advisorgate/internal/billing"
	"advisorgate/internal/config"
	"advisorgate/internal/db"
	"advisorgate/internal/http/handlers"
	"advisorgate/internal/ledger"
	"advisorgate/internal/logging"
	"advisorgate/internal/metrics"
	"advisorgate/internal/provider"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	limits, err := config.NewLimitsWatcher(cfg.LimitsFile, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load tier limits")
	}
	if err := limits.Watch(ctx); err != nil {
		log.Warn().Err(err).Msg("tier limits will not hot-reload")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	l := ledger.New(sqlDB, limits,
		ledger.WithLogger(log),
		// A reservation outlives the upstream call plus the history insert.
		ledger.WithPendingTTL(cfg.Provider.Timeout+time.Minute),
	)
	scheduler := ledger.NewScheduler(l, cfg.ResyncSchedule, m, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start resync scheduler")
	}

	verifier, err := auth.NewFromConfig(ctx, cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init token verifier")
	}

	var subs billing.SubscriptionChecker
	if cfg.Stripe.SecretKey != "" {
		subs = billing.NewStripeClient(cfg.Stripe.SecretKey)
	}

	handler := handlers.Routes(handlers.Services{
		Config: cfg,
		Ledger: l,
		Provider: provider.NewOpenAI(provider.Options{
			BaseURL: cfg.Provider.BaseURL,
			APIKey:  cfg.Provider.APIKey,
			Model:   cfg.Provider.Model,
			Timeout: cfg.Provider.Timeout,
		}),
		Verifier: verifier,
		Billing:  billing.NewSync(l, subs, cfg.Stripe.WebhookSecret, log),
		Metrics:  m,
		Log:      log,
	})

	server := &fasthttp.Server{
		Handler:      handler,
		Name:         "advisorgate",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Provider.Timeout + 30*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Provider.Timeout+5*time.Second)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("advisorgate listening")
	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	scheduler.Stop()
}
