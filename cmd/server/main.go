// main wires the payment reconciliation server: config from the environment,
// durable stores (or their in-memory stand-ins), the rate limiter with its
// fail-closed fallback, the webhook and intake surfaces, and the notification
// dispatcher. Business logic lives in the internal service packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	httpapi "paydesk/internal/http"
	ihandler "paydesk/internal/intake/handler"
	isvc "paydesk/internal/intake/service"
	"paydesk/internal/intake/store/contact"
	"paydesk/internal/notify"
	"paydesk/internal/platform/config"
	"paydesk/internal/platform/httpserver"
	"paydesk/internal/platform/logger"
	"paydesk/internal/platform/postgres"
	platformredis "paydesk/internal/platform/redis"
	rlmw "paydesk/internal/ratelimit/middleware"
	rlsvc "paydesk/internal/ratelimit/service"
	"paydesk/internal/ratelimit/store/counter"
	rsvc "paydesk/internal/reconcile/service"
	"paydesk/internal/reconcile/store/ledger"
	"paydesk/internal/reconcile/store/project"
	"paydesk/internal/vault"
	whandler "paydesk/internal/webhook/handler"
	"paydesk/internal/webhook/verifier"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	healthChecks := map[string]func(ctx context.Context) error{}

	// Durable stores. Absent a DSN the in-memory pair serves dev and test.
	var (
		ledgerStore  ledger.Store
		projectStore project.Store
		contactStore contact.Store
	)
	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		ledgerStore = ledger.NewPostgresStore(db)
		projectStore = project.NewPostgresStore(db)
		contactStore = contact.NewPostgresStore(db)
		healthChecks["postgres"] = db.PingContext
		log.Info("using postgres stores")
	} else {
		ledgerStore = ledger.NewMemoryStore()
		projectStore = project.NewMemoryStore()
		contactStore = contact.NewMemoryStore()
		log.Warn("no postgres configured, using in-memory stores")
	}

	// Rate limiting: Redis-backed fixed windows with the in-process
	// fail-closed fallback behind a breaker.
	var primary counter.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		primary = counter.NewRedisStore(redisClient.Client)
		healthChecks["redis"] = redisClient.Health
		log.Info("rate limiter using redis counters")
	} else {
		log.Warn("no redis configured, rate limiter on in-process counters only")
	}
	checker, err := rlsvc.New(primary, counter.NewMemoryStore(),
		rlsvc.WithLogger(log),
		rlsvc.WithStoreTimeout(cfg.StoreTimeout))
	if err != nil {
		log.Error("rate limiter init failed", "error", err)
		os.Exit(1)
	}
	limiter := rlmw.New(checker, log, rlmw.WithDisabled(cfg.RateLimitDisabled))

	// Field encryption for intake PII.
	var fieldVault *vault.Vault
	if cfg.VaultKey != "" {
		fieldVault, err = vault.New(cfg.VaultKey, vault.WithLogger(log))
		if err != nil {
			log.Error("vault key rejected", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("no vault key configured, intake PII stored in plaintext")
	}

	// Notifications are best-effort and decoupled from request handling.
	dispatcher := notify.NewDispatcher(
		notify.NewPushoverSender(cfg.Notify),
		notify.WithLogger(log))

	reconciler, err := rsvc.New(ledgerStore, projectStore,
		rsvc.WithLogger(log),
		rsvc.WithNotifier(dispatcher))
	if err != nil {
		log.Error("reconciler init failed", "error", err)
		os.Exit(1)
	}

	sigVerifier, err := verifier.New(cfg.WebhookSecret,
		verifier.WithTolerance(cfg.WebhookTolerance))
	if err != nil {
		log.Error("webhook verifier init failed", "error", err)
		os.Exit(1)
	}
	webhookHandler, err := whandler.New(sigVerifier, reconciler,
		whandler.WithLogger(log),
		whandler.WithStoreTimeout(cfg.StoreTimeout))
	if err != nil {
		log.Error("webhook handler init failed", "error", err)
		os.Exit(1)
	}

	intakeService, err := isvc.New(contactStore,
		isvc.WithLogger(log),
		isvc.WithVault(fieldVault),
		isvc.WithNotifier(dispatcher))
	if err != nil {
		log.Error("intake service init failed", "error", err)
		os.Exit(1)
	}
	intakeHandler, err := ihandler.New(intakeService, ihandler.WithLogger(log))
	if err != nil {
		log.Error("intake handler init failed", "error", err)
		os.Exit(1)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		RateLimit:    limiter,
		Webhook:      webhookHandler,
		Intake:       intakeHandler,
		HealthChecks: healthChecks,
	})
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
