// Command server runs the visitor management API: check-in lifecycle,
// pre-approvals, host approval workflow, policy, stats, and the audit trail.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"securevms/internal/audit"
	audithandler "securevms/internal/audit/handler"
	auditmemory "securevms/internal/audit/store/memory"
	auditpostgres "securevms/internal/audit/store/postgres"
	hosthandler "securevms/internal/host/handler"
	hostservice "securevms/internal/host/service"
	hoststore "securevms/internal/host/store"
	httpapi "securevms/internal/http"
	"securevms/internal/notify"
	"securevms/internal/platform/config"
	"securevms/internal/platform/httpserver"
	"securevms/internal/platform/logger"
	"securevms/internal/platform/metrics"
	"securevms/internal/platform/middleware"
	pahandler "securevms/internal/preapproval/handler"
	paservice "securevms/internal/preapproval/service"
	pastore "securevms/internal/preapproval/store"
	"securevms/internal/rules"
	ruleshandler "securevms/internal/rules/handler"
	"securevms/internal/stats"
	statshandler "securevms/internal/stats/handler"
	"securevms/internal/token"
	"securevms/internal/token/revocation"
	visitorhandler "securevms/internal/visitor/handler"
	visitorservice "securevms/internal/visitor/service"
	visitorstore "securevms/internal/visitor/store"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Audit trail: in-memory log, optionally mirrored to Postgres.
	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if cfg.PostgresDSN != "" {
		archive, err := auditpostgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer archive.Close()
		auditStore = audit.NewTee(auditStore, archive, log)
		log.Info("audit archive enabled")
	}
	auditor := audit.NewPublisher(auditStore)

	// Token revocation: in-process unless Redis is configured.
	var revoked revocation.List = revocation.NewInMemory()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		defer client.Close()
		revoked = revocation.NewRedis(client)
		log.Info("redis revocation list enabled")
	}

	tokens := token.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.TokenTTL)
	policy := rules.NewService(rules.Defaults(),
		rules.WithLogger(log),
		rules.WithAuditPublisher(auditor),
	)

	outbox := notify.NewOutbox(cfg.OutboxSize, func(intent notify.Intent) {
		log.Warn("notification dropped, outbox full",
			"channel", string(intent.Channel),
			"recipient", intent.Recipient,
		)
	})
	worker := notify.NewWorker(outbox, notify.NewLogDispatcher(log),
		notify.WithLogger(log),
		notify.WithAuditPublisher(auditor),
		notify.WithMetrics(m),
	)

	hostStore := hoststore.NewInMemory()
	hosts := hostservice.New(hostStore,
		hostservice.WithLogger(log),
		hostservice.WithAuditPublisher(auditor),
		hostservice.WithTokenIssuer(tokens),
	)

	paStore := pastore.NewInMemory()
	preApprovals := paservice.New(paStore, hostStore, policy,
		paservice.WithLogger(log),
		paservice.WithAuditPublisher(auditor),
		paservice.WithNotifier(outbox),
	)

	visitorStore := visitorstore.NewInMemory()
	visits := visitorservice.New(visitorStore, hostStore, policy,
		visitorservice.WithLogger(log),
		visitorservice.WithAuditPublisher(auditor),
		visitorservice.WithNotifier(outbox),
		visitorservice.WithPreApprovalConsumer(preApprovals),
	)

	aggregator := stats.New(visitorStore, paStore, stats.WithAuditSource(auditor))

	hostAuth := middleware.RequireHostAuth(tokens, revoked, log)
	adminAuth := middleware.RequireAdminToken(cfg.AdminToken, log)

	router := httpapi.NewRouter(log, m, middleware.Timeout(cfg.RequestTimeout),
		visitorhandler.New(visits, log, m, hostAuth, adminAuth),
		pahandler.New(preApprovals, log, m, hostAuth),
		hosthandler.New(hosts, log, tokens, revoked, hostAuth, adminAuth),
		ruleshandler.New(policy, log, adminAuth),
		audithandler.New(auditor, log, adminAuth),
		statshandler.New(aggregator, log, hostAuth),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting securevms", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := worker.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// Background sweep flipping visibly-expired pre-approvals. Redemption
	// checks expiry on its own; this keeps listings and audit current.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ExpirySweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n, err := preApprovals.ReconcileExpired(ctx); err != nil {
					log.Error("expiry sweep failed", "error", err)
				} else if n > 0 {
					log.Info("expired pre-approvals reconciled", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
