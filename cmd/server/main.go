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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"convoca/internal/assembly"
	"convoca/internal/audit"
	auditmemory "convoca/internal/audit/store/memory"
	auditpostgres "convoca/internal/audit/store/postgres"
	"convoca/internal/auth"
	"convoca/internal/auth/verification"
	"convoca/internal/delegation"
	"convoca/internal/platform/config"
	"convoca/internal/platform/httpserver"
	"convoca/internal/platform/logger"
	"convoca/internal/platform/metrics"
	"convoca/internal/platform/middleware"
	redisplatform "convoca/internal/platform/redis"
	"convoca/internal/voting"
	"convoca/pkg/email"
	"convoca/pkg/platform/pg"
)

// main wires stores, services, and background workers, then runs the HTTP
// server until a shutdown signal. Business logic lives in the internal
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Stores: Postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		accountStore  auth.AccountStore
		lockoutStore  auth.LockoutStore
		assemblyStore assembly.Store
		delegStore    delegation.Store
		questionStore voting.QuestionStore
		ballotStore   voting.BallotStore
		auditStore    audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := pg.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		accountStore = auth.NewPostgresAccountStore(db)
		lockoutStore = auth.NewPostgresLockoutStore(db, cfg.Lockout.Window)
		assemblyStore = assembly.NewPostgres(db)
		delegStore = delegation.NewPostgres(db)
		questionStore = voting.NewPostgresQuestionStore(db)
		ballotStore = voting.NewPostgresBallotStore(db)
		auditStore = auditpostgres.New(db)
		log.Info("using postgres stores")
	} else {
		accountStore = auth.NewInMemoryAccountStore()
		lockoutStore = auth.NewInMemoryLockoutStore(cfg.Lockout.Window)
		assemblyStore = assembly.NewInMemoryStore()
		delegStore = delegation.NewInMemoryStore()
		questionStore = voting.NewInMemoryQuestionStore()
		ballotStore = voting.NewInMemoryBallotStore()
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Verification codes: Redis-backed when configured.
	var codeStore verification.CodeStore = verification.NewInMemoryCodeStore()
	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		codeStore = verification.NewRedisCodeStore(redisClient, cfg.VerificationTTL)
		log.Info("using redis verification code store")
	}
	verifier := verification.NewService(codeStore, email.LogMailer{Logger: log}, log)

	// Audit pipeline: channel recorder, store worker, optional Kafka mirror.
	publisher, err := audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		return err
	}
	defer publisher.Close()
	recorder := audit.NewChannelRecorder(256, log)
	worker := audit.NewWorker(auditStore, publisher, recorder.Inbox(), log)

	// Services.
	tokens := auth.NewTokenService(cfg.JWTSigningKey, cfg.TokenTTL)
	lockout, err := auth.NewLockoutGuard(lockoutStore, cfg.Lockout, log)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(accountStore, lockout, tokens,
		auth.WithRecorder(recorder),
		auth.WithMetrics(m),
		auth.WithVerifier(verifier),
		auth.WithLogger(log),
	)
	if err != nil {
		return err
	}
	assemblySvc, err := assembly.NewService(assemblyStore,
		assembly.WithRecorder(recorder),
		assembly.WithLogger(log),
	)
	if err != nil {
		return err
	}
	delegSvc, err := delegation.NewService(delegStore, assemblySvc,
		delegation.WithRecorder(recorder),
		delegation.WithLogger(log),
	)
	if err != nil {
		return err
	}
	resolver := voting.NewResolver(delegSvc, assemblySvc, ballotStore)
	votingSvc, err := voting.NewService(questionStore, ballotStore, resolver, assemblySvc,
		voting.WithRecorder(recorder),
		voting.WithMetrics(m),
		voting.WithLogger(log),
	)
	if err != nil {
		return err
	}

	router := newRouter(log, m, tokens,
		auth.NewHandler(authSvc, log),
		assembly.NewHandler(assemblySvc, log),
		delegation.NewHandler(delegSvc, log),
		voting.NewHandler(votingSvc, log),
		audit.NewHandler(auditStore, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		if err := worker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		verifier.Run(groupCtx, cfg.VerificationInterval)
		return nil
	})

	return group.Wait()
}

func newRouter(log *slog.Logger, m *metrics.Metrics, tokens *auth.TokenService,
	authHandler *auth.Handler, assemblyHandler *assembly.Handler,
	delegHandler *delegation.Handler, votingHandler *voting.Handler,
	auditHandler *audit.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(m))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authHandler.RegisterPublic(r)

	r.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth(tokens, log))
		authHandler.RegisterProtected(protected)
		assemblyHandler.Register(protected)
		delegHandler.Register(protected)
		votingHandler.Register(protected)
		auditHandler.Register(protected)
	})

	return r
}
