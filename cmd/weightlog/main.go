package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapthttp "weightlog/internal/adapter/http"
	"weightlog/internal/adapter/memory"
	"weightlog/internal/adapter/postgres"
	"weightlog/internal/adapter/redisbus"
	"weightlog/internal/app"
	"weightlog/internal/config"
	"weightlog/internal/domain"
	"weightlog/internal/logging"
	"weightlog/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 10 * time.Second
	sessionPurgePeriod = time.Hour
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, *configPath, *env)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	logger := logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogFile,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogJSON,
	})
	logger.Warnf("---->> running in [%s] environment", *env)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("weightlog: %s", err)
	}
	logger.Info("bye")
}

// store is everything the server needs from a persistence backend.
type store interface {
	domain.WeightRepository
	domain.PreferencesRepository
	domain.UserRepository
}

func openStore(cfg *config.Config) (store, domain.SessionRepository, io.Closer, error) {
	switch cfg.Store {
	case config.StorePostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, postgres.NewSessionRepo(db), db, nil
	default:
		db := memory.New()
		return db, db.NewSessionRepo(), closerFunc(func() error { return nil }), nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) (err error) {
	st, sessions, closer, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closer.Close()) }()
	logger.Infof("using %s store", cfg.Store)

	hub := app.NewHub()
	var changes app.ChangeNotifier = hub
	var relay *redisbus.Relay
	if cfg.RedisAddr != "" {
		rdb, dialErr := redisbus.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if dialErr != nil {
			return dialErr
		}
		defer func() { err = multierr.Append(err, rdb.Close()) }()
		relay = redisbus.New(rdb, cfg.RedisChannel, hub, logger)
		changes = relay
		logger.Infof("relaying record changes through redis at %s", cfg.RedisAddr)
	}

	issuer, err := app.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		return err
	}
	authSvc := app.NewAuthService(st, sessions, issuer)
	if cfg.InitialUser != "" {
		err := authSvc.CreateInitialUser(ctx, cfg.InitialUser, cfg.InitialPassword)
		switch {
		case err == nil:
			logger.Infof("created initial user %q", cfg.InitialUser)
		case !errors.Is(err, app.ErrUsersExist):
			return fmt.Errorf("create initial user: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewManager("weightlog", "server", reg)

	var scheduler *app.Scheduler
	var rescheduler app.ReminderRescheduler
	if cfg.RemindersEnabled {
		scheduler = app.NewScheduler(st, app.LogNotifier{Log: logger}, logger)
		scheduler.OnSent = m.CounterRemindersSent.Inc
		rescheduler = scheduler
	}

	opts := []adapthttp.Option{
		adapthttp.WithLogger(logger),
		adapthttp.WithMetrics(m, reg),
	}
	if p, ok := st.(adapthttp.Pinger); ok {
		opts = append(opts, adapthttp.WithPinger(p))
	}
	if cfg.SSOEnabled() {
		oidcCfg, err := adapthttp.NewOIDCConfig(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL)
		if err != nil {
			return fmt.Errorf("oidc discovery: %w", err)
		}
		opts = append(opts, adapthttp.WithOIDC(oidcCfg))
	}

	handler := adapthttp.New(adapthttp.Services{
		Weight:   app.NewWeightService(st, hub, changes),
		Settings: app.NewSettingsService(st, rescheduler),
		Charts:   app.NewChartsService(st),
		Auth:     authSvc,
	}, opts...).Handler()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Warn("shutting down ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if scheduler != nil {
		g.Go(func() error { return scheduler.Run(gctx) })
	}
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		purgeSessions(gctx, authSvc, logger)
		return nil
	})

	return g.Wait()
}

func purgeSessions(ctx context.Context, auth *app.AuthService, logger log.FieldLogger) {
	ticker := time.NewTicker(sessionPurgePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := auth.PurgeExpiredSessions(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("purge expired sessions")
			}
		}
	}
}
