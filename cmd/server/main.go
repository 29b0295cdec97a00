package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"combopos/backend/internal/cache"
	"combopos/backend/internal/config"
	"combopos/backend/internal/domain"
	"combopos/backend/internal/httpapi"
	"combopos/backend/internal/logging"
	"combopos/backend/internal/notify"
	"combopos/backend/internal/recommendation"
	"combopos/backend/internal/service"
	"combopos/backend/internal/store"
	"combopos/backend/internal/store/memory"
	pgstore "combopos/backend/internal/store/postgres"
)

var systemActor = domain.Actor{Username: "system", Role: "system"}

func main() {
	cfg := config.Load()
	logger, err := logging.New(logging.Options{Mode: cfg.LogMode, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	var users httpapi.UserStore
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if err := pg.Migrate(); err != nil {
			logger.Fatal("schema migration failed", zap.Error(err))
		}
		if err := seedAccounts(ctx, pg); err != nil {
			logger.Fatal("seeding accounts failed", zap.Error(err))
		}
		repo, users = pg, pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres")
	} else {
		mem := memory.NewSeeded()
		repo, users = mem, mem
		logger.Info("repository: in-memory")
	}

	suggestionCache := cache.SuggestionCache(cache.NoopSuggestionCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSuggestionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using noop cache", zap.Error(err))
		} else {
			suggestionCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logger.Info("cache: noop")
	}

	notifiers := notify.Multi{notify.NewLogNotifier(logger.Named("notify"))}
	if cfg.AMQPURL != "" {
		publisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("rabbitmq unavailable, notifications are logged only", zap.Error(err))
		} else {
			notifiers = append(notifiers, publisher)
			closers = append(closers, publisher.Close)
			logger.Info("notifications: rabbitmq", zap.String("queue", cfg.AMQPQueue))
		}
	}

	recommender := recommendation.NewEngine(suggestionCache, time.Duration(cfg.SuggestionCacheTTLSeconds)*time.Second, logger.Named("recommendation"))
	svc := service.New(repo, recommender, cfg.StoreID,
		service.WithLogger(logger.Named("service")),
		service.WithNotifier(notifiers),
	)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, users)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger.Named("http"))

	sweeper, err := newSweeper(cfg, svc, logger.Named("sweeper"))
	if err != nil {
		logger.Fatal("invalid STALE_ORDER_SWEEP schedule", zap.Error(err))
	}
	sweeper.Start()

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("combo POS backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	select {
	case <-sweeper.Stop().Done():
	case <-shutdownCtx.Done():
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}

// newSweeper schedules the stale order sweep on cfg.StaleOrderSweep.
func newSweeper(cfg config.Config, svc *service.Service, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLogger(cron.PrintfLogger(zap.NewStdLog(logger))),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	idleFor := time.Duration(cfg.OrderIdleMinutes) * time.Minute
	_, err := c.AddFunc(cfg.StaleOrderSweep, func() {
		sweepStaleOrders(context.Background(), svc, idleFor, logger)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func sweepStaleOrders(ctx context.Context, svc *service.Service, idleFor time.Duration, logger *zap.Logger) int {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	count, err := svc.AbandonStaleOrders(service.WithActor(ctx, systemActor), idleFor)
	if err != nil {
		logger.Error("stale order sweep failed", zap.Error(err))
	}
	return count
}

type accountWriter interface {
	UpsertUser(ctx context.Context, user domain.UserAccount) error
}

// seedAccounts writes the admin and cashier accounts named by SEED_ADMIN_PASSWORD
// and SEED_CASHIER_PASSWORD. Unset variables are skipped.
func seedAccounts(ctx context.Context, users accountWriter) error {
	for _, seed := range []struct {
		username string
		env      string
		role     string
	}{
		{"admin", "SEED_ADMIN_PASSWORD", domain.RoleAdmin},
		{"cashier", "SEED_CASHIER_PASSWORD", domain.RoleCashier},
	} {
		password := os.Getenv(seed.env)
		if password == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if err := users.UpsertUser(ctx, domain.UserAccount{
			Username:  seed.username,
			Password:  string(hash),
			Role:      seed.role,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("seed %s: %w", seed.username, err)
		}
	}
	return nil
}
