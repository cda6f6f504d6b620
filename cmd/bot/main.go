package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"cityforall/internal/cache"
	"cityforall/internal/config"
	"cityforall/internal/repository"
	"cityforall/internal/service"
	"cityforall/internal/session"
	"cityforall/internal/survey"
	"cityforall/internal/transport"
	"cityforall/internal/transport/rest"
	"cityforall/internal/transport/ws"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("exited with error", zap.Error(err))
	}
	log.Info("server exited")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// Survey definition
	graph, err := survey.Load(cfg.SurveyFile)
	if err != nil {
		return err
	}
	log.Info("survey graph loaded",
		zap.String("file", cfg.SurveyFile),
		zap.Int("modules", len(graph.ModuleOrder())),
		zap.Int("questions", graph.QuestionCount()),
	)

	// Storage
	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := repository.EnsureSchema(ctx, db); err != nil {
		return err
	}
	reconciler, err := service.NewReconciler(ctx, db, log)
	if err != nil {
		return err
	}

	// Session store: Redis when configured, in-process otherwise
	var sessions session.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return err
		}
		sessions = session.NewRedisStore(rdb)
		log.Info("session store: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		sessions = session.NewMemoryStore()
		log.Info("session store: in-memory")
	}

	images := cache.NewImageCache(cfg.ImagesDir, log)
	prompts := transport.NewPromptBuilder(images)
	coord := session.NewCoordinator()
	nav := survey.NewNavigator(graph)

	wsHub := ws.NewHub(log)

	flow := service.NewFlowService(nav, sessions, coord, wsHub, prompts, reconciler, cfg, log)

	router := rest.NewRouter(&rest.Container{
		Flow:       flow,
		Export:     repository.NewExportRepo(db),
		Graph:      graph,
		WSHub:      wsHub,
		AdminToken: cfg.AdminToken,
		Log:        log,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return log
}
