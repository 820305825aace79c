package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BuzzLyutic/todo-board/internal/config"
	"github.com/BuzzLyutic/todo-board/internal/handler"
	"github.com/BuzzLyutic/todo-board/internal/notify"
	"github.com/BuzzLyutic/todo-board/internal/repo"
	"github.com/BuzzLyutic/todo-board/internal/service"
	"github.com/BuzzLyutic/todo-board/internal/worker"
)

func main() {
	// Загрузка конфигурации
	cfg := config.Load()

	// Подключаем логгер
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	loader, closeLoader, err := newLoader(cfg)
	if err != nil {
		logger.Fatal("Failed to set up loader", zap.Error(err))
	}
	defer closeLoader()

	hub := notify.NewHub(logger)
	list := service.NewTaskList(service.WithIDGenerator(service.IDGenerator(cfg.IDStrategy)))
	reminder := service.NewReminder(hub, logger)

	taskHandler := handler.NewTaskHandler(list, reminder, loader, logger)
	taskHandler.Activate(hub)
	defer taskHandler.Close()

	// Первая загрузка; при ошибке клиент может повторить через /api/reload
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.LoadTimeout)
	if err := taskHandler.Load(loadCtx); err != nil {
		logger.Warn("Initial load failed, waiting for reload", zap.Error(err))
	}
	cancelLoad()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := worker.NewScheduler(taskHandler.Remind, logger, cfg.ReminderInterval)
	scheduler.Start(ctx)

	r := chi.NewRouter() // Создаем роутер
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	taskHandler.Register(r)

	srv := http.Server{ // Создаем сервер
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.LoadTimeout + 10*time.Second,
	}

	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	scheduler.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
	logger.Info("Server stopped successfully!")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func newLoader(cfg config.Config) (repo.Loader, func(), error) {
	switch cfg.Loader {
	case config.LoaderHTTP:
		return repo.NewHTTPLoader(cfg.LoaderURL, cfg.LoadTimeout), func() {}, nil
	case config.LoaderPostgres:
		// Подключаем БД
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return repo.NewPgLoader(pool), pool.Close, nil
	case config.LoaderStatic, "":
		return repo.NewStaticLoader(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown loader %q", cfg.Loader)
}
