package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/iliyamo/task-manager/internal/auth"
	"github.com/iliyamo/task-manager/internal/config"
	"github.com/iliyamo/task-manager/internal/database"
	"github.com/iliyamo/task-manager/internal/handler"
	"github.com/iliyamo/task-manager/internal/logger"
	"github.com/iliyamo/task-manager/internal/middleware"
	"github.com/iliyamo/task-manager/internal/queue"
	"github.com/iliyamo/task-manager/internal/repository"
	"github.com/iliyamo/task-manager/internal/router"
	"github.com/iliyamo/task-manager/internal/service"
	"github.com/iliyamo/task-manager/internal/storage"
	"github.com/iliyamo/task-manager/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load() // Load environment config

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	slog.SetDefault(lg)

	if err := run(cfg, lg); err != nil {
		lg.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, lg *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DB.Driver); err != nil {
		return err
	}

	// Redis is optional; without it the account listing is served uncached.
	rdb := config.NewRedisClient(lg)
	if rdb != nil {
		defer rdb.Close()
	}

	attachments, err := storage.OpenDir(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		return err
	}
	defer attachments.Close()

	tokens, err := auth.NewTokenService(cfg.JWT, lg)
	if err != nil {
		return err
	}
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	if hasher.Cost() != cfg.BcryptCost {
		lg.Warn("bcrypt cost out of range, using default", slog.Int("requested", cfg.BcryptCost), slog.Int("cost", hasher.Cost()))
	}

	accountRepo := repository.NewAccountRepo(db)
	taskRepo := repository.NewTaskRepo(db)

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, lg)
	accounts, err := service.NewAccountService(accountRepo, hasher, tokens,
		service.WithAvatars(attachments),
		service.WithListingCache(cache),
		service.WithLogger(lg),
	)
	if err != nil {
		return err
	}
	tasks := service.NewTaskService(taskRepo, accountRepo, attachments, lg)
	guard := middleware.NewGuard(tokens, accountRepo, lg)

	e := router.New(lg)
	router.RegisterRoutes(e, handler.NewHealthHandler(db))
	router.RegisterAuth(e, handler.NewAuthHandler(accounts), guard)
	router.RegisterUsers(e, handler.NewUserHandler(accounts, tasks), guard, cache)
	router.RegisterTasks(e, handler.NewTaskHandler(tasks, attachments.MaxBytes()), guard)

	var wg sync.WaitGroup
	if cfg.Reminder.Enabled {
		sched := worker.NewReminderScheduler(taskRepo, queue.NewPublisher(cfg.Reminder.AMQPURL, lg), cfg.Reminder.At, lg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
	}
	if cfg.Reminder.ConsumerEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := queue.StartReminderConsumer(ctx, cfg.Reminder.AMQPURL, cfg.Reminder.LogDir, lg); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("reminder consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = e.Shutdown(shutdownCtx)
	wg.Wait()
	return err
}
