package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/config"
	"github.com/bgs2509/activity-tracker-bot-sub000/internal/sched"
	"github.com/bgs2509/activity-tracker-bot-sub000/internal/steps"
	"github.com/bgs2509/activity-tracker-bot-sub000/internal/store"
	"github.com/bgs2509/activity-tracker-bot-sub000/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server

	repo      store.Repo
	stepStore steps.Store
	jobs      *sched.JobStore
	scheduler *sched.Scheduler
	timeout   *sched.TimeoutService
	router    *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting activity tracker bot", zap.String("http", a.cfg.HTTPAddr))

	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))

	if a.cfg.RedisAddr != "" {
		st, err := steps.OpenRedis(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
		if err != nil {
			_ = repo.Close()
			return err
		}
		a.stepStore = st
		a.log.Info("redis step store ready", zap.String("addr", a.cfg.RedisAddr))
	} else {
		a.stepStore = steps.NewMemoryStore()
		a.log.Info("in-memory step store ready")
	}

	// Scheduling core. The router is both the prompt dispatcher and the step
	// notifier, so it is bound in after construction.
	a.jobs = sched.NewJobStore(a.log)
	resolver := sched.NewStepResolver(a.stepStore)
	a.scheduler = sched.NewScheduler(a.jobs, repo, resolver, a.log)
	a.timeout = sched.NewTimeoutService(a.jobs, a.stepStore, repo, a.log)
	a.router = telegram.NewRouter(a.bot, a.log, repo, a.stepStore, a.scheduler, a.timeout, a.cfg.DefaultTZ)
	a.scheduler.Bind(a.router)
	a.timeout.Bind(a.router, a.router, a.scheduler)

	a.restoreSchedules(ctx)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.shutdown()
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

// restoreSchedules re-arms the recurring poll of every enabled chat after a
// restart. Timers live in memory; the settings rows are the durable record.
func (a *App) restoreSchedules(ctx context.Context) {
	chats, err := a.repo.ListEnabledChats(ctx)
	if err != nil {
		a.log.Error("list enabled chats failed", zap.Error(err))
		return
	}
	for _, chatID := range chats {
		if err := a.scheduler.SchedulePrompt(ctx, chatID); err != nil {
			a.log.Error("restore schedule failed", zap.Error(err), zap.Int64("chat_id", chatID))
		}
	}
	a.log.Info("schedules restored", zap.Int("chats", len(chats)))
}

func (a *App) shutdown() {
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.httpSrv.Shutdown(shCtx); err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	a.jobs.Close()
	if err := a.stepStore.Close(); err != nil {
		a.log.Warn("step store close error", zap.Error(err))
	}
	if err := a.repo.Close(); err != nil {
		a.log.Warn("repo close error", zap.Error(err))
	}
}
