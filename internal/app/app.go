package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/lesson-bot/internal/config"
	"github.com/ykvlv/lesson-bot/internal/scheduler"
	"github.com/ykvlv/lesson-bot/internal/store"
	"github.com/ykvlv/lesson-bot/internal/telegram"
)

// pollTimeout is the getUpdates long-poll duration in seconds.
const pollTimeout = 30

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    store.Repo
	router  *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	// The client timeout must outlive a long poll; individual sends are
	// additionally capped by SEND_TIMEOUT through their context.
	client := &http.Client{Timeout: pollTimeout*time.Second + cfg.SendTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, client)
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
	a.log.Info("starting lesson-bot",
		zap.String("bot", a.bot.Self.UserName),
		zap.String("store", a.cfg.StoreDriver),
		zap.String("http", a.cfg.HTTPAddr),
	)

	backend, err := store.OpenBackend(ctx, a.cfg.StoreDriver, a.cfg.DBPath, a.cfg.JSONPath)
	if err != nil {
		a.log.Error("open store failed", zap.Error(err))
		return err
	}
	a.repo = store.NewLessonStore(backend, a.log, a.cfg.TemplateUser)
	a.log.Info("store ready")

	loc, err := a.cfg.Location()
	if err != nil {
		a.log.Warn("unknown timezone, using UTC+6", zap.String("tz", a.cfg.Timezone), zap.Error(err))
	}

	a.router = telegram.NewRouter(a.bot, a.log, a.repo, loc, a.cfg.SessionTTL)
	if err := a.router.RegisterCommands(); err != nil {
		a.log.Warn("register bot commands failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(a.repo, a.log, a.router, scheduler.Options{
		Interval:    a.cfg.SweepInterval,
		StartDelay:  a.cfg.SweepDelay,
		SendTimeout: a.cfg.SendTimeout,
		Location:    loc,
	})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}

			wg.Wait()
			if err := a.repo.Close(); err != nil {
				a.log.Warn("store close error", zap.Error(err))
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
