package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/miralabs/mira-bot/internal/config"
	"github.com/miralabs/mira-bot/internal/content"
	"github.com/miralabs/mira-bot/internal/domain"
	"github.com/miralabs/mira-bot/internal/scheduler"
	"github.com/miralabs/mira-bot/internal/store"
	"github.com/miralabs/mira-bot/internal/streak"
	"github.com/miralabs/mira-bot/internal/telegram"
)

// App wires configuration, storage, the Telegram transport, the update
// router and the daily scheduler into one runnable unit.
type App struct {
	cfg config.Config
	log *zap.Logger
	bot *tgbotapi.BotAPI
	loc *time.Location

	httpSrv *http.Server
	repo    store.Repo
	router  *telegram.Router
	sched   *scheduler.Scheduler

	// updates is the single funnel for inbound updates regardless of
	// ingress mode. Bounded: the webhook handler drops on overflow
	// rather than letting Telegram's retries pile up goroutines.
	updates chan tgbotapi.Update
}

// New validates the configuration and builds the application. It does not
// touch the network or the database; Run does.
func New(cfg config.Config, log *zap.Logger) (*App, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	a := &App{
		cfg:     cfg,
		log:     log,
		bot:     bot,
		loc:     loc,
		updates: make(chan tgbotapi.Update, cfg.QueueSize),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	if cfg.RunMode == "webhook" {
		mux.HandleFunc("/webhook", a.handleWebhook)
	}
	a.httpSrv = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return a, nil
}

func validate(cfg config.Config) error {
	if _, err := domain.ParseClock(cfg.MorningTime); err != nil {
		return fmt.Errorf("MORNING_TIME: %w", err)
	}
	if _, err := domain.ParseClock(cfg.NightTime); err != nil {
		return fmt.Errorf("NIGHT_TIME: %w", err)
	}
	switch cfg.RunMode {
	case "polling":
	case "webhook":
		if cfg.WebhookURL == "" {
			return errors.New("WEBHOOK_URL is required in webhook mode")
		}
	default:
		return fmt.Errorf("RUN_MODE must be polling or webhook, got %q", cfg.RunMode)
	}
	return nil
}

// Run opens the store, starts the ingress, the consumer loop and the
// scheduler, and blocks until a signal or a fatal component error.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting mira-bot",
		zap.String("mode", a.cfg.RunMode),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("tz", a.loc.String()),
	)

	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))

	provider, err := content.Load()
	if err != nil {
		return fmt.Errorf("load message content: %w", err)
	}

	engine := streak.New(repo, a.log, a.loc, a.cfg.MorningTime, a.cfg.NightTime)
	disp := telegram.NewDispatcher(a.bot, a.log)
	parser := domain.NewParser(provider.Vocabulary())
	a.router = telegram.NewRouter(a.log, engine, provider, parser, disp)
	a.sched = scheduler.New(repo, engine, provider, disp, a.log, a.loc)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpSrv.Shutdown(shCtx); err != nil {
			a.log.Warn("http server shutdown error", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		a.sched.Run(ctx)
		return nil
	})

	if a.cfg.RunMode == "webhook" {
		if err := a.registerWebhook(); err != nil {
			stop()
			_ = a.repo.Close()
			return err
		}
	} else {
		g.Go(func() error {
			a.poll(ctx)
			return nil
		})
	}

	g.Go(func() error {
		a.consume(ctx)
		return nil
	})

	err = g.Wait()
	if a.cfg.RunMode == "webhook" {
		if _, derr := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); derr != nil {
			a.log.Warn("delete webhook failed", zap.Error(derr))
		}
	}
	if cerr := a.repo.Close(); cerr != nil {
		a.log.Warn("store close error", zap.Error(cerr))
	}
	a.log.Info("mira-bot stopped")
	return err
}

// consume drains the update funnel. Handlers run in their own goroutines so
// a slow Telegram call for one chat never stalls another; per-chat ordering
// is enforced further down by the streak engine's locks.
func (a *App) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd := <-a.updates:
			go a.router.HandleUpdate(ctx, upd)
		}
	}
}

// poll runs long-polling ingress and forwards updates into the funnel.
func (a *App) poll(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	ch := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		case upd := <-ch:
			select {
			case a.updates <- upd:
			default:
				a.log.Warn("update queue full, dropping", zap.Int("update_id", upd.UpdateID))
			}
		}
	}
}

func (a *App) registerWebhook() error {
	wh, err := tgbotapi.NewWebhook(a.cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := a.bot.Request(wh); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}
	a.log.Info("webhook registered", zap.String("url", a.cfg.WebhookURL))
	return nil
}

// handleWebhook decodes one update and enqueues it. Telegram re-delivers on
// non-2xx, so the handler acknowledges everything it could parse; a full
// queue sheds the update instead of blocking the HTTP goroutine.
func (a *App) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		a.log.Warn("webhook decode failed", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	select {
	case a.updates <- upd:
	default:
		a.log.Warn("update queue full, dropping", zap.Int("update_id", upd.UpdateID))
	}
	w.WriteHeader(http.StatusOK)
}
