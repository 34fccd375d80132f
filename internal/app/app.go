package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"IntelRadar/internal/config"
	"IntelRadar/internal/extractor"
	"IntelRadar/internal/infrastructure/feed"
	"IntelRadar/internal/infrastructure/fetcher"
	"IntelRadar/internal/infrastructure/llm"
	"IntelRadar/internal/infrastructure/mail"
	"IntelRadar/internal/infrastructure/page"
	"IntelRadar/internal/infrastructure/storage"
	"IntelRadar/internal/infrastructure/telegram"
	"IntelRadar/internal/logging"
	"IntelRadar/internal/ports"
	"IntelRadar/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	closers  []io.Closer
	logger   *slog.Logger
}

// New builds every adapter from cfg. It fails only when the store or the
// language model cannot be constructed.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	app := &Application{cfg: cfg, logger: baseLogger}

	store, err := app.buildStore()
	if err != nil {
		return nil, err
	}

	model, err := llm.New(cfg.Extractor)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("language model: %w", err)
	}

	notifiers := []ports.Notifier{
		mail.NewNotifier(cfg.Mail, baseLogger.With("component", "notifier.mail")),
	}
	if cfg.Telegram.Enabled() {
		notifiers = append(notifiers, telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}

	app.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Reader:        feed.NewReader(cfg.Feeds, cfg.Fetcher.UserAgent, nil, baseLogger.With("component", "feed")),
		Store:         store,
		Fetcher:       fetcher.NewHTTPFetcher(cfg.Fetcher, nil),
		Summarizer:    page.NewSummarizer(),
		Extractor:     extractor.New(model, cfg.Extractor),
		Notifiers:     notifiers,
		Logger:        baseLogger.With("component", "pipeline"),
		Now:           time.Now,
		Location:      cfg.Capture.Location(),
		SubjectPrefix: cfg.Mail.SubjectPrefix,
	})
	return app, nil
}

func (a *Application) buildStore() (ports.RecordStore, error) {
	switch a.cfg.Store.Driver {
	case config.DriverCSV:
		return storage.NewCSVStore(a.cfg.Store.Path), nil
	case config.DriverSQLite, config.DriverPostgres:
		store, err := storage.OpenSQLStore(a.cfg.Store.Driver, a.cfg.Store.DSN, a.cfg.Store.Table)
		if err != nil {
			return nil, fmt.Errorf("record store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) (usecase.Report, error) {
	if a.pipeline == nil {
		return usecase.Report{}, nil
	}
	return a.pipeline.Run(ctx)
}

// Close releases database handles.
func (a *Application) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close resource", "error", err)
		}
	}
	a.closers = nil
}
