package app

import (
	"context"
	"log/slog"
	"time"

	"TubeDigest/internal/config"
	"TubeDigest/internal/infrastructure/discord"
	"TubeDigest/internal/infrastructure/httpapi"
	"TubeDigest/internal/infrastructure/llm"
	"TubeDigest/internal/infrastructure/scheduler"
	"TubeDigest/internal/infrastructure/storage"
	"TubeDigest/internal/infrastructure/transcript"
	"TubeDigest/internal/infrastructure/youtube"
	"TubeDigest/internal/logging"
	"TubeDigest/internal/ports"
	"TubeDigest/internal/usecase"
)

// Application wires config to infrastructure, use cases, and lifecycle.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store ports.Store
	sched *scheduler.Scheduler
	api   *httpapi.Server

	closers []func() error
}

// New builds a runnable application instance. The store degrades to the local
// fallback when no Postgres DSN is configured or the primary is unreachable
// at startup.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	var primary ports.Store
	if cfg.Database.DSN != "" {
		pg, err := storage.NewPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			baseLogger.Warn("primary store unavailable at startup", "error", err)
		} else {
			primary = pg
			a.closers = append(a.closers, pg.Close)
		}
	}
	fallback, err := storage.NewSQLite(ctx, cfg.Database.LocalPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, fallback.Close)
	a.store = storage.NewGateway(primary, fallback, baseLogger.With("component", "store"))

	ytClient := youtube.NewClient(nil)
	resolver := youtube.NewResolver(ytClient, baseLogger.With("component", "resolver"))
	listing := youtube.NewListing(ytClient, baseLogger.With("component", "listing"))

	providers := []ports.TranscriptProvider{
		transcript.NewWatchPageProvider(nil, cfg.Fetcher.Languages),
		transcript.NewInnertubeProvider(nil, cfg.Fetcher.Languages),
	}
	fetcher := transcript.NewChain(providers,
		cfg.Fetcher.ProviderTimeout, cfg.Fetcher.MaxAttempts, cfg.Fetcher.MaxChars,
		baseLogger.With("component", "transcript"))

	summarizer := usecase.NewSummarizer(
		llm.NewOpenAIClient(cfg.OpenAI), cfg.OpenAI,
		baseLogger.With("component", "summarizer"))

	notifier := discord.NewNotifier(cfg.Webhooks, baseLogger.With("component", "discord"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Store:      a.store,
		Fetcher:    fetcher,
		Summarizer: summarizer,
		Notifier:   notifier,
		Resolver:   ytClient,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	poller := usecase.NewPoller(a.store, resolver, listing, pipeline,
		cfg.Poller.MaxConcurrency, cfg.Poller.MaxItemsPerSweep,
		baseLogger.With("component", "poller"))

	reporter := usecase.NewReporter(a.store, summarizer, notifier,
		baseLogger.With("component", "reporter"))

	sweepJob := func(ctx context.Context) {
		sweepCtx, cancel := context.WithTimeout(ctx, cfg.Scheduler.SweepTimeout)
		defer cancel()
		poller.Sweep(sweepCtx)
	}
	reportJob := func(ctx context.Context) {
		if _, err := reporter.Run(ctx); err != nil {
			baseLogger.Error("scheduled report failed", "error", err)
		}
	}
	a.sched = scheduler.New(cfg.Scheduler.SweepInterval, cfg.Scheduler.ReportAt,
		cfg.Scheduler.Location(), sweepJob, reportJob,
		baseLogger.With("component", "scheduler"))

	a.api = httpapi.New(cfg.HTTP.ListenAddr, pipeline, poller, reporter, a.sched, a.store,
		baseLogger.With("component", "httpapi"))

	return a, nil
}

// Run starts the scheduler loop and the HTTP API, blocking until ctx is
// cancelled, then shuts both down.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.api.ListenAndServe()
	}()
	go a.sched.Run(ctx)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := a.api.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	for _, closeFn := range a.closers {
		if cerr := closeFn(); cerr != nil {
			a.logger.Warn("close failed", "error", cerr)
		}
	}
	return err
}
