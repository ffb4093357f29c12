package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"

	"orangebook/internal/bronze"
	"orangebook/internal/config"
	"orangebook/internal/events"
	eventsfactory "orangebook/internal/events/factory"
	"orangebook/internal/ledger"
	ledgerfactory "orangebook/internal/ledger/factory"
	"orangebook/internal/observability"
	obsfactory "orangebook/internal/observability/factory"
	"orangebook/internal/pipeline"
	"orangebook/internal/runtime"
	"orangebook/internal/source"
	storagefactory "orangebook/internal/storage/factory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// Dependencies holds the initialized adapters
type Dependencies struct {
	ledger    ledger.Ledger
	publisher events.Publisher
	logger    observability.Logger
	metrics   observability.Metrics
}

func run(ctx context.Context) error {
	cfg, err := loadConfiguration()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return err
	}

	logger, metrics, err := obsfactory.New(cfg)
	if err != nil {
		log.Printf("Failed to initialize observability: %v", err)
		return err
	}

	logger.Info("Starting application",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
		"runtime", cfg.Adapters.Runtime)
	metrics.IncrementCounter("application.starts", nil)

	deps := &Dependencies{logger: logger, metrics: metrics}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("Failed to shut down cleanly", "error", err)
		}
	}()

	p, err := buildPipeline(ctx, cfg, deps)
	if err != nil {
		logger.Error("Failed to initialize pipeline", "error", err)
		metrics.IncrementCounter("init.failures", nil)
		return err
	}

	rtLogger, rtMetrics := observability.Scope(logger, metrics, cfg, "runtime")
	rt, err := runtime.New(cfg, p, rtLogger, rtMetrics)
	if err != nil {
		logger.Error("Failed to initialize runtime", "error", err)
		return err
	}

	return rt.Start(ctx)
}

// loadConfiguration loads and validates the application configuration
func loadConfiguration() (*config.Config, error) {
	provider := config.GetProvider()
	if err := provider.Load(); err != nil {
		return nil, err
	}
	return provider.Get()
}

// buildPipeline creates every adapter and assembles the pipeline
func buildPipeline(ctx context.Context, cfg *config.Config, deps *Dependencies) (*pipeline.Pipeline, error) {
	scoped := func(component string) (observability.Logger, observability.Metrics) {
		return observability.Scope(deps.logger, deps.metrics, cfg, component)
	}

	storageLogger, storageMetrics := scoped("storage." + cfg.Adapters.Storage)
	store, err := storagefactory.New(ctx, cfg, storageLogger, storageMetrics)
	if err != nil {
		return nil, err
	}

	ledgerLogger, ledgerMetrics := scoped("ledger." + cfg.Adapters.Ledger)
	deps.ledger, err = ledgerfactory.New(ctx, cfg, ledgerLogger, ledgerMetrics)
	if err != nil {
		return nil, err
	}

	eventsLogger, eventsMetrics := scoped("events." + cfg.Adapters.Events)
	deps.publisher, err = eventsfactory.New(ctx, cfg, eventsLogger, eventsMetrics)
	if err != nil {
		return nil, err
	}

	sourceLogger, sourceMetrics := scoped("source")
	fetcher, err := source.NewFetcher(cfg.Source, sourceLogger, sourceMetrics)
	if err != nil {
		return nil, err
	}

	bronzeLogger, bronzeMetrics := scoped("bronze")
	pipelineLogger, pipelineMetrics := scoped("pipeline")

	return pipeline.New(cfg, pipeline.Deps{
		Fetcher:   fetcher,
		Extractor: source.NewExtractor(sourceLogger, sourceMetrics),
		Ingestor:  bronze.NewIngestor(bronze.NewReader(cfg.Bronze.StripBOM), bronzeLogger, bronzeMetrics),
		Storage:   store,
		Ledger:    deps.ledger,
		Publisher: deps.publisher,
	}, pipelineLogger, pipelineMetrics), nil
}

// Close releases every adapter that holds a connection
func (d *Dependencies) Close() error {
	var err error
	if d.publisher != nil {
		err = multierr.Append(err, d.publisher.Close())
	}
	if d.ledger != nil {
		err = multierr.Append(err, d.ledger.Close())
	}
	return err
}
