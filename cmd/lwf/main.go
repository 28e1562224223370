package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/lwf-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/lwf-etl/internal/adapter/kafka"
	ncadapter "github.com/couchcryptid/lwf-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/lwf-etl/internal/config"
	"github.com/couchcryptid/lwf-etl/internal/domain"
	"github.com/couchcryptid/lwf-etl/internal/flux"
	"github.com/couchcryptid/lwf-etl/internal/observability"
	"github.com/couchcryptid/lwf-etl/internal/pipeline"
	"github.com/couchcryptid/lwf-etl/internal/resample"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	swe := ncadapter.NewDailyArchive(cfg.SWEArchiveDir, ncadapter.SWELayout(cfg.SWEVariable), logger)
	precip := ncadapter.NewSeriesArchive(cfg.PrecipArchiveDir, ncadapter.PrecipLayout(cfg.PrecipVariable), logger)
	transformer := pipeline.NewTransformer(
		resample.New(logger, metrics, cfg.ResampleWorkers, cfg.PlanCacheSize),
		flux.NewCalculator(metrics),
	)
	writer := ncadapter.NewWriter(logger)

	// Product notifications are feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var publisher pipeline.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		metrics.PublishEnabled.Set(1)
		logger.Info("product notifications enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("product notifications disabled")
	}

	p := pipeline.New(swe, precip, transformer, writer, publisher, logger, metrics, pipeline.Options{
		OutputDir:         cfg.OutputDir,
		WriteIntermediate: cfg.WriteIntermediate,
		Interval:          cfg.ScheduleInterval,
		LookbackDays:      cfg.LookbackDays,
	})

	if cfg.OneShot() {
		os.Exit(runOnce(cfg, p, kafkaPublisher, logger))
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduled pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// runOnce executes a single run over START_DATE..END_DATE and returns the
// process exit code.
func runOnce(cfg *config.Config, p *pipeline.Pipeline, kafkaPublisher *kafkaadapter.Publisher, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := pipeline.Request{Start: cfg.StartDate, End: cfg.EndDate}
	if cfg.Location != nil {
		req.Point = &domain.Point{Lat: cfg.Location.Lat, Lon: cfg.Location.Lon}
	}

	code := 0
	summary, err := p.Execute(ctx, req)
	if err != nil {
		logger.Error("run failed", "error", err)
		code = 1
	} else {
		logger.Info("outputs written", "dir", cfg.OutputDir, "files", summary.Files)
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	return code
}
