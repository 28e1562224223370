package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/lwf-etl/internal/domain"
	"github.com/couchcryptid/lwf-etl/internal/observability"
	"github.com/couchcryptid/lwf-etl/internal/report"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Retry policy for transient run failures.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	maxAttempts    = 5
)

// Loader reads a variable's grids for the closed date interval [start, end],
// optionally reduced to the grid cell nearest to point.
type Loader interface {
	Load(ctx context.Context, start, end time.Time, point *domain.Point) (*domain.GridDataset, error)
}

// Transformer derives the flux products from SWE and precipitation grids.
type Transformer interface {
	Transform(ctx context.Context, swe, precip *domain.GridDataset) (Products, error)
}

// GridWriter persists a grid at path.
type GridWriter interface {
	Write(ctx context.Context, path string, ds *domain.GridDataset) error
}

// Publisher announces a completed run.
type Publisher interface {
	Publish(ctx context.Context, summary domain.RunSummary) error
}

// Products are the grids produced by one run.
type Products struct {
	Resampled *domain.GridDataset // SWE on the cropped precipitation grid
	Cropped   *domain.GridDataset // precipitation cropped to the SWE extent
	Rate      *domain.GridDataset // m/s
	Daily     *domain.GridDataset // mm/day
}

// Request selects the dates of a run and, optionally, a location for a
// point time series.
type Request struct {
	Start time.Time
	End   time.Time
	Point *domain.Point
}

// Options configure output and scheduling.
type Options struct {
	OutputDir         string
	WriteIntermediate bool
	Interval          time.Duration
	LookbackDays      int
	Clock             clockwork.Clock
}

// Pipeline orchestrates the load-resample-compute-write run.
type Pipeline struct {
	swe         Loader
	precip      Loader
	transformer Transformer
	writer      GridWriter
	publisher   Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	opts        Options
	clock       clockwork.Clock

	ready   atomic.Bool
	mu      sync.Mutex
	lastRun *domain.RunSummary
}

// New creates a Pipeline. A nil publisher disables run notifications and a nil
// Options.Clock uses the real clock.
func New(swe, precip Loader, t Transformer, w GridWriter, pub Publisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		swe:         swe,
		precip:      precip,
		transformer: t,
		writer:      w,
		publisher:   pub,
		logger:      logger,
		metrics:     metrics,
		opts:        opts,
		clock:       clock,
	}
}

// CheckReadiness returns nil once a run has completed successfully, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns the summary of the most recent successful run.
func (p *Pipeline) LastRun() (domain.RunSummary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastRun == nil {
		return domain.RunSummary{}, false
	}
	return *p.lastRun, true
}

// Execute runs the pipeline once for the request's dates and returns the
// summary of what it produced.
func (p *Pipeline) Execute(ctx context.Context, req Request) (summary domain.RunSummary, err error) {
	start := p.clock.Now()
	defer func() {
		p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
		if err != nil {
			p.metrics.Runs.WithLabelValues("error").Inc()
			return
		}
		p.metrics.Runs.WithLabelValues("success").Inc()
		p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))
	}()

	from, to := domain.Date(req.Start), domain.Date(req.End)
	if to.Before(from) {
		return domain.RunSummary{}, fmt.Errorf("%w: end %s is before start %s",
			domain.ErrTimeAlignment, to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	log := p.logger.With("start", from.Format(time.DateOnly), "end", to.Format(time.DateOnly))
	log.Info("run started")

	swe, err := p.swe.Load(ctx, from, to, nil)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("load swe: %w", err)
	}
	precip, err := p.precip.Load(ctx, from, to, nil)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("load precipitation: %w", err)
	}
	log.Info("inputs loaded",
		"swe_steps", len(swe.Time), "swe_grid", gridSize(swe),
		"precip_steps", len(precip.Time), "precip_grid", gridSize(precip),
	)

	products, err := p.transformer.Transform(ctx, swe, precip)
	if err != nil {
		return domain.RunSummary{}, err
	}

	rateStats, dailyStats := report.Summarize(products.Rate), report.Summarize(products.Daily)
	files, err := p.writeOutputs(ctx, from, to, req.Point, products, rateStats, dailyStats)
	if err != nil {
		return domain.RunSummary{}, err
	}

	summary = domain.RunSummary{
		ID:          uuid.NewString(),
		Start:       from,
		End:         to,
		Location:    req.Point,
		Steps:       len(products.Daily.Time),
		NoDataSteps: noDataSteps(products.Resampled),
		Files:       files,
		Rate:        rateStats,
		Daily:       dailyStats,
		ProcessedAt: p.clock.Now().UTC(),
	}
	log.Info("run complete",
		"run_id", summary.ID,
		"steps", summary.Steps,
		"no_data_steps", summary.NoDataSteps,
		"mean_mm_day", summary.Daily.Mean,
		"max_mm_day", summary.Daily.Max,
		"files", len(files),
	)

	p.publish(ctx, summary)

	p.mu.Lock()
	p.lastRun = &summary
	p.mu.Unlock()
	p.ready.Store(true)
	return summary, nil
}

// writeOutputs writes the grids and CSV reports and returns the file names.
func (p *Pipeline) writeOutputs(ctx context.Context, from, to time.Time, point *domain.Point, products Products, rateStats, dailyStats domain.FieldStats) ([]string, error) {
	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	span := from.Format(time.DateOnly) + "_" + to.Format(time.DateOnly)

	type output struct {
		prefix string
		ds     *domain.GridDataset
	}
	grids := []output{
		{"lwf_m_s", products.Rate},
		{"lwf_mm_day", products.Daily},
	}
	if p.opts.WriteIntermediate {
		grids = append(grids,
			output{"snodas_resampled", products.Resampled},
			output{"capa_cropped", products.Cropped},
		)
	}

	files := make([]string, 0, len(grids)+2)
	g, gctx := errgroup.WithContext(ctx)
	for _, out := range grids {
		name := out.prefix + "_" + span + ".nc"
		files = append(files, name)
		g.Go(func() error {
			return p.writer.Write(gctx, filepath.Join(p.opts.OutputDir, name), out.ds)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	statsName := "lwf_statistics_" + span + ".csv"
	err := p.writeFile(statsName, func(f *os.File) error {
		return report.WriteStatsCSV(f, rateStats, dailyStats)
	})
	if err != nil {
		return nil, err
	}
	files = append(files, statsName)

	if point != nil {
		seriesName := fmt.Sprintf("lwf_timeseries_%s_%s_%s.csv", formatCoord(point.Lat), formatCoord(point.Lon), span)
		err := p.writeFile(seriesName, func(f *os.File) error {
			return report.WriteSeriesCSV(f, products.Rate, products.Daily, *point)
		})
		if err != nil {
			return nil, err
		}
		files = append(files, seriesName)
	}
	return files, nil
}

func (p *Pipeline) writeFile(name string, fill func(*os.File) error) error {
	f, err := os.Create(filepath.Join(p.opts.OutputDir, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// publish sends the run summary. Failures are logged and counted; the run's
// outputs are already on disk.
func (p *Pipeline) publish(ctx context.Context, summary domain.RunSummary) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, summary); err != nil {
		p.logger.Warn("publish run summary failed", "error", err, "run_id", summary.ID)
		p.metrics.PublishErrors.Inc()
	}
}

// Run executes the pipeline immediately and then once per interval until the
// context is cancelled. Each run covers the LookbackDays days before today.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.opts.Interval, "lookback_days", p.opts.LookbackDays)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.runScheduled(ctx)

	ticker := p.clock.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.runScheduled(ctx)
		}
	}
}

// Window returns the closed date range of a scheduled run at now.
func (p *Pipeline) Window(now time.Time) (start, end time.Time) {
	today := domain.Date(now)
	return today.AddDate(0, 0, -p.opts.LookbackDays), today.AddDate(0, 0, -1)
}

// runScheduled executes one scheduled run, retrying transient failures.
// Failures rooted in the data are not retried; they wait for the next tick.
func (p *Pipeline) runScheduled(ctx context.Context) {
	start, end := p.Window(p.clock.Now())
	req := Request{Start: start, End: end}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		_, err := p.Execute(ctx, req)
		if err == nil || ctx.Err() != nil {
			return
		}
		if domain.IsPermanent(err) {
			p.logger.Warn("run failed, waiting for next schedule", "error", err)
			return
		}
		if attempt >= maxAttempts {
			p.logger.Error("run failed, retries exhausted", "error", err, "attempts", attempt)
			return
		}
		p.logger.Error("run failed, retrying", "error", err, "attempt", attempt, "backoff", backoff)
		if !p.sleepWithContext(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (p *Pipeline) sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

// noDataSteps counts time steps in which every cell is NoData.
func noDataSteps(g *domain.GridDataset) int {
	n := 0
	for _, slice := range g.Values {
		empty := true
		for _, row := range slice {
			for _, v := range row {
				if !domain.IsNoData(v) {
					empty = false
					break
				}
			}
			if !empty {
				break
			}
		}
		if empty {
			n++
		}
	}
	return n
}

func gridSize(g *domain.GridDataset) string {
	return strconv.Itoa(len(g.Lat)) + "x" + strconv.Itoa(len(g.Lon))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
