// Package resample interpolates a gridded field from its native grid onto a
// target grid by piecewise-linear interpolation over a Delaunay triangulation
// of the valid source cells.
package resample

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/lwf-etl/internal/domain"
	"github.com/couchcryptid/lwf-etl/internal/observability"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// OutputName labels resampled fields, distinguishing them from raw source fields.
const OutputName = "swe_upscaled"

// Resampler crops a target grid to the source extent and interpolates every
// source time step onto it. Plans are cached across steps and calls, keyed by
// the grids and the valid-cell mask, so a Resampler is safe for concurrent use.
type Resampler struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	workers int
	plans   *planCache
	group   singleflight.Group
}

// New creates a Resampler running at most workers time steps at once and
// caching up to cacheSize interpolation plans.
func New(logger *slog.Logger, metrics *observability.Metrics, workers, cacheSize int) *Resampler {
	if workers < 1 {
		workers = 1
	}
	return &Resampler{
		logger:  logger,
		metrics: metrics,
		workers: workers,
		plans:   newPlanCache(cacheSize),
	}
}

// Resample returns source interpolated onto the target grid, together with
// the target cropped to the closed lon/lat bounding box of source. The
// resampled field has the time axis of source and the spatial axes of the
// cropped target. Cells outside the convex hull of a step's valid source
// points are NoData, and a step with fewer than three valid points is NoData
// throughout.
func (r *Resampler) Resample(ctx context.Context, source, target *domain.GridDataset) (*domain.GridDataset, *domain.GridDataset, error) {
	if err := source.Validate(); err != nil {
		return nil, nil, fmt.Errorf("resample source: %w", err)
	}
	if err := target.Validate(); err != nil {
		return nil, nil, fmt.Errorf("resample target: %w", err)
	}
	if len(source.Time) == 0 {
		return nil, nil, fmt.Errorf("%w: source %s has no time steps", domain.ErrShapeMismatch, source.Name)
	}

	cropped := Crop(target, Bounds(source))
	if len(cropped.Lat) == 0 || len(cropped.Lon) == 0 {
		return nil, nil, fmt.Errorf("%w: target %s does not overlap source %s", domain.ErrShapeMismatch, target.Name, source.Name)
	}

	out := domain.NewGridDataset(OutputName, source.Time, cropped.Lat, cropped.Lon)
	out.Metadata = domain.Metadata{
		Description: fmt.Sprintf("%s interpolated onto the %s grid", source.Name, target.Name),
		Units:       source.Metadata.Units,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for t := range source.Time {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.step(source, cropped, t, out.Values[t])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("resample %s: %w", source.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("resample %s: %w", source.Name, err)
	}

	r.logger.Debug("resample complete",
		"source", source.Name,
		"steps", len(source.Time),
		"lat", len(cropped.Lat),
		"lon", len(cropped.Lon),
	)
	return out, cropped, nil
}

// step interpolates source time step t into dst, which starts as NoData.
func (r *Resampler) step(source, target *domain.GridDataset, t int, dst [][]float64) {
	slice := source.Values[t]
	nx := len(source.Lon)
	var valid []int
	for y, row := range slice {
		for x, v := range row {
			if !domain.IsNoData(v) {
				valid = append(valid, y*nx+x)
			}
		}
	}

	r.metrics.StepsResampled.Inc()
	if len(valid) < 3 {
		r.logger.Warn("resample step has insufficient data",
			"error", domain.ErrInsufficientData,
			"source", source.Name,
			"time", source.Time[t].Format(time.DateOnly),
			"valid_points", len(valid),
		)
		r.metrics.NoDataSteps.Inc()
		return
	}

	key := planKey(source.Lat, source.Lon, valid, target.Lat, target.Lon)
	p := r.planFor(key, func() *plan {
		return buildPlan(source.Lat, source.Lon, valid, target.Lat, target.Lon)
	})
	p.apply(slice, dst)
}

// planFor returns the cached plan for key, building it at most once when
// several steps share a mask that is not yet cached.
func (r *Resampler) planFor(key uint64, build func() *plan) *plan {
	if p, ok := r.plans.get(key); ok {
		r.metrics.PlanCache.WithLabelValues("hit").Inc()
		return p
	}
	r.metrics.PlanCache.WithLabelValues("miss").Inc()

	v, _, _ := r.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		if p, ok := r.plans.get(key); ok {
			return p, nil
		}
		start := time.Now()
		p := build()
		r.metrics.PlanBuild.Observe(time.Since(start).Seconds())
		r.plans.put(key, p)
		return p, nil
	})
	return v.(*plan)
}
