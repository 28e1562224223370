// Package flux derives liquid water flux from consecutive snow water
// equivalent grids and coincident precipitation.
package flux

import (
	"fmt"
	"time"

	"github.com/couchcryptid/lwf-etl/internal/domain"
	"github.com/couchcryptid/lwf-etl/internal/observability"
)

// MillimetresPerDayToMetresPerSecond divides a depth in millimetres per day to
// give metres per second.
const MillimetresPerDayToMetresPerSecond = 86400000

// Output names, units and annotations carried by the computed grids.
const (
	Name           = "lwf"
	Description    = "Liquid Water Flux calculated as LWF(t) = SWE(t-1) - SWE(t) + P(t)"
	UnitsRate      = "m/s"
	UnitsDaily     = "mm/day"
	NegativeValues = "converted to zero"
)

// Calculator computes LWF(t) = max(0, SWE(t-1) - SWE(t) + P(t)).
type Calculator struct {
	metrics *observability.Metrics
}

// NewCalculator creates a Calculator that records cell counts in metrics.
func NewCalculator(metrics *observability.Metrics) *Calculator {
	return &Calculator{metrics: metrics}
}

// Compute returns the flux as a rate in m/s and as a daily depth in mm/day.
// Both share the spatial grid of the inputs and the time axis swe.Time[1:].
// For each output step the precipitation step with the identical timestamp is
// used. A cell is NoData when any of its three operands is.
func (c *Calculator) Compute(swe, precip *domain.GridDataset) (rate, daily *domain.GridDataset, err error) {
	if err := swe.Validate(); err != nil {
		return nil, nil, fmt.Errorf("flux swe: %w", err)
	}
	if err := precip.Validate(); err != nil {
		return nil, nil, fmt.Errorf("flux precip: %w", err)
	}
	if !swe.SameGrid(precip) {
		return nil, nil, fmt.Errorf("%w: %s and %s are on different grids", domain.ErrShapeMismatch, swe.Name, precip.Name)
	}
	if len(swe.Time) < 2 {
		return nil, nil, fmt.Errorf("%w: %s needs at least 2 time steps, has %d", domain.ErrTimeAlignment, swe.Name, len(swe.Time))
	}

	pidx := precip.TimeIndex()
	steps := make([]int, len(swe.Time)-1)
	for t := 1; t < len(swe.Time); t++ {
		p, ok := pidx[swe.Time[t].UnixNano()]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s has no step at %s", domain.ErrTimeAlignment, precip.Name, swe.Time[t].Format(time.RFC3339))
		}
		steps[t-1] = p
	}

	times := swe.Time[1:]
	rate = domain.NewGridDataset(Name, times, swe.Lat, swe.Lon)
	daily = domain.NewGridDataset(Name, times, swe.Lat, swe.Lon)
	rate.Metadata = domain.Metadata{Description: Description, Units: UnitsRate, NegativeValues: NegativeValues}
	daily.Metadata = domain.Metadata{Description: Description, Units: UnitsDaily, NegativeValues: NegativeValues}

	var computed, clamped int
	for i, p := range steps {
		prev, cur, rain := swe.Values[i], swe.Values[i+1], precip.Values[p]
		for y := range cur {
			for x := range cur[y] {
				a, b, r := prev[y][x], cur[y][x], rain[y][x]
				if domain.IsNoData(a) || domain.IsNoData(b) || domain.IsNoData(r) {
					continue
				}
				f := a - b + r
				if f < 0 {
					f = 0
					clamped++
				}
				computed++
				daily.Values[i][y][x] = f
				rate.Values[i][y][x] = f / MillimetresPerDayToMetresPerSecond
			}
		}
	}

	c.metrics.CellsComputed.Add(float64(computed))
	c.metrics.CellsClamped.Add(float64(clamped))
	return rate, daily, nil
}
