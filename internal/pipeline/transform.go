package pipeline

import (
	"context"

	"github.com/couchcryptid/lwf-etl/internal/domain"
	"github.com/couchcryptid/lwf-etl/internal/flux"
	"github.com/couchcryptid/lwf-etl/internal/resample"
)

// LWFTransformer implements Transformer: it resamples SWE onto the
// precipitation grid and computes the flux from the aligned pair.
type LWFTransformer struct {
	resampler  *resample.Resampler
	calculator *flux.Calculator
}

// NewTransformer creates an LWFTransformer.
func NewTransformer(r *resample.Resampler, c *flux.Calculator) *LWFTransformer {
	return &LWFTransformer{resampler: r, calculator: c}
}

func (t *LWFTransformer) Transform(ctx context.Context, swe, precip *domain.GridDataset) (Products, error) {
	resampled, cropped, err := t.resampler.Resample(ctx, swe, precip)
	if err != nil {
		return Products{}, err
	}
	rate, daily, err := t.calculator.Compute(resampled, cropped)
	if err != nil {
		return Products{}, err
	}
	return Products{Resampled: resampled, Cropped: cropped, Rate: rate, Daily: daily}, nil
}
