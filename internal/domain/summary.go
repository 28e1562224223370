package domain

import (
	"encoding/json"
	"math"
	"time"
)

// FieldStats summarises the valid (non no-data) cells of a dataset.
// With Count == 0 the remaining fields are NaN.
type FieldStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Std   float64 `json:"std"`
}

// RunSummary describes one completed LWF run. It is the payload of the
// product notification published after the output files are written.
type RunSummary struct {
	ID          string     `json:"id"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Location    *Point     `json:"location,omitempty"`
	Steps       int        `json:"steps"`
	NoDataSteps int        `json:"no_data_steps"`
	Files       []string   `json:"files"`
	Rate        FieldStats `json:"rate"`
	Daily       FieldStats `json:"daily"`
	ProcessedAt time.Time  `json:"processed_at"`
}

// MarshalJSON encodes the NaN statistics of an empty field as null.
func (s FieldStats) MarshalJSON() ([]byte, error) {
	finite := func(v float64) *float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		Count int      `json:"count"`
		Mean  *float64 `json:"mean"`
		Min   *float64 `json:"min"`
		Max   *float64 `json:"max"`
		Std   *float64 `json:"std"`
	}{s.Count, finite(s.Mean), finite(s.Min), finite(s.Max), finite(s.Std)})
}
