package netcdf

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// epochUnits is the time encoding used for every file this package writes.
const epochUnits = "days since 1970-01-01 00:00:00"

const (
	day = 24 * time.Hour

	// maxDirectOffset bounds offsets added as a single time.Duration; larger
	// ones are split into whole days and a remainder.
	maxDirectOffset = float64(1 << 62)

	// maxOffsetDays rejects offsets beyond any plausible calendar date.
	maxOffsetDays = 1e8
)

var referenceLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-1-2 15:4:5",
	"2006-01-02",
	"2006-1-2",
}

// parseTimeUnits parses a CF time encoding such as "hours since 1900-01-01
// 00:00:00" into a step length and a UTC reference time.
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	unit, ref, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q: missing \"since\"", units)
	}

	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "days", "day", "d":
		step = 24 * time.Hour
	case "hours", "hour", "hrs", "hr", "h":
		step = time.Hour
	case "minutes", "minute", "mins", "min":
		step = time.Minute
	case "seconds", "second", "secs", "sec", "s":
		step = time.Second
	default:
		return 0, time.Time{}, fmt.Errorf("time units %q: unsupported unit %q", units, unit)
	}

	ref = strings.TrimSpace(ref)
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSuffix(ref, "Z")
	for _, layout := range referenceLayouts {
		if t, err := time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return step, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("time units %q: unparseable reference date %q", units, ref)
}

// decodeTimes converts encoded offsets into timestamps. Dates follow the
// proleptic Gregorian calendar.
func decodeTimes(values []float64, units string) ([]time.Time, error) {
	step, ref, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("time value %d is not finite", i)
		}
		if ns := v * float64(step); math.Abs(ns) < maxDirectOffset {
			out[i] = ref.Add(time.Duration(math.Round(ns)))
			continue
		}
		perDay := float64(day / step)
		whole := math.Floor(v / perDay)
		if math.Abs(whole) > maxOffsetDays {
			return nil, fmt.Errorf("time value %d (%g %s) is out of range", i, v, units)
		}
		rem := time.Duration(math.Round((v - whole*perDay) * float64(step)))
		out[i] = ref.AddDate(0, 0, int(whole)).Add(rem)
	}
	return out, nil
}

// encodeTimes converts timestamps into days since the Unix epoch.
func encodeTimes(times []time.Time) []float64 {
	epoch := time.Unix(0, 0).UTC()
	out := make([]float64, len(times))
	for i, t := range times {
		d := t.Sub(epoch)
		out[i] = float64(d/day) + float64(d%day)/float64(day)
	}
	return out
}
