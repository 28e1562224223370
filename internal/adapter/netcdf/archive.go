package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/lwf-etl/internal/domain"
)

// dailyDateLayout is the date prefix of daily archive file names.
const dailyDateLayout = "20060102"

// DailyArchive loads a variable stored one file per day as
// YYYYMMDD_<variable>_final.nc.
type DailyArchive struct {
	dir    string
	layout Layout
	logger *slog.Logger
}

// NewDailyArchive creates a loader over dir.
func NewDailyArchive(dir string, layout Layout, logger *slog.Logger) *DailyArchive {
	return &DailyArchive{dir: dir, layout: layout, logger: logger}
}

// DailyFileName is the archive file name for one date.
func DailyFileName(date time.Time, variable string) string {
	return date.UTC().Format(dailyDateLayout) + "_" + variable + "_final.nc"
}

// Load reads the files dated within [start, end] in date order and joins them
// along time. With a non-nil point only the nearest cell is returned.
func (a *DailyArchive) Load(ctx context.Context, start, end time.Time, point *domain.Point) (*domain.GridDataset, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("list daily archive %s: %w", a.dir, err)
	}

	from, to := domain.Date(start), domain.Date(end)
	suffix := "_" + a.layout.Variable + "_final.nc"
	type dated struct {
		date time.Time
		name string
	}
	var files []dated
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		d, err := time.Parse(dailyDateLayout, prefix)
		if err != nil {
			a.logger.Debug("skipping archive file without date prefix", "file", name)
			continue
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		files = append(files, dated{date: d, name: name})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s files in %s for %s to %s", domain.ErrNotFound,
			a.layout.Variable, a.dir, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].date.Before(files[j].date) })

	parts := make([]*domain.GridDataset, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := ReadFile(filepath.Join(a.dir, f.name), a.layout, f.date)
		if err != nil {
			return nil, err
		}
		parts = append(parts, g)
	}
	out, err := domain.Concat(parts...)
	if err != nil {
		return nil, fmt.Errorf("join %s files: %w", a.layout.Variable, err)
	}
	a.logger.Debug("daily archive loaded", "variable", a.layout.Variable, "files", len(files), "steps", len(out.Time))

	if point != nil {
		return out.Nearest(*point), nil
	}
	return out, nil
}

// SeriesArchive loads a variable from a single file holding its whole time
// series: the first .nc file, in name order, of a directory.
type SeriesArchive struct {
	dir    string
	layout Layout
	logger *slog.Logger
}

// NewSeriesArchive creates a loader over dir.
func NewSeriesArchive(dir string, layout Layout, logger *slog.Logger) *SeriesArchive {
	return &SeriesArchive{dir: dir, layout: layout, logger: logger}
}

// Load returns the steps dated within [start, end]. With a non-nil point only
// the nearest cell is returned.
func (a *SeriesArchive) Load(ctx context.Context, start, end time.Time, point *domain.Point) (*domain.GridDataset, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("list series archive %s: %w", a.dir, err)
	}
	var file string
	for _, e := range entries { // ReadDir returns entries sorted by name
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".nc") {
			file = e.Name()
			break
		}
	}
	if file == "" {
		return nil, fmt.Errorf("%w: no .nc file in %s", domain.ErrNotFound, a.dir)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, err := ReadFile(filepath.Join(a.dir, file), a.layout, time.Time{})
	if err != nil {
		return nil, err
	}
	out := g.SelectDates(start, end)
	if len(out.Time) == 0 {
		return nil, fmt.Errorf("%w: %s has no %s steps for %s to %s", domain.ErrNotFound, file,
			a.layout.Variable, domain.Date(start).Format(time.DateOnly), domain.Date(end).Format(time.DateOnly))
	}
	a.logger.Debug("series archive loaded", "variable", a.layout.Variable, "file", file, "steps", len(out.Time))

	if point != nil {
		return out.Nearest(*point), nil
	}
	return out, nil
}
