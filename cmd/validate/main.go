// Command validate checks the integrity of one run's output directory: every
// product is present, flux values are non-negative, the m/s and mm/day grids
// agree, the flux steps follow the resampled SWE steps, the statistics CSV
// matches the grids, and, when intermediate grids were written, the flux
// recomputes from them.
//
// Usage:
//
//	go run ./cmd/validate -output-dir output -start 2025-03-01 -end 2025-03-04
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	ncadapter "github.com/couchcryptid/lwf-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/lwf-etl/internal/domain"
	"github.com/couchcryptid/lwf-etl/internal/flux"
	"github.com/couchcryptid/lwf-etl/internal/observability"
	"github.com/couchcryptid/lwf-etl/internal/report"
	"github.com/couchcryptid/lwf-etl/internal/resample"
)

const tolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// products holds the grids read back from one run.
type products struct {
	rate, daily        *domain.GridDataset
	resampled, cropped *domain.GridDataset // nil when intermediates were not written
	stats              []string
}

func main() {
	outputDir := flag.String("output-dir", "output", "run output directory")
	start := flag.String("start", "", "first date of the run (YYYY-MM-DD)")
	end := flag.String("end", "", "last date of the run (YYYY-MM-DD)")
	precipVar := flag.String("precip-variable", "accum_precip", "precipitation variable name")
	flag.Parse()

	if *start == "" || *end == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(*outputDir, *start+"_"+*end, *precipVar); code != 0 {
		os.Exit(code)
	}
}

func run(dir, span, precipVar string) int {
	fmt.Println("=== LWF Output Validation ===")
	fmt.Println()

	// ── Load products ──
	loading := &phase{name: "Products present"}
	p := load(dir, span, precipVar, loading)

	phases := []*phase{loading}
	if loading.passed() {
		phases = append(phases,
			validateNonNegative(p),
			validateUnits(p),
			validateTimeShift(p),
			validateStatistics(p),
			validateRecompute(p),
		)
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, ph := range phases {
		status := "\033[32mPASS\033[0m"
		if !ph.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(ph.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", ph.name, status)
	}
	if p.daily != nil {
		fmt.Printf("\nGrid: %d steps of %dx%d\n", len(p.daily.Time), len(p.daily.Lat), len(p.daily.Lon))
	}

	for _, ph := range phases {
		if ph.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", ph.name)
		for i, e := range ph.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func load(dir, span, precipVar string, ph *phase) products {
	var p products
	read := func(prefix string, required bool) *domain.GridDataset {
		path := filepath.Join(dir, prefix+"_"+span+".nc")
		if _, err := os.Stat(path); err != nil && !required {
			return nil
		}
		name := flux.Name
		switch prefix {
		case "snodas_resampled":
			name = resample.OutputName
		case "capa_cropped":
			name = precipVar
		}
		g, err := ncadapter.ReadFile(path, ncadapter.PrecipLayout(name), time.Time{})
		if err != nil {
			ph.errorf("%s: %v", filepath.Base(path), err)
			return nil
		}
		return g
	}
	p.rate = read("lwf_m_s", true)
	p.daily = read("lwf_mm_day", true)
	p.resampled = read("snodas_resampled", false)
	p.cropped = read("capa_cropped", false)

	statsPath := filepath.Join(dir, "lwf_statistics_"+span+".csv")
	rows, err := readCSV(statsPath)
	switch {
	case err != nil:
		ph.errorf("%s: %v", filepath.Base(statsPath), err)
	case len(rows) != 2 || len(rows[1]) != len(report.StatsHeader):
		ph.errorf("%s: want one header and one row of %d fields", filepath.Base(statsPath), len(report.StatsHeader))
	default:
		p.stats = rows[1]
	}
	return p
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}

// ── Validation phases ──

func validateNonNegative(p products) *phase {
	ph := &phase{name: "Flux is non-negative"}
	for _, g := range []*domain.GridDataset{p.rate, p.daily} {
		eachCell(g, func(t, y, x int, v float64) {
			if v < 0 {
				ph.errorf("%s %s [%d,%d] = %g", g.Metadata.Units, day(g, t), y, x, v)
			}
		})
	}
	return ph
}

func validateUnits(p products) *phase {
	ph := &phase{name: "m/s and mm/day grids agree"}
	if !p.rate.SameGrid(p.daily) || len(p.rate.Time) != len(p.daily.Time) {
		ph.errorf("rate and daily grids differ in shape")
		return ph
	}
	eachCellAll(p.daily, func(t, y, x int, daily float64) {
		rate := p.rate.Values[t][y][x]
		if domain.IsNoData(rate) != domain.IsNoData(daily) {
			ph.errorf("%s [%d,%d]: no-data mask differs", day(p.daily, t), y, x)
			return
		}
		if !domain.IsNoData(daily) && !approxEqual(rate*flux.MillimetresPerDayToMetresPerSecond, daily) {
			ph.errorf("%s [%d,%d]: %g m/s is not %g mm/day", day(p.daily, t), y, x, rate, daily)
		}
	})
	return ph
}

func validateTimeShift(p products) *phase {
	ph := &phase{name: "Flux steps follow SWE steps"}
	if p.resampled == nil {
		return ph
	}
	if len(p.resampled.Time) != len(p.daily.Time)+1 {
		ph.errorf("%d SWE steps for %d flux steps", len(p.resampled.Time), len(p.daily.Time))
		return ph
	}
	for i, t := range p.daily.Time {
		if !t.Equal(p.resampled.Time[i+1]) {
			ph.errorf("flux step %d at %s, want %s", i, day(p.daily, i), day(p.resampled, i+1))
		}
	}
	return ph
}

func validateStatistics(p products) *phase {
	ph := &phase{name: "Statistics match grids"}
	rate, daily := report.Summarize(p.rate), report.Summarize(p.daily)
	want := []float64{rate.Mean, rate.Max, rate.Min, rate.Std, daily.Mean, daily.Max, daily.Min, daily.Std}
	for i, field := range p.stats {
		if field == "" {
			if !math.IsNaN(want[i]) {
				ph.errorf("%s is empty, want %g", report.StatsHeader[i], want[i])
			}
			continue
		}
		got, err := strconv.ParseFloat(field, 64)
		if err != nil {
			ph.errorf("%s: %v", report.StatsHeader[i], err)
			continue
		}
		if !approxEqual(got, want[i]) {
			ph.errorf("%s = %g, want %g", report.StatsHeader[i], got, want[i])
		}
	}
	return ph
}

func validateRecompute(p products) *phase {
	ph := &phase{name: "Flux recomputes from intermediates"}
	if p.resampled == nil || p.cropped == nil {
		return ph
	}
	_, daily, err := flux.NewCalculator(observability.NewMetricsForTesting()).Compute(p.resampled, p.cropped)
	if err != nil {
		ph.errorf("recompute: %v", err)
		return ph
	}
	if !daily.SameGrid(p.daily) || len(daily.Time) != len(p.daily.Time) {
		ph.errorf("recomputed grid differs in shape")
		return ph
	}
	eachCellAll(daily, func(t, y, x int, v float64) {
		got := p.daily.Values[t][y][x]
		if domain.IsNoData(v) != domain.IsNoData(got) || !domain.IsNoData(v) && !approxEqual(v, got) {
			ph.errorf("%s [%d,%d] = %g, recomputed %g", day(daily, t), y, x, got, v)
		}
	})
	return ph
}

// ── Helpers ──

// eachCell calls fn for every valid cell of g.
func eachCell(g *domain.GridDataset, fn func(t, y, x int, v float64)) {
	eachCellAll(g, func(t, y, x int, v float64) {
		if !domain.IsNoData(v) {
			fn(t, y, x, v)
		}
	})
}

func eachCellAll(g *domain.GridDataset, fn func(t, y, x int, v float64)) {
	for t, slice := range g.Values {
		for y, row := range slice {
			for x, v := range row {
				fn(t, y, x, v)
			}
		}
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func day(g *domain.GridDataset, t int) string {
	return g.Time[t].Format(time.DateOnly)
}
