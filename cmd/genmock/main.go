// Command genmock writes a synthetic SWE and precipitation archive for local
// runs and manual testing. The SWE grid is fine and melts steadily; the
// precipitation grid is coarser and covers a slightly larger area, matching
// the layout of the real daily SWE and CaPA archives.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -start 2025-03-01 -days 7
//
// then point SWE_ARCHIVE_DIR at data/mock/Archive and PRECIP_ARCHIVE_DIR at
// data/mock/Archive_CaPA.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	ncadapter "github.com/couchcryptid/lwf-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/lwf-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/mock", "output directory")
	startStr := flag.String("start", "2025-03-01", "first date (YYYY-MM-DD)")
	days := flag.Int("days", 7, "number of days")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	start, err := time.Parse(time.DateOnly, *startStr)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if *days < 2 {
		return fmt.Errorf("-days must be at least 2")
	}

	sweDir := filepath.Join(*out, "Archive")
	precipDir := filepath.Join(*out, "Archive_CaPA")
	for _, dir := range []string{sweDir, precipDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	w := ncadapter.NewWriter(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	sweLat, sweLon := axis(49, 51, 0.05), axis(-101, -98, 0.05)
	var times []time.Time
	for d := range *days {
		day := start.AddDate(0, 0, d)
		times = append(times, day)

		g := domain.NewGridDataset("SWE", []time.Time{day}, sweLat, sweLon)
		g.Metadata = domain.Metadata{Description: "Synthetic snow water equivalent", Units: "mm"}
		fillSWE(g, d)
		path := filepath.Join(sweDir, ncadapter.DailyFileName(day, "SWE"))
		if err := w.Write(ctx, path, g); err != nil {
			return err
		}
	}
	log.Printf("swe: %d daily files of %dx%d in %s", *days, len(sweLat), len(sweLon), sweDir)

	precip := domain.NewGridDataset("accum_precip", times, axis(48.8, 51.2, 0.1), axis(-101.2, -97.8, 0.1))
	precip.Metadata = domain.Metadata{Description: "Synthetic 24h accumulated precipitation", Units: "mm"}
	fillPrecip(precip, rng)
	path := filepath.Join(precipDir, "capa_"+start.Format("20060102")+".nc")
	if err := w.Write(ctx, path, precip); err != nil {
		return err
	}
	log.Printf("precip: %d steps of %dx%d in %s", *days, len(precip.Lat), len(precip.Lon), path)
	return nil
}

// axis returns the values from lo to hi inclusive in steps of step.
func axis(lo, hi, step float64) []float64 {
	n := int(math.Round((hi-lo)/step)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round((lo+float64(i)*step)*1e6) / 1e6
	}
	return out
}

// fillSWE writes a snowpack that is deeper to the north and melts a few
// millimetres a day. A masked lake in the south-west corner stays NoData.
func fillSWE(g *domain.GridDataset, day int) {
	for y, lat := range g.Lat {
		for x, lon := range g.Lon {
			if lat < 49.3 && lon < -100.7 {
				continue
			}
			depth := 80 + 40*(lat-49) + 10*math.Sin(lon*2)
			g.Values[0][y][x] = math.Max(0, depth-4*float64(day))
		}
	}
}

// fillPrecip writes scattered daily showers.
func fillPrecip(g *domain.GridDataset, rng *rand.Rand) {
	for t := range g.Values {
		base := rng.Float64() * 3
		for y := range g.Values[t] {
			for x := range g.Values[t][y] {
				g.Values[t][y][x] = math.Max(0, base+rng.NormFloat64())
			}
		}
	}
}
