package netcdf

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/couchcryptid/lwf-etl/internal/domain"
)

// Writer persists grids as classic NetCDF files: coordinate variables for
// time, latitude and longitude, one data variable named after the dataset,
// and the dataset metadata as global attributes.
type Writer struct {
	layout Layout
	logger *slog.Logger
}

// NewWriter creates a Writer using the axis names of PrecipLayout, so that
// its files load back through a SeriesArchive.
func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{layout: PrecipLayout(""), logger: logger}
}

// Write replaces the file at path with ds. The file appears only once
// completely written.
func (w *Writer) Write(ctx context.Context, path string, ds *domain.GridDataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := removeIfExists(tmp); err != nil {
		return err
	}
	if err := w.write(tmp, ds); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.logger.Debug("grid written", "path", path, "variable", ds.Name, "steps", len(ds.Time))
	return nil
}

func (w *Writer) write(path string, ds *domain.GridDataset) (err error) {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cw.Close(); err == nil {
			err = cerr
		}
	}()

	timeAttrs, err := attributes("units", epochUnits, "calendar", "standard")
	if err != nil {
		return err
	}
	latAttrs, err := attributes("units", "degrees_north")
	if err != nil {
		return err
	}
	lonAttrs, err := attributes("units", "degrees_east")
	if err != nil {
		return err
	}
	dataAttrs, err := attributes("units", ds.Metadata.Units, "_FillValue", math.NaN())
	if err != nil {
		return err
	}

	vars := []struct {
		name string
		v    api.Variable
	}{
		{w.layout.Time, api.Variable{Values: encodeTimes(ds.Time), Dimensions: []string{w.layout.Time}, Attributes: timeAttrs}},
		{w.layout.Lat, api.Variable{Values: append([]float64(nil), ds.Lat...), Dimensions: []string{w.layout.Lat}, Attributes: latAttrs}},
		{w.layout.Lon, api.Variable{Values: append([]float64(nil), ds.Lon...), Dimensions: []string{w.layout.Lon}, Attributes: lonAttrs}},
		{ds.Name, api.Variable{
			Values:     ds.Values,
			Dimensions: []string{w.layout.Time, w.layout.Lat, w.layout.Lon},
			Attributes: dataAttrs,
		}},
	}
	for _, v := range vars {
		if err := cw.AddVar(v.name, v.v); err != nil {
			return fmt.Errorf("add variable %s: %w", v.name, err)
		}
	}

	var kv []any
	if ds.Metadata.Description != "" {
		kv = append(kv, "description", ds.Metadata.Description)
	}
	if ds.Metadata.Units != "" {
		kv = append(kv, "units", ds.Metadata.Units)
	}
	if ds.Metadata.NegativeValues != "" {
		kv = append(kv, "negative_values", ds.Metadata.NegativeValues)
	}
	if len(kv) == 0 {
		return nil
	}
	global, err := attributes(kv...)
	if err != nil {
		return err
	}
	return cw.AddGlobalAttrs(global)
}

// attributes builds an ordered attribute map from alternating keys and
// values. Empty string values are omitted.
func attributes(kv ...any) (*util.OrderedMap, error) {
	var keys []string
	vals := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k := kv[i].(string)
		if s, ok := kv[i+1].(string); ok && s == "" {
			continue
		}
		keys = append(keys, k)
		vals[k] = kv[i+1]
	}
	return util.NewOrderedMap(keys, vals)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale %s: %w", path, err)
	}
	return nil
}
