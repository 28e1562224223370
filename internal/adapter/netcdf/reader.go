package netcdf

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/couchcryptid/lwf-etl/internal/domain"
)

// ReadFile reads one grid file. Files without a time variable take their
// single step from fallback; pass the zero time to require one.
func ReadFile(path string, layout Layout, fallback time.Time) (*domain.GridDataset, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	g, err := readGroup(nc, layout, fallback)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return g, nil
}

func readGroup(nc api.Group, layout Layout, fallback time.Time) (*domain.GridDataset, error) {
	lat, latName, err := axisValues(nc, layout.Lat)
	if err != nil {
		return nil, err
	}
	lon, lonName, err := axisValues(nc, layout.Lon)
	if err != nil {
		return nil, err
	}

	v, err := nc.GetVariable(layout.Variable)
	if err != nil {
		return nil, fmt.Errorf("%w: variable %s: %v", domain.ErrNotFound, layout.Variable, err)
	}
	values, err := toGrid(v.Values)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", layout.Variable, err)
	}
	if n := len(v.Dimensions); n >= 2 {
		dims := v.Dimensions[n-2:]
		if dims[0] != latName || dims[1] != lonName {
			return nil, fmt.Errorf("%w: variable %s has dimensions %v, want (..., %s, %s)",
				domain.ErrShapeMismatch, layout.Variable, v.Dimensions, latName, lonName)
		}
	}
	unpack(values, v.Attributes)

	times, err := timeAxis(nc, layout.Time, fallback)
	if err != nil {
		return nil, err
	}

	g := &domain.GridDataset{
		Name:   layout.Variable,
		Time:   times,
		Lat:    lat,
		Lon:    lon,
		Values: values,
		Metadata: domain.Metadata{
			Description:    stringAttr(nc.Attributes(), "description"),
			Units:          stringAttr(v.Attributes, "units"),
			NegativeValues: stringAttr(nc.Attributes(), "negative_values"),
		},
	}
	if g.Metadata.Units == "" {
		g.Metadata.Units = stringAttr(nc.Attributes(), "units")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// axisValues reads a coordinate variable by name or alias and returns the
// name it was found under.
func axisValues(nc api.Group, name string) ([]float64, string, error) {
	available := nc.ListVariables()
	for _, n := range candidates(name) {
		if !slices.Contains(available, n) {
			continue
		}
		v, err := nc.GetVariable(n)
		if err != nil {
			return nil, "", fmt.Errorf("axis %s: %w", n, err)
		}
		vals, err := toVector(v.Values)
		if err != nil {
			return nil, "", fmt.Errorf("axis %s: %w", n, err)
		}
		return vals, n, nil
	}
	return nil, "", fmt.Errorf("%w: axis %s", domain.ErrNotFound, name)
}

func timeAxis(nc api.Group, name string, fallback time.Time) ([]time.Time, error) {
	if !slices.Contains(nc.ListVariables(), name) {
		if fallback.IsZero() {
			return nil, fmt.Errorf("%w: time variable %s", domain.ErrNotFound, name)
		}
		return []time.Time{fallback}, nil
	}
	v, err := nc.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("time variable %s: %w", name, err)
	}
	raw, err := toVector(v.Values)
	if err != nil {
		return nil, fmt.Errorf("time variable %s: %w", name, err)
	}
	units := stringAttr(v.Attributes, "units")
	if units == "" {
		return nil, fmt.Errorf("time variable %s has no units", name)
	}
	return decodeTimes(raw, units)
}
