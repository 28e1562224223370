package netcdf

import (
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func floats1[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func floats2[T number](in [][]T) [][]float64 {
	out := make([][]float64, len(in))
	for i, row := range in {
		out[i] = floats1(row)
	}
	return out
}

func floats3[T number](in [][][]T) [][][]float64 {
	out := make([][][]float64, len(in))
	for i, slice := range in {
		out[i] = floats2(slice)
	}
	return out
}

// toVector converts a one-dimensional variable or attribute value.
func toVector(v any) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return floats1(x), nil
	case []float32:
		return floats1(x), nil
	case []int64:
		return floats1(x), nil
	case []int32:
		return floats1(x), nil
	case []int16:
		return floats1(x), nil
	case []int8:
		return floats1(x), nil
	case []uint64:
		return floats1(x), nil
	case []uint32:
		return floats1(x), nil
	case []uint16:
		return floats1(x), nil
	case []uint8:
		return floats1(x), nil
	case float64:
		return []float64{x}, nil
	case float32:
		return []float64{float64(x)}, nil
	case int64:
		return []float64{float64(x)}, nil
	case int32:
		return []float64{float64(x)}, nil
	case int16:
		return []float64{float64(x)}, nil
	case int8:
		return []float64{float64(x)}, nil
	case uint8:
		return []float64{float64(x)}, nil
	default:
		return nil, fmt.Errorf("unsupported vector type %T", v)
	}
}

// toGrid converts a three-dimensional variable, or a two-dimensional one as a
// single step.
func toGrid(v any) ([][][]float64, error) {
	switch x := v.(type) {
	case [][][]float64:
		return floats3(x), nil
	case [][][]float32:
		return floats3(x), nil
	case [][][]int32:
		return floats3(x), nil
	case [][][]int16:
		return floats3(x), nil
	case [][][]int8:
		return floats3(x), nil
	case [][][]uint8:
		return floats3(x), nil
	case [][]float64:
		return [][][]float64{floats2(x)}, nil
	case [][]float32:
		return [][][]float64{floats2(x)}, nil
	case [][]int32:
		return [][][]float64{floats2(x)}, nil
	case [][]int16:
		return [][][]float64{floats2(x)}, nil
	case [][]int8:
		return [][][]float64{floats2(x)}, nil
	case [][]uint8:
		return [][][]float64{floats2(x)}, nil
	default:
		return nil, fmt.Errorf("unsupported grid type %T", v)
	}
}

// scalarAttr returns the first element of a numeric attribute.
func scalarAttr(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	vals, err := toVector(raw)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func stringAttr(attrs api.AttributeMap, key string) string {
	if attrs == nil {
		return ""
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}

// unpack applies CF packing and missing-value conventions in place: cells
// equal to _FillValue or missing_value become NaN, then scale_factor and
// add_offset are applied.
func unpack(values [][][]float64, attrs api.AttributeMap) {
	var missing []float64
	for _, key := range []string{"_FillValue", "missing_value"} {
		if v, ok := scalarAttr(attrs, key); ok && !math.IsNaN(v) {
			missing = append(missing, v)
		}
	}
	scale, hasScale := scalarAttr(attrs, "scale_factor")
	offset, hasOffset := scalarAttr(attrs, "add_offset")
	if !hasScale {
		scale = 1
	}
	if !hasOffset {
		offset = 0
	}

	for _, slice := range values {
		for _, row := range slice {
			for x, v := range row {
				for _, m := range missing {
					if v == m {
						v = math.NaN()
						break
					}
				}
				row[x] = v*scale + offset
			}
		}
	}
}
