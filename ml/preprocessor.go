package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// StandardScaler rescales each feature to zero mean and unit variance using
// the population standard deviation of the fitted rows.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Fit computes per-column statistics over rows.
func (s *StandardScaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return errors.New("features is empty")
	}
	width := len(rows[0])
	mean := make([]float64, width)
	for i, row := range rows {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(rows))
	for j := range mean {
		mean[j] /= n
	}

	scale := make([]float64, width)
	for _, row := range rows {
		for j, v := range row {
			diff := v - mean[j]
			scale[j] += diff * diff
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		// constant columns are left centred but unscaled
		if scale[j] == 0 {
			scale[j] = 1
		}
		if !isFinite(mean[j]) || !isFinite(scale[j]) {
			return fmt.Errorf("column %d statistics overflow (mean %v, scale %v)", j, mean[j], scale[j])
		}
	}

	s.Mean = mean
	s.Scale = scale
	return nil
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Transform returns a scaled copy of row.
func (s *StandardScaler) Transform(row []float64) ([]float64, error) {
	if len(s.Mean) == 0 {
		return nil, errors.New("scaler not fitted")
	}
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("expected %d features, got %d", len(s.Mean), len(row))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

func (s *StandardScaler) FitTransform(rows [][]float64) ([][]float64, error) {
	if err := s.Fit(rows); err != nil {
		return nil, err
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// LabelEncoder maps label values to integer codes. Codes follow the sorted
// order of the distinct values: numeric order when every value is a number,
// lexical order otherwise.
type LabelEncoder struct {
	Classes []string `json:"classes"`
	index   map[string]int
}

func (e *LabelEncoder) Fit(values []any) error {
	if len(values) == 0 {
		return errors.New("labels is empty")
	}
	seen := make(map[string]float64)
	numeric := true
	for _, v := range values {
		key, num, isNum := labelKey(v)
		if !isNum {
			numeric = false
		}
		seen[key] = num
	}

	classes := make([]string, 0, len(seen))
	for key := range seen {
		classes = append(classes, key)
	}
	if numeric {
		sort.Slice(classes, func(i, j int) bool { return seen[classes[i]] < seen[classes[j]] })
	} else {
		sort.Strings(classes)
	}
	e.Classes = classes
	e.buildIndex()
	return nil
}

func (e *LabelEncoder) Transform(values []any) ([]int, error) {
	if e.index == nil {
		e.buildIndex()
	}
	codes := make([]int, len(values))
	for i, v := range values {
		key, _, _ := labelKey(v)
		code, ok := e.index[key]
		if !ok {
			return nil, fmt.Errorf("unknown label %q", key)
		}
		codes[i] = code
	}
	return codes, nil
}

// Inverse returns the class name for code.
func (e *LabelEncoder) Inverse(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("label code %d out of range", code)
	}
	return e.Classes[code], nil
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
}

func labelKey(v any) (string, float64, bool) {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), val, true
	case int:
		return strconv.Itoa(val), float64(val), true
	case string:
		return val, 0, false
	case bool:
		return strconv.FormatBool(val), 0, false
	default:
		return fmt.Sprint(val), 0, false
	}
}
