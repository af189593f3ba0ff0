package pipeline

import (
	"errors"
	"fmt"

	"flowerlab/ml"
)

var ErrProcessing = errors.New("error processing the dataset")

// CleaningStats counts what the missing-value pass removed.
type CleaningStats struct {
	RowsIn      int `json:"rows_in"`
	RowsDropped int `json:"rows_dropped"`
	RowsOut     int `json:"rows_out"`
}

// Processed is a cleaned dataset with encoded labels and scaled features.
type Processed struct {
	Table    *Table
	Features [][]float64
	Labels   []int
	Classes  []string
	Scaler   *ml.StandardScaler
	Stats    CleaningStats
}

// FeatureNames returns the four measurement columns.
func (p *Processed) FeatureNames() []string {
	return append([]string(nil), IrisColumns[:4]...)
}

// Process parses records, renames the columns to the Iris schema and drops
// every row with a missing value.
func Process(data []byte) (*Table, error) {
	t, err := ParseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessing, err)
	}
	cleaned, _, err := ProcessTable(t)
	return cleaned, err
}

// ProcessTable is Process on an already decoded table. Renaming is
// positional.
func ProcessTable(t *Table) (*Table, CleaningStats, error) {
	stats := CleaningStats{RowsIn: t.Len()}
	if len(t.Columns) != len(IrisColumns) {
		return nil, stats, fmt.Errorf("%w: Length mismatch: Expected axis has %d elements, new values have %d elements",
			ErrProcessing, len(t.Columns), len(IrisColumns))
	}

	out := &Table{
		Columns: append([]string(nil), IrisColumns...),
		Rows:    make([][]any, 0, t.Len()),
	}
	for _, row := range t.Rows {
		if hasMissing(row) {
			stats.RowsDropped++
			continue
		}
		out.Rows = append(out.Rows, append([]any(nil), row...))
	}
	stats.RowsOut = out.Len()
	return out, stats, nil
}

// ProcessEncoded runs Process, then replaces species with integer codes and
// standardises the four measurements over the whole batch.
func ProcessEncoded(data []byte) (*Processed, error) {
	t, err := ParseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessing, err)
	}
	return ProcessTableEncoded(t)
}

func ProcessTableEncoded(t *Table) (*Processed, error) {
	cleaned, stats, err := ProcessTable(t)
	if err != nil {
		return nil, err
	}
	if cleaned.Len() == 0 {
		return nil, fmt.Errorf("%w: no rows left after dropping missing values", ErrProcessing)
	}

	raw := make([][]float64, cleaned.Len())
	labels := make([]any, cleaned.Len())
	for i, row := range cleaned.Rows {
		features := make([]float64, 4)
		for j := 0; j < 4; j++ {
			v, ok := row[j].(float64)
			if !ok {
				return nil, fmt.Errorf("%w: could not convert %v in column %s to float", ErrProcessing, row[j], IrisColumns[j])
			}
			features[j] = v
		}
		raw[i] = features
		labels[i] = row[4]
	}

	encoder := &ml.LabelEncoder{}
	if err := encoder.Fit(labels); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessing, err)
	}
	codes, err := encoder.Transform(labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	scaler := &ml.StandardScaler{}
	scaled, err := scaler.FitTransform(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	out := &Table{Columns: cleaned.Columns, Rows: make([][]any, len(scaled))}
	for i, features := range scaled {
		out.Rows[i] = []any{features[0], features[1], features[2], features[3], codes[i]}
	}
	return &Processed{
		Table:    out,
		Features: scaled,
		Labels:   codes,
		Classes:  encoder.Classes,
		Scaler:   scaler,
		Stats:    stats,
	}, nil
}

func hasMissing(row []any) bool {
	for _, v := range row {
		if v == nil {
			return true
		}
	}
	return false
}
