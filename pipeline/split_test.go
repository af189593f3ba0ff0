package pipeline

import (
	"errors"
	"testing"
)

func processedRows(n int) *Processed {
	p := &Processed{}
	for i := 0; i < n; i++ {
		p.Features = append(p.Features, []float64{float64(i), 0, 0, 0})
		p.Labels = append(p.Labels, i%3)
	}
	return p
}

func TestSplitSizes(t *testing.T) {
	cases := []struct {
		rows, train, test int
	}{
		{150, 120, 30},
		{100, 80, 20},
		{7, 5, 2},
		{2, 1, 1},
	}
	for _, tc := range cases {
		result, err := Split(processedRows(tc.rows))
		if err != nil {
			t.Fatalf("%d rows: unexpected error: %v", tc.rows, err)
		}
		if len(result.XTrain) != tc.train || len(result.XTest) != tc.test {
			t.Fatalf("%d rows: expected %d/%d, got %d/%d", tc.rows, tc.train, tc.test, len(result.XTrain), len(result.XTest))
		}
		if len(result.XTrain) != len(result.YTrain) || len(result.XTest) != len(result.YTest) {
			t.Fatalf("%d rows: features and labels differ in length", tc.rows)
		}
	}
}

func TestSplitIsReproducibleAndDisjoint(t *testing.T) {
	p := processedRows(50)
	first, err := Split(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Split(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range first.XTrain {
		if first.XTrain[i][0] != second.XTrain[i][0] {
			t.Fatalf("split differs between calls at %d", i)
		}
	}

	seen := make(map[float64]bool)
	for _, row := range append(first.XTrain, first.XTest...) {
		if seen[row[0]] {
			t.Fatalf("row %v appears twice", row)
		}
		seen[row[0]] = true
	}
	if len(seen) != 50 {
		t.Fatalf("expected every row exactly once, got %d", len(seen))
	}
	for i, row := range first.XTrain {
		if int(row[0])%3 != first.YTrain[i] {
			t.Fatalf("label detached from its row at %d", i)
		}
	}
}

func TestSplitTooSmall(t *testing.T) {
	if _, err := Split(processedRows(1)); !errors.Is(err, ErrProcessing) {
		t.Fatalf("expected ErrProcessing, got %v", err)
	}
	if _, _, err := SplitTrain(&Processed{Features: [][]float64{{1}}, Labels: []int{}}); !errors.Is(err, ErrProcessing) {
		t.Fatalf("expected ErrProcessing for mismatch, got %v", err)
	}
}

func TestSplitTrain(t *testing.T) {
	x, y, err := SplitTrain(processedRows(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(x) != 8 || len(y) != 8 {
		t.Fatalf("expected 8 training rows, got %d/%d", len(x), len(y))
	}
}
