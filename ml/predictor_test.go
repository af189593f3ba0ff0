package ml

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func saveBundle(t *testing.T, path string, classes []string, scaler *StandardScaler) {
	t.Helper()
	features, labels := blobs(10, 11)
	forest := &RandomForest{}
	if err := forest.Train(features, labels, 3, ForestOptions{NEstimators: 5, MaxFeatures: MaxFeatures{Mode: "sqrt"}, Bootstrap: true, HasSeed: true, Seed: 42}); err != nil {
		t.Fatalf("train: %v", err)
	}
	bundle := &Bundle{Classes: classes, Scaler: scaler, Params: map[string]any{"n_estimators": 5}, Forest: forest}
	if err := bundle.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestPredictorPredict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	saveBundle(t, path, []string{"setosa", "versicolor", "virginica"}, nil)

	predictor, err := NewPredictor(2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := predictor.Predict(path, []float64{5.1, 3.5, 1.4, 0.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "setosa" {
		t.Fatalf("expected [setosa], got %v", got)
	}
}

func TestPredictorReloadsChangedModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	saveBundle(t, path, []string{"a", "b", "c"}, nil)

	predictor, err := NewPredictor(1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, err := predictor.Predict(path, []float64{5.0, 3.4, 1.5, 0.2})
	if err != nil || first[0] != "a" {
		t.Fatalf("expected a, got %v (%v)", first, err)
	}

	saveBundle(t, path, []string{"setosa-renamed", "b", "c"}, nil)
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	second, err := predictor.Predict(path, []float64{5.0, 3.4, 1.5, 0.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second[0] != "setosa-renamed" {
		t.Fatalf("expected reloaded model, got %v", second)
	}
}

func TestPredictorErrors(t *testing.T) {
	dir := t.TempDir()
	predictor, err := NewPredictor(0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := predictor.Predict(filepath.Join(dir, "missing.json"), []float64{1, 2, 3, 4}); !errors.Is(err, ErrPrediction) {
		t.Fatalf("expected ErrPrediction for missing model, got %v", err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := predictor.Predict(corrupt, []float64{1, 2, 3, 4}); !errors.Is(err, ErrPrediction) {
		t.Fatalf("expected ErrPrediction for corrupt model, got %v", err)
	}

	path := filepath.Join(dir, "model.json")
	saveBundle(t, path, []string{"a", "b", "c"}, nil)
	if _, err := predictor.Predict(path, []float64{1, 2}); !errors.Is(err, ErrPrediction) {
		t.Fatalf("expected ErrPrediction for wrong width, got %v", err)
	}
}

func TestPredictorAppliesScaler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	// identity scaler keeps the raw blob coordinates
	scaler := &StandardScaler{Mean: []float64{0, 0, 0, 0}, Scale: []float64{1, 1, 1, 1}}
	saveBundle(t, path, []string{"setosa", "versicolor", "virginica"}, scaler)

	predictor, err := NewPredictor(1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := predictor.Predict(path, []float64{6.6, 3.0, 5.6, 2.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != "virginica" {
		t.Fatalf("expected virginica, got %v", got)
	}
}
