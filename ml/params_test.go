package ml

import (
	"os"
	"path/filepath"
	"testing"
)

func writeParams(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model_parameters.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write params: %v", err)
	}
	return path
}

func TestLoadParameters(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		empty bool
	}{
		{"valid", `{"n_estimators": 100, "max_depth": 5, "max_features": "sqrt"}`, false},
		{"null depth", `{"n_estimators": 10, "max_depth": null, "max_features": 2}`, false},
		{"float fraction", `{"n_estimators": 10, "max_features": 0.5}`, false},
		{"float estimators", `{"n_estimators": 10.0, "max_features": "sqrt"}`, true},
		{"string estimators", `{"n_estimators": "100", "max_features": "sqrt"}`, true},
		{"bool estimators", `{"n_estimators": true, "max_features": "sqrt"}`, true},
		{"float depth", `{"n_estimators": 10, "max_depth": 2.5, "max_features": "sqrt"}`, true},
		{"missing max_features", `{"n_estimators": 10}`, true},
		{"list max_features", `{"n_estimators": 10, "max_features": [1]}`, true},
		{"malformed", `{`, true},
		{"not an object", `[1, 2]`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := LoadParameters(writeParams(t, tc.body))
			if tc.empty && len(params) != 0 {
				t.Fatalf("expected empty params, got %v", params)
			}
			if !tc.empty && len(params) == 0 {
				t.Fatalf("expected params to load")
			}
		})
	}
}

func TestLoadParametersMissingFile(t *testing.T) {
	params := LoadParameters(filepath.Join(t.TempDir(), "absent.json"))
	if params == nil || len(params) != 0 {
		t.Fatalf("expected empty non-nil map, got %v", params)
	}
}

func TestLoadParametersNumberTypes(t *testing.T) {
	params := LoadParameters(writeParams(t, `{"n_estimators": 100, "max_depth": 5, "max_features": 0.75}`))
	if _, ok := params["n_estimators"].(int); !ok {
		t.Fatalf("expected n_estimators to be int, got %T", params["n_estimators"])
	}
	if _, ok := params["max_features"].(float64); !ok {
		t.Fatalf("expected max_features to be float64, got %T", params["max_features"])
	}
}

func TestForestOptionsFromParams(t *testing.T) {
	opts, err := ForestOptionsFromParams(map[string]any{
		"n_estimators":     50,
		"max_depth":        4,
		"max_features":     "auto",
		"random_state":     42,
		"min_samples_leaf": 2,
		"bootstrap":        false,
		"criterion":        "log_loss",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.NEstimators != 50 || opts.Tree.MaxDepth != 4 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.MaxFeatures.Mode != "sqrt" {
		t.Fatalf("expected auto to mean sqrt, got %q", opts.MaxFeatures.Mode)
	}
	if !opts.HasSeed || opts.Seed != 42 {
		t.Fatalf("expected seed 42")
	}
	if opts.Bootstrap {
		t.Fatalf("expected bootstrap disabled")
	}
	if opts.Tree.Criterion != "entropy" || opts.Tree.MinSamplesLeaf != 2 {
		t.Fatalf("unexpected tree options: %+v", opts.Tree)
	}
}

func TestForestOptionsFromParamsIgnoresRuntimeSettings(t *testing.T) {
	opts, err := ForestOptionsFromParams(map[string]any{
		"n_estimators": 10,
		"max_depth":    3,
		"max_features": "sqrt",
		"n_jobs":       -1,
		"verbose":      0,
		"warm_start":   false,
		"oob_score":    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.NEstimators != 10 || opts.Tree.MaxDepth != 3 {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestForestOptionsFromParamsUnsupported(t *testing.T) {
	_, err := ForestOptionsFromParams(map[string]any{
		"n_estimators": 10,
		"max_features": "sqrt",
		"ccp_alpha":    0.01,
		"class_weight": "balanced",
	})
	if err == nil || err.Error() != "unsupported parameters: ccp_alpha, class_weight" {
		t.Fatalf("expected unsupported parameters error, got %v", err)
	}
}

func TestForestOptionsFromParamsErrors(t *testing.T) {
	cases := map[string]map[string]any{
		"unknown key":       {"n_estimators": 10, "max_features": "sqrt", "learning_rate": 0.1},
		"zero estimators":   {"n_estimators": 0, "max_features": "sqrt"},
		"bad max_features":  {"n_estimators": 10, "max_features": "half"},
		"fraction too big":  {"n_estimators": 10, "max_features": 1.5},
		"bad criterion":     {"n_estimators": 10, "max_features": "sqrt", "criterion": "mse"},
		"bad min split":     {"n_estimators": 10, "max_features": "sqrt", "min_samples_split": 1},
		"non-bool boostrap": {"n_estimators": 10, "max_features": "sqrt", "bootstrap": 1},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ForestOptionsFromParams(params); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
