package ml

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// LoadParameters reads the hyperparameter file at path. It returns an empty
// map, never an error, when the file is unreadable or when n_estimators is
// not an integer, max_depth is neither an integer nor null, or max_features
// is not a string or number. Callers treat an empty map as "do not train".
func LoadParameters(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]any{}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return map[string]any{}
	}

	if !isJSONInt(raw["n_estimators"]) {
		return map[string]any{}
	}
	if v, ok := raw["max_depth"]; ok && v != nil && !isJSONInt(v) {
		return map[string]any{}
	}
	switch raw["max_features"].(type) {
	case string, json.Number:
	default:
		return map[string]any{}
	}

	params := make(map[string]any, len(raw))
	for key, value := range raw {
		params[key] = plainNumber(value)
	}
	return params
}

// MaxFeatures describes how many features each split may consider.
type MaxFeatures struct {
	Mode     string // "sqrt", "log2", "count", "fraction", "all"
	Count    int
	Fraction float64
}

// Resolve returns the concrete feature count for a dataset of width columns.
func (m MaxFeatures) Resolve(width int) (int, error) {
	var n int
	switch m.Mode {
	case "", "all":
		n = width
	case "sqrt":
		n = int(math.Sqrt(float64(width)))
	case "log2":
		n = int(math.Log2(float64(width)))
	case "count":
		if m.Count > width {
			return 0, fmt.Errorf("max_features %d exceeds %d features", m.Count, width)
		}
		n = m.Count
	case "fraction":
		n = int(m.Fraction * float64(width))
	default:
		return 0, fmt.Errorf("unknown max_features mode %q", m.Mode)
	}
	if n < 1 {
		n = 1
	}
	return n, nil
}

var forestKeys = map[string]bool{
	"n_estimators":      true,
	"max_depth":         true,
	"max_features":      true,
	"random_state":      true,
	"min_samples_split": true,
	"min_samples_leaf":  true,
	"bootstrap":         true,
	"criterion":         true,
}

// ignoredForestKeys are classifier settings that do not change the fitted
// model of a single-process forest.
var ignoredForestKeys = map[string]bool{
	"n_jobs":     true,
	"verbose":    true,
	"warm_start": true,
	"oob_score":  true,
}

// unsupportedForestKeys are valid classifier settings this forest does not
// implement.
var unsupportedForestKeys = map[string]bool{
	"class_weight":             true,
	"ccp_alpha":                true,
	"max_leaf_nodes":           true,
	"max_samples":              true,
	"min_impurity_decrease":    true,
	"min_weight_fraction_leaf": true,
	"monotonic_cst":            true,
}

// ForestOptionsFromParams converts a validated parameter map into forest
// options. Settings without effect here are ignored; unsupported or unknown
// keys are rejected.
func ForestOptionsFromParams(params map[string]any) (ForestOptions, error) {
	opts := ForestOptions{
		Bootstrap:   true,
		MaxFeatures: MaxFeatures{Mode: "sqrt"},
		Tree: TreeOptions{
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			Criterion:       "gini",
		},
	}

	var unsupported, unknown []string
	for key := range params {
		switch {
		case forestKeys[key], ignoredForestKeys[key]:
		case unsupportedForestKeys[key]:
			unsupported = append(unsupported, key)
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unsupported) > 0 {
		sort.Strings(unsupported)
		return opts, fmt.Errorf("unsupported parameters: %s", strings.Join(unsupported, ", "))
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return opts, fmt.Errorf("unexpected parameters: %s", strings.Join(unknown, ", "))
	}

	n, ok := params["n_estimators"].(int)
	if !ok || n < 1 {
		return opts, fmt.Errorf("n_estimators must be a positive integer, got %v", params["n_estimators"])
	}
	opts.NEstimators = n

	if v, ok := params["max_depth"]; ok && v != nil {
		depth, isInt := v.(int)
		if !isInt || depth < 1 {
			return opts, fmt.Errorf("max_depth must be a positive integer or null, got %v", v)
		}
		opts.Tree.MaxDepth = depth
	}

	mf, err := parseMaxFeatures(params["max_features"])
	if err != nil {
		return opts, err
	}
	opts.MaxFeatures = mf

	if v, ok := params["random_state"]; ok && v != nil {
		seed, isInt := v.(int)
		if !isInt {
			return opts, fmt.Errorf("random_state must be an integer or null, got %v", v)
		}
		opts.Seed = int64(seed)
		opts.HasSeed = true
	}
	if v, ok := params["min_samples_split"]; ok {
		switch val := v.(type) {
		case int:
			if val < 2 {
				return opts, fmt.Errorf("min_samples_split must be >= 2, got %d", val)
			}
			opts.Tree.MinSamplesSplit = val
		default:
			return opts, fmt.Errorf("min_samples_split must be an integer, got %v", v)
		}
	}
	if v, ok := params["min_samples_leaf"]; ok {
		val, isInt := v.(int)
		if !isInt || val < 1 {
			return opts, fmt.Errorf("min_samples_leaf must be a positive integer, got %v", v)
		}
		opts.Tree.MinSamplesLeaf = val
	}
	if v, ok := params["bootstrap"]; ok {
		val, isBool := v.(bool)
		if !isBool {
			return opts, fmt.Errorf("bootstrap must be a boolean, got %v", v)
		}
		opts.Bootstrap = val
	}
	if v, ok := params["criterion"]; ok {
		switch v {
		case "gini":
			opts.Tree.Criterion = "gini"
		case "entropy", "log_loss":
			opts.Tree.Criterion = "entropy"
		default:
			return opts, fmt.Errorf("unsupported criterion %v", v)
		}
	}
	return opts, nil
}

func parseMaxFeatures(v any) (MaxFeatures, error) {
	switch val := v.(type) {
	case string:
		switch val {
		case "sqrt", "auto":
			return MaxFeatures{Mode: "sqrt"}, nil
		case "log2":
			return MaxFeatures{Mode: "log2"}, nil
		}
		return MaxFeatures{}, fmt.Errorf("unsupported max_features %q", val)
	case int:
		if val < 1 {
			return MaxFeatures{}, fmt.Errorf("max_features must be positive, got %d", val)
		}
		return MaxFeatures{Mode: "count", Count: val}, nil
	case float64:
		if val <= 0 || val > 1 {
			return MaxFeatures{}, fmt.Errorf("max_features fraction must be in (0, 1], got %v", val)
		}
		return MaxFeatures{Mode: "fraction", Fraction: val}, nil
	}
	return MaxFeatures{}, fmt.Errorf("unsupported max_features %v", v)
}

// isJSONInt reports whether v was written as a JSON integer literal.
func isJSONInt(v any) bool {
	num, ok := v.(json.Number)
	if !ok {
		return false
	}
	if strings.ContainsAny(num.String(), ".eE") {
		return false
	}
	_, err := num.Int64()
	return err == nil
}

func plainNumber(v any) any {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if isJSONInt(num) {
		i, _ := num.Int64()
		return int(i)
	}
	f, _ := num.Float64()
	return f
}
