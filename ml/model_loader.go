package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"flowerlab/fsutil"
)

const bundleFormat = "random_forest/v1"

// Bundle is the persisted model artifact: the forest plus everything needed
// to turn raw feature values into a class name.
type Bundle struct {
	Format       string          `json:"format"`
	CreatedAt    time.Time       `json:"created_at"`
	FeatureNames []string        `json:"feature_names,omitempty"`
	Classes      []string        `json:"classes"`
	Scaler       *StandardScaler `json:"scaler,omitempty"`
	Params       map[string]any  `json:"params"`
	Forest       *RandomForest   `json:"forest"`
}

// Save writes the bundle to path, replacing any previous model.
func (b *Bundle) Save(path string) error {
	if b.Forest == nil || len(b.Forest.Trees) == 0 {
		return errors.New("model not trained")
	}
	b.Format = bundleFormat
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, payload, 0o644)
}

// LoadBundle reads a bundle written by Save.
func LoadBundle(path string) (*Bundle, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if b.Format != bundleFormat {
		return nil, fmt.Errorf("unsupported model format %q", b.Format)
	}
	if b.Forest == nil || len(b.Forest.Trees) == 0 {
		return nil, errors.New("model not trained")
	}
	return &b, nil
}

// PredictLabel scales raw features, runs the forest and maps the winning code
// back to its class name.
func (b *Bundle) PredictLabel(features []float64) (string, float64, error) {
	if len(features) != b.Forest.NFeatures {
		return "", 0, fmt.Errorf("model expects %d features, got %d", b.Forest.NFeatures, len(features))
	}
	input := features
	if b.Scaler != nil {
		scaled, err := b.Scaler.Transform(features)
		if err != nil {
			return "", 0, err
		}
		input = scaled
	}
	code, confidence, err := b.Forest.Predict(input)
	if err != nil {
		return "", 0, err
	}
	if code >= len(b.Classes) {
		return "", 0, fmt.Errorf("label code %d has no class name", code)
	}
	return b.Classes[code], confidence, nil
}
