package ml

import (
	"errors"
	"fmt"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

var ErrPrediction = errors.New("prediction failed")

type cachedBundle struct {
	bundle  *Bundle
	modTime time.Time
	size    int64
}

// Predictor serves predictions from persisted bundles. Decoded bundles are
// kept in a small LRU keyed by path and reloaded whenever the file's mtime or
// size changes, so a retrained model is picked up on the next call.
type Predictor struct {
	cache  *lru.Cache[string, cachedBundle]
	logger *zap.Logger
}

func NewPredictor(cacheSize int, logger *zap.Logger) (*Predictor, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, cachedBundle](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Predictor{cache: cache, logger: logger}, nil
}

// Predict loads the model at path and returns the predicted class for the
// single feature row.
func (p *Predictor) Predict(path string, features []float64) ([]string, error) {
	bundle, err := p.load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrediction, err)
	}
	label, _, err := bundle.PredictLabel(features)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrediction, err)
	}
	return []string{label}, nil
}

func (p *Predictor) load(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		p.cache.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no model found at %s", path)
		}
		return nil, err
	}

	if cached, ok := p.cache.Get(path); ok && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		return cached.bundle, nil
	}

	bundle, err := LoadBundle(path)
	if err != nil {
		return nil, err
	}
	p.cache.Add(path, cachedBundle{bundle: bundle, modTime: info.ModTime(), size: info.Size()})
	p.logger.Debug("model loaded", zap.String("path", path), zap.Int("trees", len(bundle.Forest.Trees)))
	return bundle, nil
}

// Invalidate drops any cached bundle for path.
func (p *Predictor) Invalidate(path string) {
	p.cache.Remove(path)
}
