package ml

import (
	"errors"
	"fmt"
	"math/rand"
)

// ForestOptions are the resolved random-forest hyperparameters.
type ForestOptions struct {
	NEstimators int
	Tree        TreeOptions
	MaxFeatures MaxFeatures
	Bootstrap   bool
	// Seed is used when HasSeed is set; otherwise training is not reproducible.
	Seed    int64
	HasSeed bool
}

// RandomForest is a bagged ensemble of decision trees whose class
// probabilities are averaged.
type RandomForest struct {
	Trees     []*DecisionTree `json:"trees"`
	NClasses  int             `json:"n_classes"`
	NFeatures int             `json:"n_features"`
}

func (rf *RandomForest) Train(features [][]float64, labels []int, nClasses int, opts ForestOptions) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if opts.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", opts.NEstimators)
	}

	width := len(features[0])
	treeOpts := opts.Tree
	maxFeatures, err := opts.MaxFeatures.Resolve(width)
	if err != nil {
		return err
	}
	treeOpts.MaxFeatures = maxFeatures

	seed := opts.Seed
	if !opts.HasSeed {
		seed = rand.Int63()
	}
	master := rand.New(rand.NewSource(seed))

	trees := make([]*DecisionTree, opts.NEstimators)
	for t := range trees {
		rng := rand.New(rand.NewSource(master.Int63()))
		sampleX, sampleY := features, labels
		if opts.Bootstrap {
			sampleX, sampleY = bootstrapSample(features, labels, rng)
		}
		tree := &DecisionTree{}
		if err := tree.Train(sampleX, sampleY, nClasses, treeOpts, rng); err != nil {
			return fmt.Errorf("tree %d: %w", t, err)
		}
		trees[t] = tree
	}

	rf.Trees = trees
	rf.NClasses = nClasses
	rf.NFeatures = width
	return nil
}

// PredictProba averages the class distributions of every tree.
func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != rf.NFeatures {
		return nil, fmt.Errorf("model expects %d features, got %d", rf.NFeatures, len(features))
	}
	proba := make([]float64, rf.NClasses)
	for _, tree := range rf.Trees {
		value, err := tree.PredictProba(features)
		if err != nil {
			return nil, err
		}
		for i, p := range value {
			proba[i] += p
		}
	}
	for i := range proba {
		proba[i] /= float64(len(rf.Trees))
	}
	return proba, nil
}

func (rf *RandomForest) Predict(features []float64) (int, float64, error) {
	proba, err := rf.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	label := argmax(proba)
	return label, proba[label], nil
}

// Accuracy returns the share of rows predicted correctly.
func Accuracy(model Model, features [][]float64, labels []int) (float64, error) {
	if len(features) == 0 {
		return 0, nil
	}
	if len(features) != len(labels) {
		return 0, errors.New("features and labels size mismatch")
	}
	correct := 0
	for i, row := range features {
		label, _, err := model.Predict(row)
		if err != nil {
			return 0, err
		}
		if label == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(features)), nil
}

func bootstrapSample(features [][]float64, labels []int, rng *rand.Rand) ([][]float64, []int) {
	n := len(features)
	x := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		idx := rng.Intn(n)
		x[i] = features[idx]
		y[i] = labels[idx]
	}
	return x, y
}
