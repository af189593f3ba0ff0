package pipeline

import (
	"fmt"
	"math"
	"math/rand"

	"flowerlab/ml"
)

const (
	TestSize  = 0.2
	SplitSeed = 42
)

// SplitResult holds the train and test partitions of a processed dataset.
type SplitResult struct {
	XTrain [][]float64 `json:"X_train"`
	YTrain []int       `json:"y_train"`
	XTest  [][]float64 `json:"X_test"`
	YTest  []int       `json:"y_test"`
}

// Split shuffles the rows with a fixed seed and holds out ceil(20%) of them
// for testing. The split is not stratified.
func Split(p *Processed) (*SplitResult, error) {
	n := len(p.Features)
	if n != len(p.Labels) {
		return nil, fmt.Errorf("%w: %d feature rows but %d labels", ErrProcessing, n, len(p.Labels))
	}
	nTest := int(math.Ceil(TestSize * float64(n)))
	nTrain := n - nTest
	if nTrain <= 0 {
		return nil, fmt.Errorf("%w: with n_samples=%d and test_size=%v the train set would be empty", ErrProcessing, n, TestSize)
	}

	perm := rand.New(rand.NewSource(SplitSeed)).Perm(n)
	result := &SplitResult{
		XTrain: make([][]float64, 0, nTrain),
		YTrain: make([]int, 0, nTrain),
		XTest:  make([][]float64, 0, nTest),
		YTest:  make([]int, 0, nTest),
	}
	for _, idx := range perm[:nTest] {
		result.XTest = append(result.XTest, p.Features[idx])
		result.YTest = append(result.YTest, p.Labels[idx])
	}
	for _, idx := range perm[nTest:] {
		result.XTrain = append(result.XTrain, p.Features[idx])
		result.YTrain = append(result.YTrain, p.Labels[idx])
	}
	return result, nil
}

// SplitTrain returns only the training partition of Split.
func SplitTrain(p *Processed) ([][]float64, []int, error) {
	result, err := Split(p)
	if err != nil {
		return nil, nil, err
	}
	return result.XTrain, result.YTrain, nil
}

// TrainingSet bundles a split with the preprocessing metadata the model needs
// at prediction time.
func (s *SplitResult) TrainingSet(p *Processed) ml.TrainingSet {
	return ml.TrainingSet{
		XTrain:       s.XTrain,
		YTrain:       s.YTrain,
		XTest:        s.XTest,
		YTest:        s.YTest,
		Classes:      p.Classes,
		Scaler:       p.Scaler,
		FeatureNames: p.FeatureNames(),
	}
}
