package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// TreeOptions control how a single tree grows.
type TreeOptions struct {
	// MaxDepth <= 0 grows the tree until leaves are pure.
	MaxDepth        int
	MaxFeatures     int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Criterion       string
}

// DecisionTree is a CART classifier stored as a flat node slice; node 0 is
// the root and children are addressed by index.
type DecisionTree struct {
	Nodes    []TreeNode `json:"nodes"`
	NClasses int        `json:"n_classes"`
}

type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	Value      []float64 `json:"value"`
	IsLeaf     bool      `json:"is_leaf"`
}

// Train grows the tree on features/labels. Labels must lie in [0, nClasses).
func (dt *DecisionTree) Train(features [][]float64, labels []int, nClasses int, opts TreeOptions, rng *rand.Rand) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if nClasses <= 0 {
		return errors.New("no classes")
	}
	for _, label := range labels {
		if label < 0 || label >= nClasses {
			return errors.New("label out of range")
		}
	}
	width := len(features[0])
	if opts.MaxFeatures <= 0 || opts.MaxFeatures > width {
		opts.MaxFeatures = width
	}
	if opts.MinSamplesSplit < 2 {
		opts.MinSamplesSplit = 2
	}
	if opts.MinSamplesLeaf < 1 {
		opts.MinSamplesLeaf = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}

	indices := make([]int, len(features))
	for i := range indices {
		indices[i] = i
	}
	b := &treeBuilder{features: features, labels: labels, nClasses: nClasses, width: width, opts: opts, rng: rng}
	dt.NClasses = nClasses
	dt.Nodes = b.build(indices, 0)
	return nil
}

// Predict returns the most probable class and its probability.
func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	value, err := dt.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	label := argmax(value)
	return label, value[label], nil
}

// PredictProba returns the class distribution of the leaf reached by features.
func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (dt *DecisionTree) Depth() int {
	if len(dt.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return 0
		}
		left, right := walk(node.LeftChild), walk(node.RightChild)
		if left > right {
			return left + 1
		}
		return right + 1
	}
	return walk(0)
}

type treeBuilder struct {
	features [][]float64
	labels   []int
	nClasses int
	width    int
	opts     TreeOptions
	rng      *rand.Rand
}

func (b *treeBuilder) build(indices []int, depth int) []TreeNode {
	counts := b.classCounts(indices)
	leaf := []TreeNode{{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      normalize(counts, len(indices)),
		IsLeaf:     true,
	}}

	if b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth {
		return leaf
	}
	if len(indices) < b.opts.MinSamplesSplit || isPure(counts) {
		return leaf
	}

	bestFeature, threshold, ok := b.findBestSplit(indices, counts)
	if !ok {
		return leaf
	}

	left, right := b.partition(indices, bestFeature, threshold)
	leftNodes := b.build(left, depth+1)
	rightNodes := b.build(right, depth+1)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		Value:      leaf[0].Value,
		IsLeaf:     false,
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, shift(leftNodes, 1)...)
	nodes = append(nodes, shift(rightNodes, 1+len(leftNodes))...)
	return nodes
}

func (b *treeBuilder) findBestSplit(indices []int, parentCounts []int) (int, float64, bool) {
	candidates := b.rng.Perm(b.width)[:b.opts.MaxFeatures]
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := b.impurity(parentCounts, len(indices))

	sorted := make([]int, len(indices))
	for _, featureIdx := range candidates {
		copy(sorted, indices)
		sort.Slice(sorted, func(i, j int) bool {
			return b.features[sorted[i]][featureIdx] < b.features[sorted[j]][featureIdx]
		})

		leftCounts := make([]int, b.nClasses)
		rightCounts := append([]int(nil), parentCounts...)
		total := len(sorted)
		for i := 0; i < total-1; i++ {
			label := b.labels[sorted[i]]
			leftCounts[label]++
			rightCounts[label]--

			current := b.features[sorted[i]][featureIdx]
			next := b.features[sorted[i+1]][featureIdx]
			if current == next {
				continue
			}
			nLeft := i + 1
			nRight := total - nLeft
			if nLeft < b.opts.MinSamplesLeaf || nRight < b.opts.MinSamplesLeaf {
				continue
			}
			impurity := (float64(nLeft)*b.impurity(leftCounts, nLeft) + float64(nRight)*b.impurity(rightCounts, nRight)) / float64(total)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = (current + next) / 2
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (b *treeBuilder) partition(indices []int, featureIdx int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, idx := range indices {
		if b.features[idx][featureIdx] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

func (b *treeBuilder) classCounts(indices []int) []int {
	counts := make([]int, b.nClasses)
	for _, idx := range indices {
		counts[b.labels[idx]]++
	}
	return counts
}

func (b *treeBuilder) impurity(counts []int, total int) float64 {
	if b.opts.Criterion == "entropy" {
		return entropy(counts, total)
	}
	return gini(counts, total)
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(total)
		impurity -= prob * prob
	}
	return impurity
}

func entropy(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, count := range counts {
		if count == 0 {
			continue
		}
		prob := float64(count) / float64(total)
		h -= prob * math.Log2(prob)
	}
	return h
}

func normalize(counts []int, total int) []float64 {
	value := make([]float64, len(counts))
	if total == 0 {
		return value
	}
	for i, count := range counts {
		value[i] = float64(count) / float64(total)
	}
	return value
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, count := range counts {
		if count > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// shift rebases child indices of a subtree placed at offset.
func shift(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if nodes[i].IsLeaf {
			continue
		}
		nodes[i].LeftChild += offset
		nodes[i].RightChild += offset
	}
	return nodes
}
