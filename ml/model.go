package ml

// Model predicts a class code and its probability for one feature row.
type Model interface {
	Predict(features []float64) (int, float64, error)
}

var (
	_ Model = (*DecisionTree)(nil)
	_ Model = (*RandomForest)(nil)
)
