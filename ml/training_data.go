package ml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	StatusTrained = "trained"
	StatusSkipped = "skipped"
)

// TrainingSet is a split dataset ready for fitting. The test partition and
// the preprocessing metadata are optional.
type TrainingSet struct {
	XTrain       [][]float64
	YTrain       []int
	XTest        [][]float64
	YTest        []int
	Classes      []string
	Scaler       *StandardScaler
	FeatureNames []string
}

// TrainResult describes one training attempt. A skipped attempt is not an
// error: Reason says why nothing was written.
type TrainResult struct {
	Status        string         `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	ModelPath     string         `json:"model_path,omitempty"`
	Params        map[string]any `json:"params,omitempty"`
	TrainRows     int            `json:"train_rows"`
	TestRows      int            `json:"test_rows"`
	TrainAccuracy float64        `json:"train_accuracy"`
	TestAccuracy  *float64       `json:"test_accuracy,omitempty"`
	Duration      time.Duration  `json:"duration"`
	TrainedAt     time.Time      `json:"trained_at"`
}

// RunRecorder persists training attempts.
type RunRecorder interface {
	RecordRun(ctx context.Context, result *TrainResult) error
}

// Trainer fits a random forest with the hyperparameters found in paramsPath
// and writes the model bundle to modelPath.
type Trainer struct {
	paramsPath string
	modelPath  string
	recorder   RunRecorder
	logger     *zap.Logger
}

func NewTrainer(paramsPath, modelPath string, recorder RunRecorder, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		paramsPath: paramsPath,
		modelPath:  modelPath,
		recorder:   recorder,
		logger:     logger,
	}
}

// ModelPath returns where trained models are written.
func (t *Trainer) ModelPath() string {
	return t.modelPath
}

// Train fits and persists a model. Invalid or missing hyperparameters and a
// features/labels length mismatch skip training without an error; only
// failures to write the model are returned.
func (t *Trainer) Train(ctx context.Context, set TrainingSet) (*TrainResult, error) {
	start := time.Now()
	result, err := t.train(set)
	if err != nil {
		t.logger.Error("training failed", zap.Error(err))
		return nil, err
	}
	result.Duration = time.Since(start)
	result.TrainedAt = start.UTC()
	result.TrainRows = len(set.XTrain)
	result.TestRows = len(set.XTest)

	if result.Status == StatusSkipped {
		t.logger.Warn("training skipped", zap.String("reason", result.Reason))
	} else {
		fields := []zap.Field{
			zap.String("model", result.ModelPath),
			zap.Int("train_rows", result.TrainRows),
			zap.Float64("train_accuracy", result.TrainAccuracy),
			zap.Duration("duration", result.Duration),
		}
		if result.TestAccuracy != nil {
			fields = append(fields, zap.Float64("test_accuracy", *result.TestAccuracy))
		}
		t.logger.Info("model trained", fields...)
	}

	if t.recorder != nil {
		if err := t.recorder.RecordRun(ctx, result); err != nil {
			t.logger.Warn("record training run", zap.Error(err))
		}
	}
	return result, nil
}

func (t *Trainer) train(set TrainingSet) (*TrainResult, error) {
	params := LoadParameters(t.paramsPath)
	if len(params) == 0 {
		return skipped("invalid parameters", nil), nil
	}

	opts, err := ForestOptionsFromParams(params)
	if err != nil {
		return skipped(fmt.Sprintf("invalid parameters: %v", err), params), nil
	}

	if len(set.XTrain) != len(set.YTrain) {
		return skipped(fmt.Sprintf("inconsistent sample counts: X_train has %d rows, y_train has %d", len(set.XTrain), len(set.YTrain)), params), nil
	}
	if len(set.XTrain) == 0 {
		return skipped("no training rows", params), nil
	}

	classes := set.Classes
	if len(classes) == 0 {
		classes = codeClasses(set.YTrain)
	}

	forest := &RandomForest{}
	if err := forest.Train(set.XTrain, set.YTrain, len(classes), opts); err != nil {
		return skipped(fmt.Sprintf("fit failed: %v", err), params), nil
	}

	result := &TrainResult{Status: StatusTrained, ModelPath: t.modelPath, Params: params}
	if result.TrainAccuracy, err = Accuracy(forest, set.XTrain, set.YTrain); err != nil {
		return nil, err
	}
	if len(set.XTest) > 0 && len(set.XTest) == len(set.YTest) {
		acc, err := Accuracy(forest, set.XTest, set.YTest)
		if err != nil {
			return nil, err
		}
		result.TestAccuracy = &acc
	}

	if err := os.MkdirAll(filepath.Dir(t.modelPath), 0o755); err != nil {
		return nil, err
	}
	bundle := &Bundle{
		CreatedAt:    time.Now().UTC(),
		FeatureNames: set.FeatureNames,
		Classes:      classes,
		Scaler:       set.Scaler,
		Params:       params,
		Forest:       forest,
	}
	if err := bundle.Save(t.modelPath); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	return result, nil
}

func skipped(reason string, params map[string]any) *TrainResult {
	return &TrainResult{Status: StatusSkipped, Reason: reason, Params: params}
}

// codeClasses names classes after their codes when no encoder metadata is
// available.
func codeClasses(labels []int) []string {
	maxLabel := 0
	for _, label := range labels {
		if label > maxLabel {
			maxLabel = label
		}
	}
	classes := make([]string, maxLabel+1)
	for i := range classes {
		classes[i] = strconv.Itoa(i)
	}
	return classes
}
