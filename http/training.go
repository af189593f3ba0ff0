package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"flowerlab/ml"
	"flowerlab/monitoring"
	"flowerlab/pipeline"
)

const defaultRunLimit = 50

type predictRequest struct {
	Features []float64 `json:"features"`
}

// handleProcess cleans the posted records. The extended variant, selected by
// default, also encodes labels and scales the measurements.
func (a *API) handleProcess(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err), "")
		return
	}

	if r.URL.Query().Get("extended") == "false" {
		t, err := pipeline.Process(body)
		if err != nil {
			a.fail(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Dataset processed successfully.",
			"data":    t,
		})
		return
	}

	processed, err := pipeline.ProcessEncoded(body)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Dataset processed successfully.",
		"data":     processed.Table,
		"classes":  processed.Classes,
		"cleaning": processed.Stats,
	})
}

func (a *API) handleSplit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err), "")
		return
	}

	processed, err := pipeline.ProcessEncoded(body)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	split, err := pipeline.Split(processed)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Dataset split successfully.",
		"train_size": len(split.XTrain),
		"test_size":  len(split.XTest),
		"X_train":    split.XTrain,
		"y_train":    split.YTrain,
		"X_test":     split.XTest,
		"y_test":     split.YTest,
		"classes":    processed.Classes,
	})
}

// handlePST runs load, process, split and train in one request. The url
// query parameter overrides the configured default source.
func (a *API) handlePST(w http.ResponseWriter, r *http.Request) {
	result, err := a.Runner.Run(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		a.fail(w, r, err, "")
		return
	}

	training := result.Training
	if a.Metrics != nil {
		a.Metrics.IncrCounter("training_runs_total", 1, map[string]string{"status": training.Status})
		a.Metrics.Observe("pipeline_duration_seconds", result.Duration.Seconds(), nil)
	}
	if training.Status == ml.StatusTrained {
		a.Predictor.Invalidate(training.ModelPath)
		a.publish(monitoring.ModelTrained, training)
	} else {
		a.publish(monitoring.ModelSkipped, training)
	}
	a.publish(monitoring.PipelineCompleted, result)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "PST done",
		"result":  result,
	})
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err, "")
		return
	}

	prediction, err := a.Predictor.Predict(a.Trainer.ModelPath(), req.Features)
	if err != nil {
		a.fail(w, r, err, "An error occurred during prediction: "+err.Error())
		return
	}
	a.logger.Debug("prediction served",
		zap.Float64s("features", req.Features),
		zap.Strings("prediction", prediction))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Prediction successful",
		"prediction": prediction,
	})
}

func (a *API) handleTrainingLog(w http.ResponseWriter, r *http.Request) {
	if a.Runs == nil {
		writeError(w, http.StatusNotFound, "Training log is disabled.")
		return
	}

	limit := defaultRunLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Query parameter 'limit' must be an integer.")
			return
		}
		limit = n
	}

	runs, err := a.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Training runs listed.",
		"runs":    runs,
	})
}
