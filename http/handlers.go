package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"flowerlab/config"
	"flowerlab/db"
	"flowerlab/ml"
	"flowerlab/monitoring"
	"flowerlab/params"
	"flowerlab/pipeline"
	"flowerlab/registry"
)

// RunLister reads back recorded training runs.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]db.TrainingRun, error)
}

// Dependencies are the components the handlers call into. Runs, Hub and
// Metrics may be nil.
type Dependencies struct {
	Registry  *registry.Store
	Loader    *pipeline.Loader
	Kaggle    *pipeline.KaggleClient
	Runner    *pipeline.Runner
	Trainer   *ml.Trainer
	Predictor *ml.Predictor
	Params    *params.Store
	Runs      RunLister
	Hub       *monitoring.Hub
	Metrics   *monitoring.MetricsCollector
	Logger    *zap.Logger
}

// API holds the route handlers.
type API struct {
	Dependencies
	logger *zap.Logger
}

func NewAPI(deps Dependencies) *API {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{Dependencies: deps, logger: logger}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /metrics", a.handleMetrics)

	mux.HandleFunc("GET /list", a.handleList)
	mux.HandleFunc("GET /info", a.handleInfo)
	mux.HandleFunc("POST /add", a.handleAdd)
	mux.HandleFunc("PUT /update", a.handleUpdate)
	mux.HandleFunc("GET /load", a.handleLoad)
	mux.HandleFunc("GET /load/kaggle", a.handleLoadKaggle)

	mux.HandleFunc("POST /process", a.handleProcess)
	mux.HandleFunc("POST /split", a.handleSplit)
	mux.HandleFunc("POST /PST", a.handlePST)
	mux.HandleFunc("POST /predict", a.handlePredict)
	mux.HandleFunc("GET /training/log", a.handleTrainingLog)

	mux.HandleFunc("GET /SeeCollection", a.handleSeeCollection)
	mux.HandleFunc("PUT /UpdateCollection", a.handleUpdateCollection)
	mux.HandleFunc("POST /AddCollection", a.handleAddCollection)

	if a.Hub != nil {
		mux.HandleFunc("GET /ws/events", a.Hub.ServeWS)
	}
}

// Handler returns the routes wrapped in the standard middleware chain.
func (a *API) Handler(cfg config.HTTPConfig) http.Handler {
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)

	return Chain(
		RecoveryMiddleware(a.logger),
		LoggerMiddleware(a.logger),
		MetricsMiddleware(a.Metrics, mux),
		SecurityHeadersMiddleware,
		CORSMiddleware(cfg.AllowedOrigins),
	)(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{"status": "ok"}
	if a.Metrics != nil {
		response["system"] = a.Metrics.GetSystemStats()
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if a.Metrics == nil {
		writeError(w, http.StatusNotFound, "Metrics are disabled.")
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.Write([]byte(a.Metrics.ExportPrometheus()))
}

// writeJSON encodes v before writing the status so an encoding failure can
// still be reported as a 500 detail.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{"detail": "Failed to encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, params.ErrNotFound),
		errors.Is(err, pipeline.ErrNoCSV),
		errors.Is(err, pipeline.ErrEmptyDataset):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrConflict),
		errors.Is(err, pipeline.ErrMissingSource),
		errors.Is(err, pipeline.ErrUnknownSchema),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("invalid request body")

// fail logs err and writes it with the status statusFor picks. detail
// replaces the error text when it is not empty.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error, detail string) {
	status := statusFor(err)
	if detail == "" {
		detail = err.Error()
	}
	if errors.Is(err, registry.ErrConfigMissing) {
		detail = "Configuration file is missing."
	}

	fields := []zap.Field{
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", fields...)
	} else {
		a.logger.Warn("request rejected", fields...)
	}
	writeError(w, status, detail)
}

// requireQuery returns the named query value or writes a 400.
func (a *API) requireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		writeError(w, http.StatusBadRequest, "Query parameter '"+name+"' is required.")
		return "", false
	}
	return value, true
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (a *API) publish(eventType monitoring.EventType, data any) {
	a.Hub.Publish(eventType, data)
	if a.Metrics != nil {
		a.Metrics.IncrCounter("events_total", 1, map[string]string{"type": string(eventType)})
	}
}
