package http

import (
	"errors"
	"fmt"
	"net/http"

	"flowerlab/monitoring"
	"flowerlab/pipeline"
	"flowerlab/registry"
)

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Registry.List()
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "No datasets found in the configuration file.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Datasets listed successfully.",
		"datasets": entries,
	})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	name, ok := a.requireQuery(w, r, "dataset_name")
	if !ok {
		return
	}

	entry, err := a.Registry.Get(name)
	if err != nil {
		a.fail(w, r, err, datasetDetail(err, name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Dataset '%s' found.", name),
		"dataset": entry,
	})
}

func (a *API) handleAdd(w http.ResponseWriter, r *http.Request) {
	name, ok := a.requireQuery(w, r, "name")
	if !ok {
		return
	}
	url, ok := a.requireQuery(w, r, "url")
	if !ok {
		return
	}

	entry, err := a.Registry.Add(name, url)
	if err != nil {
		a.fail(w, r, err, datasetDetail(err, name))
		return
	}
	a.publish(monitoring.DatasetAdded, entry)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Dataset '%s' added successfully.", name),
		"dataset": entry,
	})
}

func (a *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	name, ok := a.requireQuery(w, r, "name")
	if !ok {
		return
	}
	newURL, ok := a.requireQuery(w, r, "new_url")
	if !ok {
		return
	}

	entry, err := a.Registry.Update(name, newURL)
	if err != nil {
		a.fail(w, r, err, datasetDetail(err, name))
		return
	}
	a.publish(monitoring.DatasetUpdated, entry)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Dataset '%s' updated successfully.", name),
		"dataset": entry,
	})
}

func (a *API) handleLoad(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := pipeline.LoadRequest{
		URL:         q.Get("url"),
		DatasetName: q.Get("dataset_name"),
		Encoding:    q.Get("encoding"),
		Schema:      q.Get("schema"),
	}

	t, err := a.Loader.LoadDataset(r.Context(), req)
	if err != nil {
		detail := datasetDetail(err, req.DatasetName)
		if errors.Is(err, pipeline.ErrMissingSource) {
			detail = "Either 'url' or 'dataset_name' must be provided."
		}
		a.fail(w, r, err, detail)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Dataset loaded successfully.",
		"data":    t,
	})
}

func (a *API) handleLoadKaggle(w http.ResponseWriter, r *http.Request) {
	url, ok := a.requireQuery(w, r, "url")
	if !ok {
		return
	}

	t, err := a.Kaggle.Download(r.Context(), url)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Dataset downloaded successfully.",
		"data":    t,
	})
}

// datasetDetail phrases registry errors for the response body. Other errors
// keep their own text.
func datasetDetail(err error, name string) string {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return fmt.Sprintf("Dataset '%s' not found in the configuration file.", name)
	case errors.Is(err, registry.ErrConflict):
		return fmt.Sprintf("Dataset '%s' already exists in the configuration file.", name)
	}
	return ""
}
