package http

import (
	"errors"
	"net/http"

	"flowerlab/monitoring"
	"flowerlab/params"
)

type collectionRequest struct {
	Params map[string]any `json:"params"`
}

func (a *API) handleSeeCollection(w http.ResponseWriter, r *http.Request) {
	values, err := a.Params.Get(r.Context())
	if err != nil {
		detail := ""
		if errors.Is(err, params.ErrNotFound) {
			detail = "Parameters not found."
		}
		a.fail(w, r, err, detail)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Parameters retrieved.",
		"params":  values,
	})
}

func (a *API) handleAddCollection(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err, "")
		return
	}

	response, err := a.Params.Add(r.Context(), req.Params)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	a.publish(monitoring.ParamsChanged, response)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Parameters processed.",
		"response": response,
	})
}

func (a *API) handleUpdateCollection(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err, "")
		return
	}

	response, current, err := a.Params.Update(r.Context(), req.Params)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	a.publish(monitoring.ParamsChanged, response)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Parameters processed.",
		"response": response,
		"params":   current,
	})
}
