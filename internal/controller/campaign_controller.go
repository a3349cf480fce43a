// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/dripworks/leadflow-backend/internal/errors"
	"github.com/dripworks/leadflow-backend/internal/service"
)

// CampaignController exposes the engine's operations over HTTP. It is a thin
// shell: all semantics live in the services.
type CampaignController struct {
	Lifecycle   *service.LifecycleService
	Engine      *service.QueueEngine
	Scanner     *service.ReplyScanner
	Suppression *service.SuppressionService
}

func (c *CampaignController) ActivateCampaign(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.Lifecycle.Activate)
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.Lifecycle.Pause)
}

func (c *CampaignController) CompleteCampaign(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.Lifecycle.Complete)
}

func (c *CampaignController) ArchiveCampaign(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.Lifecycle.Archive)
}

func (c *CampaignController) transition(w http.ResponseWriter, r *http.Request, op func(int) error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	if err := op(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"campaign_id": id, "ok": true})
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 20)
	page := intQuery(r, "page", 1)
	status := r.URL.Query().Get("status")

	list, err := c.Lifecycle.List((page-1)*limit, limit, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, list)
}

func (c *CampaignController) GetCampaignStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	stats, err := c.Lifecycle.Stats(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stats)
}

func (c *CampaignController) RunDueCycle(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)
	result, err := c.Engine.RunDueCycle(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (c *CampaignController) ScanForReplies(w http.ResponseWriter, r *http.Request) {
	sinceDays := intQuery(r, "since_days", 30)
	result, err := c.Scanner.ScanForReplies(sinceDays)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (c *CampaignController) AddSuppression(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email      string `json:"email"`
		Scope      string `json:"scope"`
		Source     string `json:"source"`
		CampaignID *int   `json:"campaign_id"`
		Reason     string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Source == "" {
		body.Source = "manual"
	}
	entry, err := c.Suppression.Add(body.Email, body.Scope, body.Source, body.CampaignID, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entry)
}

func (c *CampaignController) RemoveSuppression(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if err := c.Suppression.Remove(email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"email": email, "removed": true})
}

func (c *CampaignController) ListSuppressions(w http.ResponseWriter, r *http.Request) {
	entries, err := c.Suppression.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entries)
}

func intQuery(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var (
		notFound    *appErrors.ErrCampaignNotFound
		validation  *appErrors.ValidationError
		campaign    *appErrors.CampaignError
		suppression *appErrors.SuppressionError
	)
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &validation):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &campaign):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &suppression):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
