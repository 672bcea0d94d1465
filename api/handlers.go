package api

import (
	"errors"
	"net/http"
	"strconv"

	"warden/core"
	"warden/storage"
	"warden/validation"

	"github.com/gorilla/mux"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 1000
)

// getSecurityHealth runs the self-test; 503 when it fails
func (a *API) getSecurityHealth(w http.ResponseWriter, r *http.Request) {
	result := a.selfTest.Run(r.Context())

	status := http.StatusOK
	if !result.Passed() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result, a.logger)
}

// getSecurityReport renders the self-test as markdown
func (a *API) getSecurityReport(w http.ResponseWriter, r *http.Request) {
	result := a.selfTest.Run(r.Context())

	status := http.StatusOK
	if !result.Passed() {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(validation.RenderMarkdown(result))); err != nil {
		a.logger.Debugw("Failed to write report", "error", err)
	}
}

func (a *API) getDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := a.dashboard.Build(r.Context(), a.clock.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build dashboard", err, a.logger)
		return
	}
	writeJSON(w, http.StatusOK, dashboard, a.logger)
}

func (a *API) getAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAlertLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000", nil, a.logger)
			return
		}
		limit = n
	}

	alerts, err := a.alerts.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get alerts", err, a.logger)
		return
	}
	if alerts == nil {
		alerts = []core.SecurityAlert{}
	}
	writeJSON(w, http.StatusOK, alerts, a.logger)
}

func (a *API) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" || len(id) > 128 {
		writeError(w, http.StatusBadRequest, "Invalid alert id", nil, a.logger)
		return
	}

	err := a.alerts.Acknowledge(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, "Alert not found", nil, a.logger)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to acknowledge alert", err, a.logger)
		return
	}

	if operator := OperatorFromContext(r.Context()); operator != "" {
		a.logger.Infow("Alert acknowledged by operator", "id", id, "operator", operator)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged", "id": id}, a.logger)
}
