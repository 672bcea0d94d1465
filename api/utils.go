package api

import (
	"encoding/json"
	"net/http"

	"warden/util"

	"go.uber.org/zap"
)

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}, logger *zap.SugaredLogger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorw("Failed to encode response", "error", err)
	}
}

// writeError logs the full error and sends the client only the message
func writeError(w http.ResponseWriter, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	if err != nil {
		logger.Errorw(message,
			"error", util.RedactError(err),
			"status_code", statusCode)
	} else {
		logger.Warnw(message, "status_code", statusCode)
	}
	writeJSON(w, statusCode, map[string]string{"error": message}, logger)
}
