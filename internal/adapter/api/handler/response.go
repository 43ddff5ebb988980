package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/V4T54L/notification-service/internal/domain"
)

var errInvalidBody = errors.New("invalid request body")

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithMessage(w http.ResponseWriter, logger *slog.Logger, code int, message string) {
	respondWithJSON(w, logger, code, map[string]any{"success": false, "message": message})
}

// respondWithError maps domain errors onto status codes. Anything unknown
// is logged and reported as a 500.
func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingUser):
		respondWithMessage(w, logger, http.StatusBadRequest, "User ID missing")
	case errors.Is(err, errInvalidBody):
		respondWithMessage(w, logger, http.StatusBadRequest, "Invalid request body")
	case errors.Is(err, domain.ErrForbidden):
		respondWithMessage(w, logger, http.StatusForbidden, "Not authorized")
	case errors.Is(err, domain.ErrNotFound):
		respondWithMessage(w, logger, http.StatusNotFound, "Notification not found")
	default:
		logger.Error("request failed", "error", err)
		respondWithJSON(w, logger, http.StatusInternalServerError, map[string]any{"success": false, "error": "Internal server error"})
	}
}

// bodyUserID reads an optional {"userId": "..."} body. An empty body is not an error.
func bodyUserID(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	var body struct {
		UserID string `json:"userId"`
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body)
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", errInvalidBody
	}
	return body.UserID, nil
}
