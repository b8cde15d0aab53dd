package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/notifyhub/tipcast/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{"success": false, "error": msg})
}

// decodeJSON reads the request body into v. A malformed body is reported as
// a validation error so it maps to 400 like a missing field.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrMissingField, err)
	}
	return nil
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingField), errors.Is(err, domain.ErrInvalidID):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrDispatchInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrGateway):
		respondError(w, http.StatusBadGateway, "messaging gateway error")
	case errors.Is(err, domain.ErrCommitFailed):
		respondError(w, http.StatusInternalServerError, domain.ErrCommitFailed.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
