package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stacknotes/syncserver/internal/common"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service sentinels to HTTP statuses. Unknown errors become
// an opaque 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrorNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: common.ErrorNotFound.Error()})
	case errors.Is(err, common.ErrorDuplicateEmail):
		writeJSON(w, http.StatusConflict, errorResponse{Error: common.ErrorDuplicateEmail.Error()})
	case errors.Is(err, common.ErrorLockedOut):
		writeJSON(w, http.StatusLocked, errorResponse{Error: common.ErrorLockedOut.Error()})
	case errors.Is(err, common.ErrorInvalidCredentials),
		errors.Is(err, common.ErrorUnauthenticated),
		errors.Is(err, common.ErrorSessionExpired),
		errors.Is(err, common.ErrorInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrorForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: common.ErrorForbidden.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: common.ErrorInternal.Error()})
	}
}
