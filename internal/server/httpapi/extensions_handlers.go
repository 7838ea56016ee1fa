package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacknotes/syncserver/internal/common"
	"github.com/stacknotes/syncserver/internal/server/models"
)

type extensionSettingsDTO struct {
	UUID        string    `json:"uuid"`
	ExtensionID string    `json:"extension_id"`
	MuteEmails  bool      `json:"mute_emails"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func extensionSettingsToDTO(s *models.ExtensionSettings) extensionSettingsDTO {
	return extensionSettingsDTO{
		UUID:        s.UUID,
		ExtensionID: s.ExtensionID,
		MuteEmails:  s.MuteEmails,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type createExtensionSettingsRequest struct {
	ExtensionID string `json:"extension_id"`
	MuteEmails  bool   `json:"mute_emails"`
}

func (s *Server) handleCreateExtensionSettings(w http.ResponseWriter, r *http.Request) {
	var req createExtensionSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", common.ErrorValidation))
		return
	}

	settings, err := s.extensions.Create(r.Context(), req.ExtensionID, req.MuteEmails)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, extensionSettingsToDTO(settings))
}

func (s *Server) handleGetExtensionSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.extensions.Get(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, extensionSettingsToDTO(settings))
}

type updateExtensionSettingsRequest struct {
	MuteEmails bool `json:"mute_emails"`
}

func (s *Server) handleUpdateExtensionSettings(w http.ResponseWriter, r *http.Request) {
	var req updateExtensionSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", common.ErrorValidation))
		return
	}

	settings, err := s.extensions.SetMuteEmails(r.Context(), chi.URLParam(r, "uuid"), req.MuteEmails)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, extensionSettingsToDTO(settings))
}
