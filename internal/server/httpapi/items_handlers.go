package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacknotes/syncserver/internal/common"
	"github.com/stacknotes/syncserver/internal/server/models"
	"github.com/stacknotes/syncserver/internal/server/services"
)

type itemDTO struct {
	UUID        string    `json:"uuid"`
	Content     string    `json:"content,omitempty"`
	ContentType string    `json:"content_type"`
	EncItemKey  string    `json:"enc_item_key,omitempty"`
	AuthHash    string    `json:"auth_hash,omitempty"`
	Deleted     bool      `json:"deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func itemToDTO(item *models.Item) itemDTO {
	return itemDTO{
		UUID:        item.UUID,
		Content:     item.Content,
		ContentType: item.ContentType,
		EncItemKey:  item.EncItemKey,
		AuthHash:    item.AuthHash,
		Deleted:     item.State.Deleted(),
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func itemsToDTO(items []*models.Item) []itemDTO {
	out := make([]itemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, itemToDTO(item))
	}
	return out
}

type incomingItemDTO struct {
	itemDTO
	// BaseUpdatedAt is the server updated_at the client last saw for this
	// item. Absent for new creations.
	BaseUpdatedAt *time.Time `json:"base_updated_at,omitempty"`
}

func (d incomingItemDTO) toIncoming() *services.IncomingItem {
	inc := &services.IncomingItem{
		Item: models.Item{
			UUID:        d.UUID,
			Content:     d.Content,
			ContentType: d.ContentType,
			EncItemKey:  d.EncItemKey,
			AuthHash:    d.AuthHash,
			State:       models.ItemStateFromDeleted(d.Deleted),
		},
	}
	if d.BaseUpdatedAt != nil {
		inc.BaseUpdatedAt = *d.BaseUpdatedAt
	}
	return inc
}

type syncRequest struct {
	Items       []incomingItemDTO `json:"items"`
	SyncToken   string            `json:"sync_token"`
	ContentType string            `json:"content_type,omitempty"`
	Limit       int               `json:"limit,omitempty"`
}

type conflictDTO struct {
	Item       itemDTO `json:"item"`
	ServerItem itemDTO `json:"server_item"`
}

type syncResponse struct {
	SavedItems     []itemDTO     `json:"saved_items"`
	Conflicts      []conflictDTO `json:"conflicts"`
	RetrievedItems []itemDTO     `json:"retrieved_items"`
	SyncToken      string        `json:"sync_token"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", common.ErrorValidation))
		return
	}

	cursor, err := services.ParseCursorToken(req.SyncToken)
	if err != nil {
		writeError(w, err)
		return
	}

	incoming := make([]*services.IncomingItem, 0, len(req.Items))
	for _, dto := range req.Items {
		incoming = append(incoming, dto.toIncoming())
	}

	var contentType *string
	if req.ContentType != "" {
		contentType = &req.ContentType
	}

	result, err := s.items.Sync(r.Context(), userUUID(r), incoming, cursor, contentType, req.Limit, r.UserAgent())
	if err != nil {
		s.logger.Warn(r.Context(), "sync failed", "user_uuid", userUUID(r), "error", err.Error())
		writeError(w, err)
		return
	}

	conflicts := make([]conflictDTO, 0, len(result.Conflicts))
	for _, c := range result.Conflicts {
		conflicts = append(conflicts, conflictDTO{
			Item:       itemToDTO(c.Client),
			ServerItem: itemToDTO(c.Server),
		})
	}

	writeJSON(w, http.StatusOK, syncResponse{
		SavedItems:     itemsToDTO(result.Saved),
		Conflicts:      conflicts,
		RetrievedItems: itemsToDTO(result.Retrieved),
		SyncToken:      result.Cursor.Token(),
	})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	itemUUID := chi.URLParam(r, "uuid")

	item, err := s.items.SoftDelete(r.Context(), userUUID(r), itemUUID, r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"item": itemToDTO(item)})
}
