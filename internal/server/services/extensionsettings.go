package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stacknotes/syncserver/internal/common"
	"github.com/stacknotes/syncserver/internal/server/models"
	"github.com/stacknotes/syncserver/internal/server/repositories/repomanager"
)

// ExtensionSettingsService exposes the per-extension flag store. No
// cross-entity invariants; the mute flag is consumed by external mail
// delivery, not by this server.
type ExtensionSettingsService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewExtensionSettingsService(db *sql.DB, m repomanager.RepositoryManager) *ExtensionSettingsService {
	return &ExtensionSettingsService{db: db, repomanager: m}
}

// Create registers settings for an extension id. Idempotent: registering an
// already-known extension id returns its existing settings row.
func (s *ExtensionSettingsService) Create(ctx context.Context, extensionID string, muteEmails bool) (*models.ExtensionSettings, error) {
	if extensionID == "" {
		return nil, fmt.Errorf("%w: empty extension id", common.ErrorValidation)
	}

	existing, err := s.repomanager.ExtensionSettings(s.db).GetByExtensionID(ctx, extensionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error looking up extension settings: %w", err)
	}

	settings := &models.ExtensionSettings{
		UUID:        uuid.NewString(),
		ExtensionID: extensionID,
		MuteEmails:  muteEmails,
	}

	settings, err = s.repomanager.ExtensionSettings(s.db).Create(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("error creating extension settings: %w", err)
	}
	return settings, nil
}

// Get returns the settings row by uuid.
func (s *ExtensionSettingsService) Get(ctx context.Context, id string) (*models.ExtensionSettings, error) {
	settings, err := s.repomanager.ExtensionSettings(s.db).Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return settings, nil
}

// SetMuteEmails flips the mute flag for the settings row.
func (s *ExtensionSettingsService) SetMuteEmails(ctx context.Context, id string, mute bool) (*models.ExtensionSettings, error) {
	settings, err := s.repomanager.ExtensionSettings(s.db).SetMuteEmails(ctx, id, mute)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return settings, nil
}
