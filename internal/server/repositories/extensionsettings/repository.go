package extensionsettings

import (
	"context"

	"github.com/stacknotes/syncserver/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, settings *models.ExtensionSettings) (*models.ExtensionSettings, error)
	Get(ctx context.Context, uuid string) (*models.ExtensionSettings, error)
	GetByExtensionID(ctx context.Context, extensionID string) (*models.ExtensionSettings, error)
	SetMuteEmails(ctx context.Context, uuid string, mute bool) (*models.ExtensionSettings, error)
}
