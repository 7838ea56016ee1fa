package users

import (
	"context"
	"time"

	"github.com/stacknotes/syncserver/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByEmailForUpdate locks the user row so concurrent login attempts
	// serialize their read-increment-write of the lockout counters.
	GetByEmailForUpdate(ctx context.Context, email string) (*models.User, error)
	GetByUUID(ctx context.Context, uuid string) (*models.User, error)
	RecordFailedAttempt(ctx context.Context, uuid string, attempts int, lockedUntil *time.Time) error
	RecordSuccessfulAuth(ctx context.Context, uuid string, userAgent string) error
	UpdatePassword(ctx context.Context, uuid string, encryptedPassword string, params models.DerivationParams, userAgent string) error
}
