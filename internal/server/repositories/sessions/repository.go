package sessions

import (
	"context"
	"time"

	"github.com/stacknotes/syncserver/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userUUID string, token string, validity time.Duration) error
	Find(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
}
