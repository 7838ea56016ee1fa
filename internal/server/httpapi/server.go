// Package httpapi is the HTTP transport: a chi router translating JSON
// requests into credential-store, sync-engine and extension-settings
// operations, with a bearer-token middleware acting as the access guard.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stacknotes/syncserver/internal/logging"
	"github.com/stacknotes/syncserver/internal/server/models"
	"github.com/stacknotes/syncserver/internal/server/services"
)

// Narrow views of the services consumed by the handlers.
type userSvc interface {
	Register(ctx context.Context, email, encryptedPassword string, params models.DerivationParams, userAgent string) (*models.User, *services.TokenPair, error)
	GetDerivationParams(ctx context.Context, email string) (*models.DerivationParams, error)
	Authenticate(ctx context.Context, email, encryptedPassword, userAgent string) (*models.User, *services.TokenPair, error)
	ChangePassword(ctx context.Context, userUUID, newEncryptedPassword string, newParams models.DerivationParams, userAgent string) error
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	ResolveAccessToken(token string) (string, error)
}

type itemSvc interface {
	Sync(ctx context.Context, userUUID string, incoming []*services.IncomingItem, cursor services.SyncCursor, contentType *string, limit int, userAgent string) (*services.SyncResult, error)
	SoftDelete(ctx context.Context, userUUID, itemUUID, userAgent string) (*models.Item, error)
}

type extensionSvc interface {
	Create(ctx context.Context, extensionID string, muteEmails bool) (*models.ExtensionSettings, error)
	Get(ctx context.Context, id string) (*models.ExtensionSettings, error)
	SetMuteEmails(ctx context.Context, id string, mute bool) (*models.ExtensionSettings, error)
}

type Server struct {
	address    string
	logger     logging.Logger
	users      userSvc
	items      itemSvc
	extensions extensionSvc
}

func NewServer(address string, l logging.Logger, us *services.UserService, is *services.ItemService, es *services.ExtensionSettingsService) *Server {
	return &Server{
		address:    address,
		logger:     l.With("module", "http_server"),
		users:      us,
		items:      is,
		extensions: es,
	}
}

// Router assembles the route tree. Everything under /api/items and
// /api/auth/change_password requires an authenticated user.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/api/healthz", s.handleHealth)

	r.Post("/api/auth/register", s.handleRegister)
	r.Get("/api/auth/params", s.handleParams)
	r.Post("/api/auth/sign_in", s.handleSignIn)
	r.Post("/api/auth/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/api/auth/change_password", s.handleChangePassword)
		r.Post("/api/items/sync", s.handleSync)
		r.Post("/api/items/{uuid}/delete", s.handleDeleteItem)
	})

	r.Post("/api/extensions", s.handleCreateExtensionSettings)
	r.Get("/api/extensions/{uuid}", s.handleGetExtensionSettings)
	r.Patch("/api/extensions/{uuid}", s.handleUpdateExtensionSettings)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}
