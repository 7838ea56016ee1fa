// Package services implements the application core: the credential store,
// the sync engine and the extension-settings operations. Services own the
// transaction boundaries and leave SQL to the repositories.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stacknotes/syncserver/internal/common"
	"github.com/stacknotes/syncserver/internal/dbx"
	"github.com/stacknotes/syncserver/internal/logging"
	"github.com/stacknotes/syncserver/internal/server/auth"
	"github.com/stacknotes/syncserver/internal/server/config"
	"github.com/stacknotes/syncserver/internal/server/mail"
	"github.com/stacknotes/syncserver/internal/server/models"
	"github.com/stacknotes/syncserver/internal/server/repositories/repomanager"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService is the credential store: registration, derivation-parameter
// lookup, authentication with brute-force lockout, password change and
// session rotation.
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	notifier                     mail.Notifier
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	lockoutThreshold             int
	lockoutDuration              time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, notifier mail.Notifier, logger logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		notifier:                     notifier,
		logger:                       logger.With("module", "user_service"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		lockoutThreshold:             cfg.LockoutThreshold,
		lockoutDuration:              cfg.LockoutDuration,
	}
}

// Register creates an account for email with the client-derived secret and
// its derivation parameters, and opens a session for the new user. A taken
// email (case-insensitively) fails with common.ErrorDuplicateEmail.
func (s *UserService) Register(ctx context.Context, email, encryptedPassword string, params models.DerivationParams, userAgent string) (*models.User, *TokenPair, error) {

	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	if encryptedPassword == "" {
		return nil, nil, fmt.Errorf("%w: empty encrypted password", common.ErrorValidation)
	}

	user := &models.User{
		UUID:                 uuid.NewString(),
		Email:                email,
		EncryptedPassword:    encryptedPassword,
		Params:               params,
		UpdatedWithUserAgent: userAgent,
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorDuplicateEmail) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("error creating user: %w", err)
	}

	pair, err := s.generateTokenPair(ctx, s.db, user.UUID)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}

	return user, pair, nil
}

// GetDerivationParams returns the password-derivation parameters for email so
// a client can recompute its login key before authenticating. Unknown emails
// fail with common.ErrorNotFound.
func (s *UserService) GetDerivationParams(ctx context.Context, email string) (*models.DerivationParams, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}

	params := user.Params
	return &params, nil
}

func (s *UserService) checkPassword(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// Authenticate validates the client-derived secret for email and opens a
// session. The read-increment-write of the lockout counters runs inside a
// transaction holding the user's row lock, so concurrent failed attempts
// never lose updates. A locked account fails with common.ErrorLockedOut
// before any credential comparison; every other failure is the uniform
// common.ErrorInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, encryptedPassword, userAgent string) (*models.User, *TokenPair, error) {

	var user *models.User
	var lockedAt *time.Time
	var authErr error

	// The failed-attempt counter must be committed even when the login
	// fails, so the credential outcome is captured in authErr instead of
	// being returned out of the transaction (which would roll it back).
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		u, err := repo.GetByEmailForUpdate(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				authErr = common.ErrorInvalidCredentials
				return nil
			}
			return common.ErrorInternal
		}
		user = u

		now := time.Now()
		if u.Locked(now) {
			authErr = common.ErrorLockedOut
			return nil
		}

		if !s.checkPassword(u.EncryptedPassword, encryptedPassword) {
			attempts := u.NumFailedAttempts + 1
			var until *time.Time
			if attempts >= s.lockoutThreshold {
				t := now.Add(s.lockoutDuration)
				until = &t
				lockedAt = &t
			}
			if err := repo.RecordFailedAttempt(ctx, u.UUID, attempts, until); err != nil {
				return common.ErrorInternal
			}
			authErr = common.ErrorInvalidCredentials
			return nil
		}

		if err := repo.RecordSuccessfulAuth(ctx, u.UUID, userAgent); err != nil {
			return common.ErrorInternal
		}
		u.NumFailedAttempts = 0
		u.LockedUntil = nil
		u.UpdatedWithUserAgent = userAgent
		return nil
	})

	if err != nil {
		return nil, nil, err
	}
	if authErr != nil {
		if lockedAt != nil && user != nil {
			s.notifyLocked(ctx, user.Email, *lockedAt)
		}
		return nil, nil, authErr
	}

	pair, err := s.generateTokenPair(ctx, s.db, user.UUID)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}

	return user, pair, nil
}

// ChangePassword replaces the stored secret and derivation params in one
// statement. Lockout counters are not affected.
func (s *UserService) ChangePassword(ctx context.Context, userUUID, newEncryptedPassword string, newParams models.DerivationParams, userAgent string) error {
	if newEncryptedPassword == "" {
		return fmt.Errorf("%w: empty encrypted password", common.ErrorValidation)
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByUUID(ctx, userUUID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}

	if err := repo.UpdatePassword(ctx, userUUID, newEncryptedPassword, newParams, userAgent); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}

	if err := s.notifier.PasswordChanged(user.Email, userAgent); err != nil {
		s.logger.Warn(ctx, "password change notification failed", "error", err.Error())
	}

	return nil
}

// Refresh rotates a session: the presented refresh token is invalidated and
// a new pair is issued. Expired sessions fail with common.ErrorSessionExpired.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {

	repo := s.repomanager.Sessions(s.db)

	session, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthenticated
		}
		return nil, common.ErrorInternal
	}

	if session.Expires.Before(time.Now()) {
		return nil, common.ErrorSessionExpired
	}

	var pair *TokenPair

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Sessions(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting session: %w", err)
		}

		pair, err = s.generateTokenPair(ctx, tx, session.UserUUID)
		if err != nil {
			return fmt.Errorf("error generating token pair: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return pair, nil
}

// ResolveAccessToken maps a presented bearer token to the user uuid it was
// issued for. Used by the HTTP access guard.
func (s *UserService) ResolveAccessToken(token string) (string, error) {
	userUUID, err := auth.GetUserUUIDFromToken(token, s.jwtSecret)
	if err != nil {
		return "", common.ErrorUnauthenticated
	}
	return userUUID, nil
}

func (s *UserService) generateTokenPair(ctx context.Context, db dbx.DBTX, userUUID string) (*TokenPair, error) {
	accessToken, err := auth.GenerateToken(userUUID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	refreshToken, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, err
	}

	if err := s.repomanager.Sessions(db).Create(ctx, userUUID, refreshToken, s.refreshTokenValidityDuration); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *UserService) notifyLocked(ctx context.Context, email string, until time.Time) {
	if err := s.notifier.AccountLocked(email, until); err != nil {
		s.logger.Warn(ctx, "lockout notification failed", "error", err.Error())
	}
}
