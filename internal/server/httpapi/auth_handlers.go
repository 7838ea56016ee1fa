package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stacknotes/syncserver/internal/common"
	"github.com/stacknotes/syncserver/internal/server/models"
)

type derivationParamsDTO struct {
	PwFunc    string `json:"pw_func"`
	PwAlg     string `json:"pw_alg"`
	PwCost    int    `json:"pw_cost"`
	PwKeySize int    `json:"pw_key_size"`
	PwNonce   string `json:"pw_nonce,omitempty"`
	PwSalt    string `json:"pw_salt,omitempty"`
	Version   string `json:"version,omitempty"`
}

func (d derivationParamsDTO) toModel() models.DerivationParams {
	return models.DerivationParams{
		Func:    d.PwFunc,
		Alg:     d.PwAlg,
		Cost:    d.PwCost,
		KeySize: d.PwKeySize,
		Nonce:   d.PwNonce,
		Salt:    d.PwSalt,
		Version: d.Version,
	}
}

func paramsToDTO(p models.DerivationParams) derivationParamsDTO {
	return derivationParamsDTO{
		PwFunc:    p.Func,
		PwAlg:     p.Alg,
		PwCost:    p.Cost,
		PwKeySize: p.KeySize,
		PwNonce:   p.Nonce,
		PwSalt:    p.Salt,
		Version:   p.Version,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	derivationParamsDTO
}

type sessionResponse struct {
	User         userDTO `json:"user"`
	Token        string  `json:"token"`
	RefreshToken string  `json:"refresh_token"`
}

type userDTO struct {
	UUID  string `json:"uuid"`
	Email string `json:"email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", common.ErrorValidation))
		return
	}

	user, pair, err := s.users.Register(r.Context(), req.Email, req.Password, req.toModel(), r.UserAgent())
	if err != nil {
		s.logger.Warn(r.Context(), "registration failed", "error", err.Error())
		writeError(w, err)
		return
	}

	s.logger.Info(r.Context(), "user registered", "user_uuid", user.UUID)
	writeJSON(w, http.StatusCreated, sessionResponse{
		User:         userDTO{UUID: user.UUID, Email: user.Email},
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, fmt.Errorf("%w: missing email", common.ErrorValidation))
		return
	}

	params, err := s.users.GetDerivationParams(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, paramsToDTO(*params))
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", common.ErrorValidation))
		return
	}

	user, pair, err := s.users.Authenticate(r.Context(), req.Email, req.Password, r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		User:         userDTO{UUID: user.UUID, Email: user.Email},
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", common.ErrorValidation))
		return
	}

	pair, err := s.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password"`
	derivationParamsDTO
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", common.ErrorValidation))
		return
	}

	if err := s.users.ChangePassword(r.Context(), userUUID(r), req.NewPassword, req.toModel(), r.UserAgent()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}
