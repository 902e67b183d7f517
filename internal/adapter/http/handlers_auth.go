package adapthttp

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	"weightlog/internal/api"
	"weightlog/internal/app"

	"github.com/coreos/go-oidc/v3/oidc"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := parseJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.authSvc.Register(r.Context(), req.Username, req.Password, req.ConfirmPassword)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := parseJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, res)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.authSvc.Refresh(r.Context(), bearerToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.authSvc.Logout(r.Context(), bearerToken(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req api.ChangePasswordRequest
	if err := parseJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user := userFromContext(r.Context())
	err := s.authSvc.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword)
	if errors.Is(err, app.ErrInvalidCredentials) {
		// The caller is signed in; a wrong old password is a validation error.
		writeEnvelope(w, http.StatusBadRequest, "old password is incorrect", nil)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		writeEnvelope(w, http.StatusNotFound, "sso disabled", nil)
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidcConfig.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		writeEnvelope(w, http.StatusNotFound, "sso disabled", nil)
		return
	}

	state, err := r.Cookie("oauth_state")
	if err != nil || !app.ConstantTimeCompare(r.URL.Query().Get("state"), state.Value) {
		writeEnvelope(w, http.StatusBadRequest, "invalid state", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "oauth_state", MaxAge: -1, Path: "/"})

	token, err := s.oidcConfig.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.log.WithError(err).Warn("sso: code exchange failed")
		writeEnvelope(w, http.StatusUnauthorized, "failed to exchange token", nil)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		writeEnvelope(w, http.StatusUnauthorized, "no id_token", nil)
		return
	}

	idToken, err := s.oidcConfig.Provider.Verifier(&oidc.Config{ClientID: s.oidcConfig.OAuth2Config.ClientID}).Verify(r.Context(), rawIDToken)
	if err != nil {
		s.log.WithError(err).Warn("sso: id token rejected")
		writeEnvelope(w, http.StatusUnauthorized, "failed to verify token", nil)
		return
	}

	var claims struct {
		Email string `json:"email"`
		Sub   string `json:"sub"`
	}
	if err = idToken.Claims(&claims); err != nil {
		writeEnvelope(w, http.StatusUnauthorized, "failed to parse claims", nil)
		return
	}

	username := claims.Email
	if username == "" {
		username = claims.Sub
	}

	res, err := s.authSvc.LoginWithUser(r.Context(), username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, res)
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
