package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hazyhaar/cahier/auth"
	"github.com/hazyhaar/cahier/idgen"
	"github.com/hazyhaar/cahier/observability"
	"github.com/hazyhaar/cahier/store"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "adresse email invalide")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "mot de passe trop court (8 caractères minimum)")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hash failed", "error", err)
		writeError(w, http.StatusInternalServerError, "erreur interne")
		return
	}

	user := &store.User{
		ID:           idgen.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "un compte existe déjà pour cette adresse")
			return
		}
		s.writeStoreError(w, err)
		return
	}

	s.logEvent(r.Context(), observability.BusinessEvent{
		EventType: "auth", EntityType: "user", EntityID: user.ID,
		UserID: user.ID, Action: "register", Success: true,
	})
	s.issueToken(w, user)
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "identifiants invalides")
			return
		}
		s.writeStoreError(w, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logEvent(r.Context(), observability.BusinessEvent{
			EventType: "auth", EntityType: "user", EntityID: user.ID,
			UserID: user.ID, Action: "login", Success: false,
		})
		writeError(w, http.StatusUnauthorized, "identifiants invalides")
		return
	}

	s.logEvent(r.Context(), observability.BusinessEvent{
		EventType: "auth", EntityType: "user", EntityID: user.ID,
		UserID: user.ID, Action: "login", Success: true,
	})
	s.issueToken(w, user)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) issueToken(w http.ResponseWriter, user *store.User) {
	claims := &auth.Claims{
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.Name,
		IsAdmin: user.IsAdmin,
	}
	token, err := auth.GenerateToken([]byte(s.cfg.JWTSecret), claims, s.cfg.TokenTTL)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		return
	}
	auth.SetTokenCookie(w, token, s.cfg.CookieDomain, s.cfg.SecureCookies)
	w.Header().Set("X-Auth-Token", token)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w, s.cfg.CookieDomain)
	writeJSON(w, http.StatusOK, map[string]string{"status": "déconnecté"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
