package web

import (
	"encoding/json"
	"net/http"

	"github.com/capmis/capmis-console/internal/capmis"
	"github.com/capmis/capmis-console/internal/session"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	user, err := s.store.Login(ctx, in.Email, in.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in capmis.RegisterInput
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	user, err := s.store.Register(ctx, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := apiCtx(r)
	defer cancel()
	s.store.Logout(ctx)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Current())
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in capmis.ProfileUpdate
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	user, err := s.cli.UpdateProfile(ctx, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if in.NewPassword == "" {
		s.writeError(w, r, capmis.NewValidationError("new password is required"))
		return
	}
	ctx, cancel := apiCtx(r)
	defer cancel()
	if err := s.cli.ChangePassword(ctx, in.CurrentPassword, in.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "changed"})
}

// UI preferences are an opaque JSON blob persisted next to the token.

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	blob, err := s.storage.Load(session.SettingsKey)
	if err != nil || blob == "" {
		blob = "{}"
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(blob))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var blob map[string]any
	if err := decodeBody(r, &blob); err != nil {
		s.writeError(w, r, err)
		return
	}
	raw, _ := json.Marshal(blob)
	if err := s.storage.Save(session.SettingsKey, string(raw)); err != nil {
		// storage degradation is tolerated, same as the token path
		s.log.Warn("could not persist settings")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
