package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/remarket/internal/auth"
	"github.com/erazemk/remarket/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("error encoding response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// LoginSubmit handles POST /login. Every live view of the browser sees the
// new identity; one that is not allow-listed is signed out again by the
// views.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	if email == "" || password == "" {
		writeMessage(w, http.StatusBadRequest, "Informe e-mail e senha.")
		return
	}

	acc, err := auth.Authenticate(r.Context(), s.DB, email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeMessage(w, http.StatusUnauthorized, "E-mail ou senha incorretos.")
		return
	}
	if err != nil {
		slog.Error("web login failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Erro ao entrar.")
		return
	}

	token, err := auth.GenerateToken(s.JWTSecret, acc)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Erro ao entrar.")
		return
	}

	sid := browserSession(w, r)
	setAuthCookie(w, token, int(auth.TokenExpiry.Seconds()))
	s.Hub.SignIn(sid, token, &auth.Identity{DisplayName: acc.DisplayName, Email: acc.Email, PhotoURL: acc.PhotoURL})

	slog.Info("browser signed in", "email", acc.Email)
	writeJSON(w, http.StatusOK, map[string]any{
		"session": model.NewUserSession(acc.DisplayName, acc.Email, acc.PhotoURL),
		"admin":   s.Admins.Allowed(acc.Email),
	})
}

// Logout handles POST /logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	sid := browserSession(w, r)
	if err := s.Hub.SignOut(r.Context(), sid); err != nil {
		slog.Error("web logout failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Erro ao sair.")
		return
	}
	clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}
