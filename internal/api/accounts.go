package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/remarket/internal/auth"
	"github.com/erazemk/remarket/internal/model"
	"github.com/erazemk/remarket/internal/store"
)

// AccountsHandler manages sign-in accounts (admin only). Whether an
// account may administer the catalog is decided by the allow-list.
type AccountsHandler struct {
	DB *sql.DB
}

type createAccountRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// List handles GET /api/accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := store.ListAccounts(r.Context(), h.DB)
	if err != nil {
		writeError(w, err, "failed to list accounts")
		return
	}
	jsonResponse(w, http.StatusOK, accounts)
}

// Create handles POST /api/accounts.
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = model.NormalizeEmail(req.Email)
	if !strings.Contains(req.Email, "@") || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	existing, err := store.GetAccountByEmail(r.Context(), h.DB, req.Email)
	if err != nil {
		writeError(w, err, "failed to create account")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, "email already exists")
		return
	}

	acc, err := store.CreateAccount(r.Context(), h.DB, req.Email, strings.TrimSpace(req.DisplayName), hash)
	if err != nil {
		writeError(w, err, "failed to create account")
		return
	}

	slog.Info("account created", "email", acc.Email, "by", GetClaims(r.Context()).Email)
	jsonResponse(w, http.StatusCreated, acc)
}

// ResetPassword handles PUT /api/accounts/{id}/password.
func (h *AccountsHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateAccountPassword(r.Context(), h.DB, id, hash); err != nil {
		writeError(w, err, "failed to reset password")
		return
	}

	slog.Info("account password reset", "id", id, "by", GetClaims(r.Context()).Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/accounts/{id}. Callers cannot delete
// themselves.
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	claims := GetClaims(r.Context())
	if claims.AccountID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if err := store.DeleteAccount(r.Context(), h.DB, id); err != nil {
		writeError(w, err, "failed to delete account")
		return
	}

	slog.Info("account deleted", "id", id, "by", claims.Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
