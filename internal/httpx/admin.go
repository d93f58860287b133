package httpx

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/IamSamk/Portfolify/internal/domain"
	"github.com/IamSamk/Portfolify/internal/store"
	"github.com/IamSamk/Portfolify/pkg/crypto"
	"github.com/IamSamk/Portfolify/pkg/jwt"
)

func (r *Router) handleAdminLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !r.verifyAdminPassword(payload.Password) {
		r.logger.Warn("admin login rejected", "ip", clientIP(req))
		writeError(w, http.StatusUnauthorized, "invalid admin credentials")
		return
	}
	token, err := jwt.GenerateToken(jwt.RoleAdmin, r.jwtSecret, r.adminTokenTTL)
	if err != nil {
		r.logger.Error("admin token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int(r.adminTokenTTL.Seconds()),
	})
}

// verifyAdminPassword prefers the bcrypt hash when configured and falls
// back to a constant-time compare of the plain secret. With neither set
// the admin surface is disabled outright: no default password.
func (r *Router) verifyAdminPassword(password string) bool {
	if password == "" {
		return false
	}
	if hash := strings.TrimSpace(r.adminPasswordHash); hash != "" {
		return crypto.ComparePassword([]byte(hash), password) == nil
	}
	expected := r.adminPassword
	if expected == "" {
		r.logger.Error("admin login attempted but no admin password configured")
		return false
	}
	return len(password) == len(expected) &&
		subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
}

func (r *Router) handleAdminAccounts(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		snapshot := r.accounts.Snapshot()
		views := make([]accountView, 0, len(snapshot))
		for _, account := range snapshot {
			views = append(views, newAccountView(account))
		}
		writeJSON(w, http.StatusOK, map[string]any{"accounts": views})
	case http.MethodPost:
		r.handleAdminAddAccount(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleAdminAddAccount(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		ID             string `json:"id"`
		Credential     string `json:"credential"`
		TeamID         string `json:"teamId"`
		MaxDeployments int    `json:"maxDeployments"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Credential) == "" {
		writeError(w, http.StatusBadRequest, "credential is required")
		return
	}
	max := payload.MaxDeployments
	if max <= 0 {
		max = r.defaultMaxDeploys
	}
	account := domain.Account{
		ID:             strings.TrimSpace(payload.ID),
		Credential:     strings.TrimSpace(payload.Credential),
		TeamID:         strings.TrimSpace(payload.TeamID),
		MaxDeployments: max,
	}
	if account.ID == "" {
		writeError(w, http.StatusBadRequest, "account id is required")
		return
	}
	if err := r.accounts.Add(account); err != nil {
		if errors.Is(err, store.ErrAccountExists) {
			writeError(w, http.StatusConflict, "account id already registered")
			return
		}
		r.logger.Error("failed to add account", "account_id", account.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register account")
		return
	}
	r.logger.Info("account added", "account_id", account.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "account registered",
	})
}

func (r *Router) handleAdminAccountByID(w http.ResponseWriter, req *http.Request) {
	id := strings.Trim(strings.TrimPrefix(req.URL.Path, "/api/admin/accounts/"), "/")
	if id == "" {
		r.notFound(w)
		return
	}
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	if err := r.accounts.Remove(id); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			r.notFound(w)
			return
		}
		r.logger.Error("failed to remove account", "account_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove account")
		return
	}
	r.logger.Info("account removed", "account_id", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "account removed",
	})
}

func (r *Router) handleAdminReset(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		AccountID string `json:"accountId"`
	}
	if req.Body != nil {
		// An empty body means "reset everything".
		_ = json.NewDecoder(req.Body).Decode(&payload)
	}
	if id := strings.TrimSpace(payload.AccountID); id != "" {
		if err := r.accounts.Reset(id); err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				r.notFound(w)
				return
			}
			r.logger.Error("account reset failed", "account_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to reset account")
			return
		}
		r.logger.Info("account reset", "account_id", id)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "account " + id + " reset"})
		return
	}
	if err := r.accounts.ResetAll(); err != nil {
		r.logger.Error("reset failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset accounts")
		return
	}
	r.logger.Info("all accounts reset")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "all accounts reset"})
}
