package admin

import (
	"encoding/json"
	"net/http"
	"strings"

	authn "ds2api/internal/auth"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "invalid json"})
		return
	}
	candidate := strings.TrimSpace(fieldString(req, "admin_key"))
	if candidate == "" {
		candidate = strings.TrimSpace(fieldString(req, "password"))
	}
	if !authn.VerifyAdminKey(h.Store, candidate) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "invalid admin key"})
		return
	}
	expireHours := intFrom(req["expire_hours"])
	if expireHours < 0 || expireHours > 720 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "expire_hours must be between 1 and 720"})
		return
	}
	token, expiresAt, err := authn.IssueAdminJWT(h.Store, expireHours)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":                  true,
		"token":                    token,
		"expires_at":               expiresAt,
		"default_password_warning": authn.UsingDefaultAdminKey(h.Store),
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	if err := authn.VerifyAdminJWT(h.Store, adminBearerToken(r)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// requireAdmin guards the management routes. It accepts a session JWT from
// /login, or the raw admin key for scripted access.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := adminBearerToken(r)
		if authn.VerifyAdminJWT(h.Store, token) == nil || authn.VerifyAdminKey(h.Store, token) {
			next.ServeHTTP(w, r)
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "unauthorized"})
	})
}

func adminBearerToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(r.Header.Get("x-admin-key"))
}
