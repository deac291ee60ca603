package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"ds2api/internal/config"
)

const vercelAPIBase = "https://api.vercel.com"

func vercelEnvDefaults() (token, projectID, teamID string) {
	return strings.TrimSpace(os.Getenv("VERCEL_TOKEN")),
		strings.TrimSpace(os.Getenv("VERCEL_PROJECT_ID")),
		strings.TrimSpace(os.Getenv("VERCEL_TEAM_ID"))
}

// getVercelConfig reports the pre-configured Vercel credentials without
// leaking the token itself.
func (h *Handler) getVercelConfig(w http.ResponseWriter, _ *http.Request) {
	token, projectID, teamID := vercelEnvDefaults()
	var team any
	if teamID != "" {
		team = teamID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"has_token":  token != "",
		"project_id": projectID,
		"team_id":    team,
	})
}

func (h *Handler) vercelStatus(w http.ResponseWriter, _ *http.Request) {
	snap := h.Store.Snapshot()
	token, projectID, _ := vercelEnvDefaults()
	current := h.computeSyncHash()
	writeJSON(w, http.StatusOK, map[string]any{
		"is_vercel":      config.IsVercel(),
		"env_backed":     h.Store.IsEnvBacked(),
		"can_sync":       token != "" && projectID != "",
		"last_sync_hash": snap.VercelSyncHash,
		"last_sync_time": snap.VercelSyncTime,
		"current_hash":   current,
		"needs_sync":     current != snap.VercelSyncHash,
	})
}

// syncVercel pushes the current config to the Vercel project as the
// DS2API_CONFIG_JSON env var (base64 form, which the loader accepts), then
// records the synced hash. A redeploy is still needed for it to take effect.
func (h *Handler) syncVercel(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)
	token, projectID, teamID := vercelEnvDefaults()
	if v := strings.TrimSpace(fieldString(req, "token")); v != "" {
		token = v
	}
	if v := strings.TrimSpace(fieldString(req, "project_id")); v != "" {
		projectID = v
	}
	if v := strings.TrimSpace(fieldString(req, "team_id")); v != "" {
		teamID = v
	}
	if token == "" || projectID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "缺少 Vercel Token 或 Project ID"})
		return
	}

	_, b64, err := h.Store.ExportJSONAndBase64()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": err.Error()})
		return
	}
	if err := upsertVercelEnv(r.Context(), token, projectID, teamID, "DS2API_CONFIG_JSON", b64); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"detail": "同步失败: " + err.Error()})
		return
	}

	now := time.Now().Unix()
	if err := h.Store.SetVercelSync(h.computeSyncHash(), now); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "配置已同步到 Vercel，重新部署后生效。",
		"synced_at": now,
	})
}

func upsertVercelEnv(ctx context.Context, token, projectID, teamID, key, value string) error {
	endpoint := fmt.Sprintf("%s/v10/projects/%s/env?upsert=true", vercelAPIBase, url.PathEscape(projectID))
	if teamID != "" {
		endpoint += "&teamId=" + url.QueryEscape(teamID)
	}
	body, _ := json.Marshal(map[string]any{
		"key":    key,
		"value":  value,
		"type":   "encrypted",
		"target": []string{"production", "preview", "development"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := (&http.Client{Timeout: 30 * time.Second}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("vercel api %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
