package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ds2api/internal/config"
	"ds2api/internal/util"
)

var writeJSON = util.WriteJSON

// requestError marks validation failures that should surface as 400 instead
// of 500 when raised inside a Store.Update mutator.
type requestError struct{ detail string }

func (e *requestError) Error() string { return e.detail }

func newRequestError(detail string) error { return &requestError{detail: detail} }

func requestErrorDetail(err error) (string, bool) {
	var re *requestError
	if errors.As(err, &re) {
		return re.detail, true
	}
	return "", false
}

func intFrom(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return 0
}

func intFromQuery(r *http.Request, name string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func fieldString(req map[string]any, key string) string {
	if req == nil {
		return ""
	}
	s, _ := req[key].(string)
	return s
}

func toStringSlice(v any) ([]string, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func toAccount(req map[string]any) config.Account {
	return config.Account{
		Email:    strings.TrimSpace(fieldString(req, "email")),
		Mobile:   strings.TrimSpace(fieldString(req, "mobile")),
		Password: fieldString(req, "password"),
		Token:    strings.TrimSpace(fieldString(req, "token")),
	}
}

// reverseAccounts flips the slice in place so the most recently added
// accounts list first.
func reverseAccounts(accounts []config.Account) {
	for i, j := 0, len(accounts)-1; i < j; i, j = i+1, j-1 {
		accounts[i], accounts[j] = accounts[j], accounts[i]
	}
}

func accountMatchesIdentifier(acc config.Account, identifier string) bool {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return false
	}
	return acc.Identifier() == id || (acc.Email != "" && acc.Email == id) || (acc.Mobile != "" && acc.Mobile == id)
}

func findAccountByIdentifier(store ConfigStore, identifier string) (config.Account, bool) {
	for _, acc := range store.Accounts() {
		if accountMatchesIdentifier(acc, identifier) {
			return acc, true
		}
	}
	return config.Account{}, false
}

// normalizeSettingsConfig cleans an imported or merged config in place:
// blank keys and empty mapping entries are dropped, enum fields are
// lowercased.
func normalizeSettingsConfig(c *config.Config) {
	keys := make([]string, 0, len(c.Keys))
	seen := map[string]struct{}{}
	for _, k := range c.Keys {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	c.Keys = keys

	c.Toolcall.Mode = strings.ToLower(strings.TrimSpace(c.Toolcall.Mode))
	c.Toolcall.EarlyEmitConfidence = strings.ToLower(strings.TrimSpace(c.Toolcall.EarlyEmitConfidence))
	c.Embeddings.Provider = strings.TrimSpace(c.Embeddings.Provider)

	c.ClaudeMapping = pruneMapping(c.ClaudeMapping)
	c.ClaudeModelMap = pruneMapping(c.ClaudeModelMap)
	c.ModelAliases = pruneMapping(c.ModelAliases)
}

func pruneMapping(m map[string]string) map[string]string {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validateRuntimeSettings(rc config.RuntimeConfig) error {
	if rc.AccountMaxInflight != 0 && (rc.AccountMaxInflight < 1 || rc.AccountMaxInflight > 256) {
		return errors.New("runtime.account_max_inflight must be between 1 and 256")
	}
	if rc.AccountMaxQueue != 0 && (rc.AccountMaxQueue < 1 || rc.AccountMaxQueue > 200000) {
		return errors.New("runtime.account_max_queue must be between 1 and 200000")
	}
	if rc.GlobalMaxInflight != 0 && (rc.GlobalMaxInflight < 1 || rc.GlobalMaxInflight > 200000) {
		return errors.New("runtime.global_max_inflight must be between 1 and 200000")
	}
	if rc.AccountMaxInflight > 0 && rc.GlobalMaxInflight > 0 && rc.GlobalMaxInflight < rc.AccountMaxInflight {
		return errors.New("runtime.global_max_inflight must be >= runtime.account_max_inflight")
	}
	return nil
}

// validateSettingsConfig checks the tunable sections of a full config, with
// the same ranges the settings endpoint enforces. Zero values mean "unset"
// and pass.
func validateSettingsConfig(c config.Config) error {
	if c.Admin.JWTExpireHours != 0 && (c.Admin.JWTExpireHours < 1 || c.Admin.JWTExpireHours > 720) {
		return errors.New("admin.jwt_expire_hours must be between 1 and 720")
	}
	if err := validateRuntimeSettings(c.Runtime); err != nil {
		return err
	}
	switch c.Toolcall.Mode {
	case "", "feature_match", "off":
	default:
		return errors.New("toolcall.mode must be feature_match or off")
	}
	switch c.Toolcall.EarlyEmitConfidence {
	case "", "high", "low", "off":
	default:
		return errors.New("toolcall.early_emit_confidence must be high, low or off")
	}
	if c.Responses.StoreTTLSeconds != 0 && (c.Responses.StoreTTLSeconds < 30 || c.Responses.StoreTTLSeconds > 86400) {
		return errors.New("responses.store_ttl_seconds must be between 30 and 86400")
	}
	return nil
}
