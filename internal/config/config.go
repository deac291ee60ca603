package config

// Config is the full persisted configuration. JSON round-tripping goes
// through the custom codec so unknown fields survive in AdditionalFields.
type Config struct {
	Keys           []string
	Accounts       []Account
	ClaudeMapping  map[string]string
	ClaudeModelMap map[string]string
	ModelAliases   map[string]string
	Admin          AdminConfig
	Runtime        RuntimeConfig
	Compat         CompatConfig
	Toolcall       ToolcallConfig
	Responses      ResponsesConfig
	Embeddings     EmbeddingsConfig
	VercelSyncHash string
	VercelSyncTime int64

	// AdditionalFields preserves unrecognized top-level keys across
	// load/save cycles so older or newer deployments can share one config.
	AdditionalFields map[string]any
}

type Account struct {
	Email    string `json:"email,omitempty"`
	Mobile   string `json:"mobile,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

type AdminConfig struct {
	PasswordHash      string `json:"password_hash,omitempty"`
	JWTExpireHours    int    `json:"jwt_expire_hours,omitempty"`
	JWTValidAfterUnix int64  `json:"jwt_valid_after_unix,omitempty"`
}

type RuntimeConfig struct {
	AccountMaxInflight int `json:"account_max_inflight,omitempty"`
	AccountMaxQueue    int `json:"account_max_queue,omitempty"`
	GlobalMaxInflight  int `json:"global_max_inflight,omitempty"`
}

type CompatConfig struct {
	// WideInputStrictOutput widens accepted Responses input shapes while
	// keeping output strictly standard. nil means the default (enabled).
	WideInputStrictOutput *bool `json:"wide_input_strict_output,omitempty"`
}

type ToolcallConfig struct {
	Mode                string `json:"mode,omitempty"`
	EarlyEmitConfidence string `json:"early_emit_confidence,omitempty"`
}

type ResponsesConfig struct {
	StoreTTLSeconds int `json:"store_ttl_seconds,omitempty"`
}

type EmbeddingsConfig struct {
	Provider string `json:"provider,omitempty"`
}
