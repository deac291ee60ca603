package admin

import (
	"context"
	"net/http"

	"ds2api/internal/account"
	authn "ds2api/internal/auth"
	"ds2api/internal/config"
	"ds2api/internal/deepseek"
)

// ConfigStore is the configuration surface the admin API reads and mutates.
type ConfigStore interface {
	Snapshot() config.Config
	Update(mutator func(*config.Config) error) error
	Accounts() []config.Account
	UpdateAccountToken(identifier, token string) error
	SetVercelSync(hash string, ts int64) error
	AdminJWTExpireHours() int
	RuntimeAccountMaxInflight() int
	RuntimeAccountMaxQueue(defaultSize int) int
	RuntimeGlobalMaxInflight(defaultSize int) int
	IsEnvBacked() bool
	ExportJSONAndBase64() (string, string, error)
}

// PoolController lets the admin API reset the account pool and push runtime
// limit changes without restarting.
type PoolController interface {
	Reset()
	ApplyRuntimeLimits(maxInflightPerAccount, maxQueueSize, globalMaxInflight int)
	Status() map[string]any
}

// DeepSeekCaller covers the upstream calls account testing needs.
type DeepSeekCaller interface {
	Login(ctx context.Context, acc config.Account) (string, error)
	CreateSession(ctx context.Context, a *authn.RequestAuth, maxAttempts int) (string, error)
	GetPow(ctx context.Context, a *authn.RequestAuth, maxAttempts int) (string, error)
	CallCompletion(ctx context.Context, a *authn.RequestAuth, payload map[string]any, powResp string, maxAttempts int) (*http.Response, error)
}

var (
	_ ConfigStore    = (*config.Store)(nil)
	_ PoolController = (*account.Pool)(nil)
	_ DeepSeekCaller = (*deepseek.Client)(nil)
)
