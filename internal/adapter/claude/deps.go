package claude

import (
	"context"
	"net/http"

	"ds2api/internal/auth"
	"ds2api/internal/config"
	"ds2api/internal/deepseek"
)

// ConfigReader is the slice of config.Store this adapter reads. Tests inject
// lightweight fakes instead of building a full store.
type ConfigReader interface {
	ClaudeMapping() map[string]string
}

// AuthResolver resolves caller credentials to an upstream account. Determine
// acquires an account slot and must be paired with Release.
type AuthResolver interface {
	Determine(r *http.Request) (*auth.RequestAuth, error)
	Release(a *auth.RequestAuth)
}

// DeepSeekCaller is the upstream chat surface used by the messages routes.
type DeepSeekCaller interface {
	CreateSession(ctx context.Context, a *auth.RequestAuth, maxAttempts int) (string, error)
	GetPow(ctx context.Context, a *auth.RequestAuth, maxAttempts int) (string, error)
	CallCompletion(ctx context.Context, a *auth.RequestAuth, payload map[string]any, powResp string, maxAttempts int) (*http.Response, error)
}

var (
	_ ConfigReader   = (*config.Store)(nil)
	_ AuthResolver   = (*auth.Resolver)(nil)
	_ DeepSeekCaller = (*deepseek.Client)(nil)
)
