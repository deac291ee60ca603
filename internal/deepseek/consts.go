package deepseek

const (
	DeepSeekLoginURL         = "https://chat.deepseek.com/api/v0/users/login"
	DeepSeekCreateSessionURL = "https://chat.deepseek.com/api/v0/chat_session/create"
	DeepSeekCreatePowURL     = "https://chat.deepseek.com/api/v0/chat/create_pow_challenge"
	DeepSeekCompletionURL    = "https://chat.deepseek.com/api/v0/chat/completion"
)

// Stream pacing, in seconds. KeepAliveTimeout is how long we wait for upstream
// data before emitting an SSE keep-alive comment; StreamIdleTimeout is the
// hard ceiling on upstream silence; MaxKeepaliveCount bounds consecutive
// keep-alives sent without any upstream input before the stream is abandoned.
const (
	KeepAliveTimeout  = 10
	StreamIdleTimeout = 120
	MaxKeepaliveCount = 12
)

// BaseHeaders imitates the DeepSeek Android client. The upstream rejects
// requests that look like generic HTTP libraries.
var BaseHeaders = map[string]string{
	"Host":              "chat.deepseek.com",
	"User-Agent":        "DeepSeek/1.0.13 Android/35",
	"Accept":            "application/json",
	"Accept-Encoding":   "gzip, br",
	"Content-Type":      "application/json",
	"x-client-platform": "android",
	"x-client-version":  "1.3.0-auto-resume",
	"x-client-locale":   "zh_CN",
	"accept-charset":    "UTF-8",
}
