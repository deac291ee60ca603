package transport

import (
	"net/http"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tlsclient "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	"ds2api/internal/config"
)

// Doer is the minimal client surface the DeepSeek client needs, so tests can
// substitute fakes and the client can fall back to a stock http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns a client whose TLS handshake matches a real Chrome build rather
// than the Go default. DeepSeek's edge occasionally rejects the stock Go
// fingerprint, so callers keep a plain http.Client as fallback for request
// failures; construction failure falls back here. A zero timeout means no
// client-side deadline (streaming responses).
func New(timeout time.Duration) Doer {
	seconds := 0
	if timeout > 0 {
		seconds = int(timeout.Seconds())
	}
	inner, err := tlsclient.NewHttpClient(tlsclient.NewNoopLogger(),
		tlsclient.WithTimeoutSeconds(seconds),
		tlsclient.WithClientProfile(profiles.Chrome_120),
		tlsclient.WithRandomTLSExtensionOrder(),
	)
	if err != nil {
		config.Logger.Warn("[deepseek] fingerprint client init failed, using std transport", "error", err)
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Transport: &fingerprintTransport{inner: inner},
		Timeout:   timeout,
	}
}

// fingerprintTransport adapts the fingerprint client to http.RoundTripper so
// callers keep the net/http request and response types. Bodies pass through
// unbuffered; streaming responses stay streaming.
type fingerprintTransport struct {
	inner tlsclient.HttpClient
}

func (t *fingerprintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	fReq := &fhttp.Request{
		Method:        req.Method,
		URL:           req.URL,
		Header:        toFHTTPHeader(req.Header),
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}
	fReq = fReq.WithContext(req.Context())

	fResp, err := t.inner.Do(fReq)
	if err != nil {
		return nil, err
	}
	return &http.Response{
		Status:        fResp.Status,
		StatusCode:    fResp.StatusCode,
		Proto:         fResp.Proto,
		ProtoMajor:    fResp.ProtoMajor,
		ProtoMinor:    fResp.ProtoMinor,
		Header:        toStdHeader(fResp.Header),
		Body:          fResp.Body,
		ContentLength: fResp.ContentLength,
		Request:       req,
	}, nil
}

func toFHTTPHeader(h http.Header) fhttp.Header {
	out := make(fhttp.Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func toStdHeader(h fhttp.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
