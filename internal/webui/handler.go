package webui

import (
	"bytes"
	"embed"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ds2api/internal/config"
)

//go:embed static
var embeddedUI embed.FS

// Handler serves the admin console. Assets from the on-disk static dir win
// over the embedded copy, so deployments can ship a customized UI without
// rebuilding.
type Handler struct {
	staticDir string
	embedded  fs.FS
}

func NewHandler() *Handler {
	sub, err := fs.Sub(embeddedUI, "static")
	if err != nil {
		sub = embeddedUI
	}
	return &Handler{staticDir: config.StaticAdminDir(), embedded: sub}
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/", h.handleRoot)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/admin/", http.StatusTemporaryRedirect)
}

// HandleAdminFallback serves UI assets for /admin paths no API route
// claimed. Unknown paths fall back to the index page so client-side routes
// deep-link correctly. It reports false when nothing could be served.
func (h *Handler) HandleAdminFallback(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if r.URL.Path == "/admin" {
		http.Redirect(w, r, "/admin/", http.StatusMovedPermanently)
		return true
	}
	rel := strings.TrimPrefix(r.URL.Path, "/admin/")
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if rel == "" {
		rel = "index.html"
	}
	if h.serveAsset(w, r, rel) {
		return true
	}
	if rel != "index.html" {
		return h.serveAsset(w, r, "index.html")
	}
	return false
}

func (h *Handler) serveAsset(w http.ResponseWriter, r *http.Request, rel string) bool {
	if h.serveFromDisk(w, r, rel) {
		return true
	}
	return h.serveEmbedded(w, r, rel)
}

func (h *Handler) serveFromDisk(w http.ResponseWriter, r *http.Request, rel string) bool {
	if h.staticDir == "" {
		return false
	}
	full := filepath.Join(h.staticDir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return false
	}
	applyAssetHeaders(w, rel)
	http.ServeFile(w, r, full)
	return true
}

func (h *Handler) serveEmbedded(w http.ResponseWriter, r *http.Request, rel string) bool {
	f, err := h.embedded.Open(rel)
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return false
	}
	applyAssetHeaders(w, rel)
	http.ServeContent(w, r, rel, time.Time{}, bytes.NewReader(data))
	return true
}

// applyAssetHeaders keeps HTML uncached so UI updates land on the next
// load, while hashed assets may cache normally.
func applyAssetHeaders(w http.ResponseWriter, rel string) {
	if strings.HasSuffix(rel, ".html") {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
	}
}

// MaterializeStaticDir writes the embedded console assets to the static dir
// when no index page exists there yet, so operators can customize the UI in
// place. Skipped on read-only runtimes.
func (h *Handler) MaterializeStaticDir() error {
	if h.staticDir == "" || config.IsVercel() {
		return nil
	}
	if _, err := os.Stat(filepath.Join(h.staticDir, "index.html")); err == nil {
		return nil
	}
	return fs.WalkDir(h.embedded, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(h.staticDir, filepath.FromSlash(p))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := fs.ReadFile(h.embedded, p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
