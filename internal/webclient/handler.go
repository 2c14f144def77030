// Package webclient serves the browser front end and forwards /api calls to
// the auth backend.
package webclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const apiPrefix = "/api"

var methods = []string{
	"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD",
}

// Options configure the front end handler.
type Options struct {
	// BackendURL is where /api requests are proxied, without the prefix.
	BackendURL *url.URL
	// StaticDir holds the built front end. It must contain index.html.
	StaticDir string
}

// NewHandler builds the front end router.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.BackendURL == nil || opts.BackendURL.Host == "" {
		return nil, errors.New("webclient: backend url must be absolute")
	}
	index := filepath.Join(opts.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		return nil, fmt.Errorf("webclient: static dir: %w", err)
	}

	router := httprouter.New()
	router.HandleMethodNotAllowed = false

	router.GET("/health", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "OK")
	})

	api := stripPrefix(newProxy(opts.BackendURL))
	for _, m := range methods {
		router.Handler(m, apiPrefix+"/*path", api)
	}

	router.NotFound = &staticHandler{root: http.Dir(opts.StaticDir), files: http.FileServer(http.Dir(opts.StaticDir)), index: index}

	return withLogging(router), nil
}

func newProxy(backend *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(backend)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		hlog.FromRequest(r).Error().Err(err).Str("backend", backend.String()).Msg("Proxy request failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"message":"Backend unavailable"}`)
	}
	return proxy
}

// stripPrefix removes /api before the request reaches the backend.
func stripPrefix(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r2 := r.Clone(r.Context())
		r2.URL.Path = trimAPI(r.URL.Path)
		if r.URL.RawPath != "" {
			r2.URL.RawPath = trimAPI(r.URL.RawPath)
		}
		next.ServeHTTP(w, r2)
	})
}

func trimAPI(p string) string {
	p = strings.TrimPrefix(p, apiPrefix)
	if p == "" {
		return "/"
	}
	return p
}

// staticHandler serves files from root and falls back to index.html so
// client-side routes resolve.
type staticHandler struct {
	root  http.FileSystem
	files http.Handler
	index string
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	if name != "/" && name != "/index.html" {
		if f, err := h.root.Open(name); err == nil {
			st, statErr := f.Stat()
			_ = f.Close()
			if statErr == nil && !st.IsDir() {
				h.files.ServeHTTP(w, r)
				return
			}
		}
	}

	f, err := os.Open(h.index)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to open index.html")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "index.html", st.ModTime(), f)
}

func withLogging(next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		// Query strings may carry access tokens.
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	})(next)
	h = hlog.RemoteAddrHandler("ip")(h)
	return hlog.NewHandler(log.Logger)(h)
}
