// Package offline implements the offline cache controller: the
// network-interception layer that fronts a credvault origin, primes a named
// cache with the app shell, and applies the network-first fetch policy with
// a carve-out for the downloadable package.
package offline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gregjones/httpcache"
)

// CacheStore is the named cache the controller reads and writes. It extends
// httpcache.Cache with the namespace enumeration needed to purge superseded
// cache versions on activation. Keys are namespaced "<cache name>|<key>".
type CacheStore interface {
	httpcache.Cache

	// Names returns the distinct cache namespaces currently present.
	Names() ([]string, error)

	// DropName removes every entry under the given namespace.
	DropName(name string) error
}

// State is the controller lifecycle state.
type State int

const (
	// StateNew is the initial state before the cache has been primed.
	StateNew State = iota
	// StateInstalled means the shell manifest has been fully primed.
	StateInstalled
	// StateActive means stale caches are purged and requests are being
	// intercepted.
	StateActive
	// StateSuperseded means a newer controller has taken over; requests
	// pass through without touching the cache.
	StateSuperseded
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	case StateSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Synthesized 503 bodies. These are a literal contract with shell code that
// inspects failure responses; do not reword.
const (
	packageUnavailableBody = "package download unavailable - network error"
	offlineBody            = "offline - resource not available"
)

// DefaultManifest is the fixed set of shell asset paths primed at install.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/manifest.webmanifest",
}

// Config configures a Controller.
type Config struct {
	// CacheName is the current cache version identifier. Entries under any
	// other name are deleted on activation.
	CacheName string

	// Store is the named cache backing store.
	Store CacheStore

	// Origin is the upstream the controller fronts.
	Origin *url.URL

	// Client issues upstream fetches. Defaults to a client with a 30s
	// timeout.
	Client *http.Client

	// Manifest lists the shell asset paths primed at install. Defaults to
	// DefaultManifest.
	Manifest []string

	// PackagePath is the designated path of the downloadable package.
	// Requests touching it are never cached. Defaults to
	// "/downloads/app.apk".
	PackagePath string

	Logger *slog.Logger
}

// Controller is the offline cache controller state machine. Its lifecycle is
// New -> Installed -> Active -> Superseded, driven by Install, Activate, and
// Supersede; only an Active controller applies the caching policy.
type Controller struct {
	mu    sync.RWMutex
	state State

	cacheName   string
	store       CacheStore
	origin      *url.URL
	client      *http.Client
	manifest    []string
	packagePath string
	logger      *slog.Logger
}

// New creates a Controller in StateNew.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Origin == nil || cfg.Origin.Host == "" {
		return nil, fmt.Errorf("origin URL is required")
	}
	if cfg.CacheName == "" {
		return nil, fmt.Errorf("cache name is required")
	}
	if strings.Contains(cfg.CacheName, "|") {
		return nil, fmt.Errorf("cache name must not contain %q", "|")
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	manifest := cfg.Manifest
	if len(manifest) == 0 {
		manifest = DefaultManifest
	}

	packagePath := cfg.PackagePath
	if packagePath == "" {
		packagePath = "/downloads/app.apk"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		state:       StateNew,
		cacheName:   cfg.CacheName,
		store:       cfg.Store,
		origin:      cfg.Origin,
		client:      client,
		manifest:    manifest,
		packagePath: packagePath,
		logger:      logger,
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Install primes the named cache with the fixed shell manifest. Priming is
// all-or-nothing: a failure to fetch any listed asset aborts the install and
// nothing is committed to the cache.
func (c *Controller) Install(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateNew {
		return fmt.Errorf("install from state %s", c.state)
	}

	type staged struct {
		key  string
		dump []byte
	}
	entries := make([]staged, 0, len(c.manifest))

	for _, path := range c.manifest {
		dump, err := c.fetchForPriming(ctx, path)
		if err != nil {
			return fmt.Errorf("prime %s: %w", path, err)
		}
		entries = append(entries, staged{key: c.key(http.MethodGet, path), dump: dump})
	}

	for _, e := range entries {
		c.store.Set(e.key, e.dump)
	}

	c.state = StateInstalled
	c.logger.Info("shell cache primed", "cache", c.cacheName, "assets", len(c.manifest))
	return nil
}

// fetchForPriming fetches one manifest path from the origin and returns the
// serialized response. Any status other than 200 fails the install.
func (c *Controller) fetchForPriming(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin.ResolveReference(&url.URL{Path: path}).String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return httputil.DumpResponse(resp, true)
}

// Activate deletes every cache namespace whose name differs from the current
// cache version identifier and starts intercepting immediately.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInstalled {
		return fmt.Errorf("activate from state %s", c.state)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	names, err := c.store.Names()
	if err != nil {
		return fmt.Errorf("enumerate caches: %w", err)
	}
	for _, name := range names {
		if name == c.cacheName {
			continue
		}
		if err := c.store.DropName(name); err != nil {
			return fmt.Errorf("purge stale cache: %w", err)
		}
		c.logger.Info("stale cache purged", "cache", name)
	}

	c.state = StateActive
	return nil
}

// Supersede marks the controller as replaced. Subsequent requests pass
// through to the origin without touching the cache.
func (c *Controller) Supersede() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateSuperseded
}

// ServeHTTP applies the fetch policy to one intercepted request.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if c.State() != StateActive {
		c.passThrough(w, r)
		return
	}

	if c.isPackagePath(r.URL.Path) {
		c.servePackage(w, r)
		return
	}

	c.networkFirst(w, r)
}

// isPackagePath matches the designated package path with or without
// cache-busting query parameters or sub-paths.
func (c *Controller) isPackagePath(path string) bool {
	return path == c.packagePath || strings.Contains(path, c.packagePath)
}

// servePackage is the exception path: always a direct network fetch with
// caching disabled end-to-end, all original headers (Range included)
// forwarded, and never a cache read or write. A redeployed package is
// therefore always reflected immediately.
func (c *Controller) servePackage(w http.ResponseWriter, r *http.Request) {
	req, err := c.upstreamRequest(r)
	if err != nil {
		writeUnavailable(w, packageUnavailableBody)
		return
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("package fetch failed", "path", r.URL.Path, "error", err)
		writeUnavailable(w, packageUnavailableBody)
		return
	}
	defer resp.Body.Close()

	relayResponse(w, resp)
}

// networkFirst is the default path: attempt a live fetch, cache 200s, and
// fall back to the cached entry (or a synthesized 503) when the network
// fails. Freshness wins over speed; offline works once a resource has been
// seen. Only GET responses are ever stored or replayed: a mutation must
// never appear to succeed while the origin is unreachable, so a failed
// non-GET always yields the synthesized 503.
func (c *Controller) networkFirst(w http.ResponseWriter, r *http.Request) {
	cacheable := r.Method == http.MethodGet
	key := c.key(r.Method, r.URL.RequestURI())

	req, err := c.upstreamRequest(r)
	if err != nil {
		writeUnavailable(w, offlineBody)
		return
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if !cacheable {
			writeUnavailable(w, offlineBody)
			return
		}
		c.serveFromCache(w, r, key)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		relayResponse(w, resp)
		return
	}

	if !cacheable {
		relayResponse(w, resp)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// Connection died mid-body; treat like a failed fetch.
		c.serveFromCache(w, r, key)
		return
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	if dump, dumpErr := httputil.DumpResponse(resp, true); dumpErr == nil {
		c.store.Set(key, dump)
	}

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

// serveFromCache replays the cached entry for key, or synthesizes the fixed
// offline 503 when nothing has been cached.
func (c *Controller) serveFromCache(w http.ResponseWriter, r *http.Request, key string) {
	dump, ok := c.store.Get(key)
	if !ok {
		writeUnavailable(w, offlineBody)
		return
	}

	cached, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(dump)), r)
	if err != nil {
		c.logger.Error("corrupt cache entry", "key", key, "error", err)
		c.store.Delete(key)
		writeUnavailable(w, offlineBody)
		return
	}
	defer cached.Body.Close()

	relayResponse(w, cached)
}

// passThrough proxies without any cache interaction, for controllers that
// are not (or no longer) active.
func (c *Controller) passThrough(w http.ResponseWriter, r *http.Request) {
	req, err := c.upstreamRequest(r)
	if err != nil {
		writeUnavailable(w, offlineBody)
		return
	}

	resp, err := c.client.Do(req)
	if err != nil {
		writeUnavailable(w, offlineBody)
		return
	}
	defer resp.Body.Close()

	relayResponse(w, resp)
}

// upstreamRequest clones the inbound request against the origin, forwarding
// all original headers except hop-by-hop ones.
func (c *Controller) upstreamRequest(r *http.Request) (*http.Request, error) {
	u := *r.URL
	u.Scheme = c.origin.Scheme
	u.Host = c.origin.Host

	req, err := http.NewRequestWithContext(r.Context(), r.Method, u.String(), r.Body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = r.Header.Clone()
	for _, h := range []string{"Connection", "Keep-Alive", "Proxy-Connection", "Upgrade"} {
		req.Header.Del(h)
	}

	return req, nil
}

// key builds the namespaced cache key for a request.
func (c *Controller) key(method, requestURI string) string {
	return c.cacheName + "|" + method + " " + requestURI
}

func relayResponse(w http.ResponseWriter, resp *http.Response) {
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// writeUnavailable synthesizes the fixed 503 plain-text response. The status
// code and content type are part of the external contract.
func writeUnavailable(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = io.WriteString(w, body)
}
