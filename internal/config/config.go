// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config holds the panel server configuration.
type Config struct {
	ListenAddr     string
	DBPath         string
	DownloadsDir   string
	PackagePath    string
	PackageBaseURL string
	ProbeTimeout   time.Duration
}

// Load reads panel configuration from environment variables and returns a
// validated Config. All variables are optional: CREDVAULT_LISTEN_ADDR
// (127.0.0.1:8080), CREDVAULT_DB_PATH (credvault.db), CREDVAULT_DOWNLOADS_DIR
// (./downloads), CREDVAULT_PACKAGE_PATH (/downloads/app.apk),
// CREDVAULT_PACKAGE_BASE_URL (http://<listen addr>), CREDVAULT_PROBE_TIMEOUT (30s).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:   envOr("CREDVAULT_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:       envOr("CREDVAULT_DB_PATH", "credvault.db"),
		DownloadsDir: envOr("CREDVAULT_DOWNLOADS_DIR", "downloads"),
		PackagePath:  envOr("CREDVAULT_PACKAGE_PATH", "/downloads/app.apk"),
		ProbeTimeout: 30 * time.Second,
	}

	if v, ok := os.LookupEnv("CREDVAULT_PROBE_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CREDVAULT_PROBE_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.ProbeTimeout = parsed
	}

	cfg.PackageBaseURL = envOr("CREDVAULT_PACKAGE_BASE_URL", "http://"+cfg.ListenAddr)
	if _, err := url.Parse(cfg.PackageBaseURL); err != nil {
		return nil, fmt.Errorf("CREDVAULT_PACKAGE_BASE_URL is invalid: %w", err)
	}

	return cfg, nil
}

// GatewayConfig holds the offline gateway configuration.
type GatewayConfig struct {
	ListenAddr  string
	OriginURL   *url.URL
	CacheDBPath string
	CacheName   string
	PackagePath string
}

// LoadGateway reads gateway configuration from environment variables.
// CREDVAULT_GATEWAY_ORIGIN_URL is required (the credvault origin the gateway
// fronts); optional: CREDVAULT_GATEWAY_LISTEN_ADDR (127.0.0.1:8081),
// CREDVAULT_GATEWAY_CACHE_DB_PATH (offline-cache.db),
// CREDVAULT_GATEWAY_CACHE_NAME (credvault-shell-v1), CREDVAULT_PACKAGE_PATH
// (/downloads/app.apk).
func LoadGateway() (*GatewayConfig, error) {
	rawOrigin := os.Getenv("CREDVAULT_GATEWAY_ORIGIN_URL")
	if rawOrigin == "" {
		return nil, fmt.Errorf("CREDVAULT_GATEWAY_ORIGIN_URL is required")
	}

	origin, err := url.Parse(rawOrigin)
	if err != nil {
		return nil, fmt.Errorf("CREDVAULT_GATEWAY_ORIGIN_URL is invalid: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("CREDVAULT_GATEWAY_ORIGIN_URL %q must include scheme and host", rawOrigin)
	}

	return &GatewayConfig{
		ListenAddr:  envOr("CREDVAULT_GATEWAY_LISTEN_ADDR", "127.0.0.1:8081"),
		OriginURL:   origin,
		CacheDBPath: envOr("CREDVAULT_GATEWAY_CACHE_DB_PATH", "offline-cache.db"),
		CacheName:   envOr("CREDVAULT_GATEWAY_CACHE_NAME", "credvault-shell-v1"),
		PackagePath: envOr("CREDVAULT_PACKAGE_PATH", "/downloads/app.apk"),
	}, nil
}

func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}
