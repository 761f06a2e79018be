// Healthcheck probe for container orchestration. Exits 0 when every
// configured listener answers its health endpoint, 1 otherwise. The panel is
// always probed; the offline gateway is probed too when its listen address is
// configured, since the gateway proxies the same health endpoint.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

func main() {
	os.Exit(check())
}

func check() int {
	targets := []string{normalizeAddr(os.Getenv("CREDVAULT_LISTEN_ADDR"), "8080")}
	if gw := os.Getenv("CREDVAULT_GATEWAY_LISTEN_ADDR"); gw != "" {
		targets = append(targets, normalizeAddr(gw, "8081"))
	}

	client := &http.Client{Timeout: 2 * time.Second}

	for _, addr := range targets {
		if !healthy(client, addr) {
			return 1
		}
	}

	return 0
}

func healthy(client *http.Client, addr string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/api/v1/health", addr), nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// normalizeAddr ensures the probe connects to loopback rather than the
// bind-all address. Docker containers bind 0.0.0.0 but the healthcheck runs
// inside the same container, so loopback is reachable and more correct.
func normalizeAddr(raw, defaultPort string) string {
	if raw == "" {
		return net.JoinHostPort("127.0.0.1", defaultPort)
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return net.JoinHostPort("127.0.0.1", defaultPort)
	}

	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
