package realtime

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ResolveEndpoint picks the websocket URL: RealtimeURL, then APIURL, then the
// production origin when PageHost is a production host, then LocalURL.
func ResolveEndpoint(cfg Config) (string, error) {
	base := cfg.RealtimeURL
	if base == "" {
		base = cfg.APIURL
	}
	if base == "" {
		if IsProductionHost(cfg.PageHost, cfg.ProductionHosts) {
			base = cfg.ProductionURL
		} else {
			base = cfg.LocalURL
		}
	}
	if base == "" {
		return "", fmt.Errorf("resolve endpoint: no origin configured")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("resolve endpoint %q: %w", base, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("resolve endpoint %q: unsupported scheme %q", base, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("resolve endpoint %q: missing host", base)
	}

	p := strings.TrimRight(u.Path, "/")
	if suffix := wsPath(cfg.Path); suffix != "" && !strings.HasSuffix(p, suffix) {
		p += suffix
	}
	u.Path = p
	return u.String(), nil
}

// wsPath normalizes the configured path to one leading slash and no trailing
// slash, so suffix checks compare whole segments.
func wsPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// IsProductionHost reports whether host (port ignored) is one of hosts.
func IsProductionHost(host string, hosts []string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return false
	}
	for _, h := range hosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}
