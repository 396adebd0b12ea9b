package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
)

const defaultPath = "/notifications"

// NavigationPath is where a click on n should take the user. Only
// same-origin paths from the payload are followed.
func NavigationPath(n protocol.Notification) string {
	for _, key := range []string{"link", "url"} {
		if p, ok := localPath(n.Data[key]); ok {
			return p
		}
	}
	routes := []struct{ key, prefix string }{
		{"conversationId", "/messages/"},
		{"orderId", "/orders/"},
		{"gigId", "/gigs/"},
	}
	for _, r := range routes {
		if id := dataString(n.Data[r.key]); id != "" {
			return r.prefix + url.PathEscape(id)
		}
	}
	return defaultPath
}

func localPath(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	return s, true
}

func dataString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%.0f", x)
	default:
		return ""
	}
}
