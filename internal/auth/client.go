package auth

import (
	"net"
	"net/http"
	"strings"
)

const unknownClient = "unknown"

// ClientID はレート制限に使うクライアント識別子を返します。
// trustForwarded が true の場合は X-Forwarded-For の先頭を優先し、
// なければ接続元アドレスを使います。
func ClientID(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		return unknownClient
	}
	return addr
}
