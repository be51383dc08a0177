package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// TrustedProxies makes c.RealIP() return the client address as reported by
// the reverse proxies in trustedCIDRs. The per-IP rate limiters on /user and
// on Basic credentials for /api key on this address, so a wrong extractor
// either throttles every client behind the proxy together or lets one client
// pick its own bucket.
func TrustedProxies(e *echo.Echo, trustedCIDRs []string) {
	e.IPExtractor = buildIPExtractor(trustedCIDRs)
}

// buildIPExtractor returns an extractor that honours forwarding headers only
// when the peer is a trusted proxy.
//
// X-Forwarded-For is walked right to left: each proxy appends the address it
// received the request from, so the first untrusted hop is the client. Hops
// to the left of it were written by the client and are ignored. X-Real-IP is
// used when no X-Forwarded-For is present.
func buildIPExtractor(trustedCIDRs []string) echo.IPExtractor {
	trusted := parseCIDRs(trustedCIDRs)

	return func(req *http.Request) string {
		peer := extractDirectIP(req.RemoteAddr)
		if !isTrusted(peer, trusted) {
			return peer
		}

		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if net.ParseIP(hop) == nil {
					// A malformed hop means the chain cannot be trusted past here.
					break
				}
				if !isTrusted(hop, trusted) {
					return hop
				}
			}
			return peer
		}

		if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); net.ParseIP(realIP) != nil {
			return realIP
		}
		return peer
	}
}

// parseCIDRs parses proxy ranges, logging and skipping invalid entries.
func parseCIDRs(cidrs []string) []*net.IPNet {
	var out []*net.IPNet
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy CIDR", slog.String("cidr", cidr))
			continue
		}
		out = append(out, network)
	}
	return out
}

// extractDirectIP strips the port from a "host:port" RemoteAddr.
func extractDirectIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// isTrusted reports whether ipStr falls within any trusted range.
func isTrusted(ipStr string, trusted []*net.IPNet) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
