package api

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/pkg/httputil"
	"github.com/copperline/barback/internal/pkg/logger"
	"github.com/copperline/barback/internal/twilio"
)

// TwilioSignature validates X-Twilio-Signature on provider webhooks.
// The signature covers the public URL as the provider requested it, so
// publicBaseURL must match what is registered in the provider console.
// Disabled validation passes everything through (local development).
func TwilioSignature(validator *twilio.Validator, publicBaseURL string, enabled bool) func(http.Handler) http.Handler {
	base := strings.TrimRight(publicBaseURL, "/")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "malformed form body")
				return
			}
			sig := r.Header.Get("X-Twilio-Signature")
			if sig == "" || !validator.Validate(base+r.URL.RequestURI(), r.PostForm, sig) {
				logger.Warn("webhook signature rejected", "path", r.URL.Path)
				httputil.Forbidden(w, "invalid signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SearchGuard gates the read-only search API behind an API key, an IP
// allowlist, and a per-key rate limit.
type SearchGuard struct {
	apiKey  string
	cidrs   []*net.IPNet
	limiter *RateLimiter
}

// NewSearchGuard parses the configured CIDRs up front so a bad config
// fails at startup, not per request.
func NewSearchGuard(cfg config.SearchConfig, limiter *RateLimiter) (*SearchGuard, error) {
	g := &SearchGuard{apiKey: cfg.APIKey, limiter: limiter}
	for _, c := range cfg.AllowedCIDRs {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(c))
		if err != nil {
			return nil, fmt.Errorf("parsing allowed CIDR %q: %w", c, err)
		}
		g.cidrs = append(g.cidrs, ipNet)
	}
	return g, nil
}

// Middleware enforces the guard. An empty allowlist admits any source IP.
func (g *SearchGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if g.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(g.apiKey)) != 1 {
			httputil.Unauthorized(w, "invalid API key")
			return
		}

		if len(g.cidrs) > 0 && !g.allowedIP(remoteIP(r)) {
			logger.Warn("search request from disallowed IP", "remote", r.RemoteAddr)
			httputil.Forbidden(w, "source address not allowed")
			return
		}

		if !g.limiter.Allow(r.Context(), "search") {
			httputil.TooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *SearchGuard) allowedIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, ipNet := range g.cidrs {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// remoteIP extracts the client IP. RealIP middleware has already folded
// any forwarding headers into RemoteAddr, which may or may not carry a
// port at this point.
func remoteIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
