package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/quota"
)

// Headers set by the account gateway in front of the service.
const (
	HeaderAPIKey      = "X-API-Key"
	HeaderAccountID   = "X-Account-ID"
	HeaderAccountPlan = "X-Account-Plan"
)

// Fingerprint derives the quota identity of a caller without an account.
// It combines the client IP with a short hash of the user agent, so callers
// behind one NAT with different browsers are counted separately.
//
//	Fingerprint("203.0.113.7", "curl/8.5.0") // "anon:203.0.113.7:1a2b3c4d"
func Fingerprint(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return "anon:" + ip + ":" + hex.EncodeToString(sum[:])[:8]
}

// Identify resolves the caller of every request and attaches it to the
// request context with core.ContextWithCaller.
//
// Account headers are honored only when the request carries one of
// gatewayKeys. Anything else, including account headers with a missing or
// wrong key, is an anonymous caller identified by Fingerprint. A plan the
// service does not know is passed through and rejected by the quota gate.
//
// Must run after TrustedRealIP so RemoteAddr is the client address.
func Identify(gatewayKeys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			ua := r.UserAgent()

			caller := core.Caller{
				Identity:  Fingerprint(ip, ua),
				Tier:      quota.TierAnonymous,
				Anonymous: true,
				IPAddress: ip,
				UserAgent: ua,
			}

			if account := strings.TrimSpace(r.Header.Get(HeaderAccountID)); account != "" {
				if isValidAPIKey(r.Header.Get(HeaderAPIKey), gatewayKeys) {
					caller.Identity = "account:" + account
					caller.Tier = accountTier(r.Header.Get(HeaderAccountPlan))
					caller.Anonymous = false
				} else {
					logging.FromContext(r.Context()).Warn("identify: account headers without valid gateway key",
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
					)
				}
			}

			ctx := core.ContextWithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// accountTier maps the gateway's plan header to a tier. Accounts without a
// plan are on the free tier.
func accountTier(plan string) quota.Tier {
	plan = strings.ToLower(strings.TrimSpace(plan))
	if plan == "" {
		return quota.TierFree
	}
	return quota.Tier(plan)
}

// clientIP returns RemoteAddr without its port.
func clientIP(r *http.Request) string {
	if addr, ok := extractAddr(r.RemoteAddr); ok {
		return addr.String()
	}
	return r.RemoteAddr
}

// isValidAPIKey checks if the provided key matches any configured key.
// Uses constant-time comparison and checks ALL keys so the comparison time
// does not reveal which key matched.
func isValidAPIKey(key string, validKeys []string) bool {
	if key == "" {
		return false
	}
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}
