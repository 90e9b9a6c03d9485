package core

import (
	"context"

	"github.com/JonMunkholm/csvclean/internal/quota"
)

// Caller identifies who a cleaning is charged to.
type Caller struct {
	Identity  string // Quota key: account id or anonymous fingerprint
	Tier      quota.Tier
	Anonymous bool // No account; identity is a fingerprint
	IPAddress string
	UserAgent string
}

// IdentityKind is "anonymous" or "account", for logs that must not carry
// the identity itself.
func (c Caller) IdentityKind() string {
	if c.Anonymous {
		return "anonymous"
	}
	return "account"
}

type contextKey string

const ctxKeyCaller contextKey = "caller"

// ContextWithCaller attaches the resolved caller to ctx.
func ContextWithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKeyCaller, c)
}

// CallerFromContext returns the caller set by ContextWithCaller.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKeyCaller).(Caller)
	return c, ok
}
