// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets values, services read them. Keeping the package free of
// net/http lets services depend only on context.Context. Tests inject a fixed
// request time with WithTime so timestamp-sensitive logic stays deterministic:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"

	id "entrypass/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	sessionIDKey   struct{}
	screenIDKey    struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	deviceNameKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeySessionID   = sessionIDKey{}
	ContextKeyScreenID    = screenIDKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyDeviceName  = deviceNameKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// WithSessionID stores the authenticated traveler session ID.
func WithSessionID(ctx context.Context, sid id.SessionID) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sid)
}

// SessionID returns the traveler session ID, or the zero value when unset.
func SessionID(ctx context.Context) id.SessionID {
	sid, _ := ctx.Value(ContextKeySessionID).(id.SessionID)
	return sid
}

// WithScreenID stores the form screen being edited.
func WithScreenID(ctx context.Context, screen id.ScreenID) context.Context {
	return context.WithValue(ctx, ContextKeyScreenID, screen)
}

// ScreenID returns the form screen being edited, or "".
func ScreenID(ctx context.Context) id.ScreenID {
	s, _ := ctx.Value(ContextKeyScreenID).(id.ScreenID)
	return s
}

// WithClientIP stores the caller's IP address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, ip)
}

// ClientIP returns the caller's IP address, or "".
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ContextKeyClientIP).(string)
	return ip
}

// WithUserAgent stores the raw User-Agent header.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ContextKeyUserAgent, ua)
}

// UserAgent returns the raw User-Agent header, or "".
func UserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(ContextKeyUserAgent).(string)
	return ua
}

// WithDeviceName stores the parsed device display name ("iPhone / Safari").
func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ContextKeyDeviceName, name)
}

// DeviceName returns the parsed device display name, or "".
func DeviceName(ctx context.Context) string {
	n, _ := ctx.Value(ContextKeyDeviceName).(string)
	return n
}

// WithRequestID stores the correlation ID for the current request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestID returns the correlation ID, or "".
func RequestID(ctx context.Context) string {
	rid, _ := ctx.Value(ContextKeyRequestID).(string)
	return rid
}

// WithTime pins the request time. Middleware sets it once per request;
// tests set it to a fixed instant.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// Now returns the pinned request time, falling back to time.Now(). All
// engine timestamps flow through this so a request observes one consistent
// clock reading and tests stay deterministic.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}
