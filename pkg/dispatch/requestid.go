package dispatch

import "context"

type requestIDKey struct{}

// WithRequestID returns a context carrying a caller-assigned request
// identifier. Dispatch threads it through logs and spans instead of
// minting its own.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request identifier carried by ctx, or the
// empty string when none was assigned.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
