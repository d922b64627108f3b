package registry

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	inOperationKey
)

// WithRequestID attaches a correlation ID that is copied onto every
// notification produced under ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom returns the correlation ID attached to ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// withinOperation marks ctx as running inside a registry mutation.
// Notification sinks receive a marked context.
func withinOperation(ctx context.Context) context.Context {
	return context.WithValue(ctx, inOperationKey, true)
}

// InOperation reports whether ctx was handed out by a registry mutation.
func InOperation(ctx context.Context) bool {
	in, _ := ctx.Value(inOperationKey).(bool)
	return in
}

// checkReentry rejects mutations issued from inside another mutation.
func checkReentry(ctx context.Context) error {
	if InOperation(ctx) {
		return ErrReentrantCall
	}
	return nil
}
