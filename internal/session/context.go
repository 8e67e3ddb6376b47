package session

import "context"

type resolutionContextKey struct{}

// ContextWithResolution stores the session resolution in context. The
// session middleware is the only producer; every enforcement gate reads it
// from here rather than re-deriving it.
func ContextWithResolution(ctx context.Context, res Resolution) context.Context {
	return context.WithValue(ctx, resolutionContextKey{}, res)
}

// ResolutionFromContext extracts the resolution. The zero value has
// StateUnresolved, which gates must treat as "render nothing privileged".
func ResolutionFromContext(ctx context.Context) Resolution {
	res, _ := ctx.Value(resolutionContextKey{}).(Resolution)
	return res
}
