package protocol

import (
	"context"
	"maps"
)

// Well-known request metadata keys set by transports.
const (
	MetaAuthorization = "Authorization"
	MetaRequestID     = "X-Request-ID"
	MetaRemoteAddr    = "Remote-Addr"
	MetaTransport     = "Transport"
)

type requestMetaKey struct{}

// RequestMeta carries transport-level values (HTTP headers, peer address)
// alongside a request.
type RequestMeta map[string]string

// ContextWithRequestMeta returns a new context with the request metadata attached.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the request metadata from the context, or nil.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return meta
	}
	return nil
}

// GetRequestMeta returns a single metadata value, or "" when absent.
func GetRequestMeta(ctx context.Context, key string) string {
	return RequestMetaFromContext(ctx)[key]
}

// SetRequestMeta returns a context whose metadata has key set to value.
// The metadata attached to ctx is copied, never mutated.
func SetRequestMeta(ctx context.Context, key, value string) context.Context {
	meta := make(RequestMeta, len(RequestMetaFromContext(ctx))+1)
	maps.Copy(meta, RequestMetaFromContext(ctx))
	meta[key] = value
	return ContextWithRequestMeta(ctx, meta)
}
