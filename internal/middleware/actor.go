package middleware

import (
	"github.com/valyala/fasthttp"
)

const (
	// OwnerKey is the request-scoped key carrying the resolved owner id.
	OwnerKey = "owner_id"

	// DefaultOwner is used when a request does not identify its caller.
	// The service fronts a single-user assistant, so anonymous requests
	// all map to the same account.
	DefaultOwner = "default"

	ownerHeader = "X-User-ID"
)

// ResolveActor stamps every request with an owner id, falling back to the
// default account when the caller does not send one.
func ResolveActor(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		owner := string(ctx.Request.Header.Peek(ownerHeader))
		if owner == "" {
			owner = DefaultOwner
		}
		ctx.SetUserValue(OwnerKey, owner)
		next(ctx)
	}
}

// Owner returns the owner id resolved for the request.
func Owner(ctx *fasthttp.RequestCtx) string {
	if owner, ok := ctx.UserValue(OwnerKey).(string); ok && owner != "" {
		return owner
	}
	return DefaultOwner
}
