// Package auth resolves the caller's account identity.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// identityContextKey is the key used to store the caller identity in context.
	identityContextKey contextKey = "identity"
)

// GetIdentity retrieves the caller identity from the context.
//
// Returns the demo identity if none was stored, so callers never need a
// nil check.
//
// Usage:
//
//	id := auth.GetIdentity(r.Context())
//	if !id.Authenticated {
//	    // demo experience
//	}
func GetIdentity(ctx context.Context) Identity {
	id, ok := ctx.Value(identityContextKey).(Identity)
	if !ok {
		return Demo()
	}
	return id
}

// GetIdentityFromRequest is a convenience wrapper around GetIdentity.
func GetIdentityFromRequest(r *http.Request) Identity {
	return GetIdentity(r.Context())
}

// SetIdentity stores an identity in the context.
func SetIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
