package auth

import (
	"context"
	"slices"
	"strings"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"

	rolePrefix = "ROLE_"
)

// Identity is the minimal description of an authenticated principal.
type Identity struct {
	ID       int64
	Username string
	Role     string
	Status   string
}

// RequestContext is attached to a request once its token has been verified
// and its subject resolved. It lives exactly as long as the request and is
// read-only after construction.
type RequestContext struct {
	identity    Identity
	authorities []string
}

// NewRequestContext derives the authority list from a single role.
func NewRequestContext(id Identity, role string) *RequestContext {
	rc := &RequestContext{identity: id}
	if role = strings.TrimSpace(role); role != "" {
		rc.authorities = []string{rolePrefix + role}
	}
	return rc
}

// Identity returns a copy of the resolved principal.
func (rc *RequestContext) Identity() Identity {
	if rc == nil {
		return Identity{}
	}
	return rc.identity
}

// Authorities returns a copy of the granted authority strings.
func (rc *RequestContext) Authorities() []string {
	if rc == nil {
		return nil
	}
	return slices.Clone(rc.authorities)
}

// HasAuthority reports whether the exact authority string was granted.
func (rc *RequestContext) HasAuthority(authority string) bool {
	if rc == nil {
		return false
	}
	return slices.Contains(rc.authorities, authority)
}

// HasRole checks for ROLE_<role>.
func (rc *RequestContext) HasRole(role string) bool {
	return rc.HasAuthority(rolePrefix + role)
}

// UserID returns the authenticated user id or zero for an anonymous context.
func (rc *RequestContext) UserID() int64 {
	if rc == nil {
		return 0
	}
	return rc.identity.ID
}

type ctxKey int

const requestContextKey ctxKey = iota

func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// FromContext returns the request context, if the request was authenticated.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(*RequestContext)
	return rc, ok && rc != nil
}
