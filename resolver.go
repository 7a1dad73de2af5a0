package possync

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// CredentialSource returns the raw session credential for the current
// session, or "" when no session is active.
type CredentialSource func() string

// sessionClaims is the subset of the session payload the resolver cares about.
type sessionClaims struct {
	StoreID string `json:"storeId"`
}

// SessionResolver extracts the tenant (store) identifier from a base64url
// encoded JSON session payload. The credential may be either the bare payload
// segment or a dot-separated JWT-style token, in which case the claims
// segment is used.
//
// It fails closed: a missing credential, undecodable segment, malformed JSON,
// or empty storeId field all resolve to "no tenant". No signature validation
// happens here — that is the auth layer's job; the resolver only needs the
// claim, and an unresolved tenant merely denies cache access.
type SessionResolver struct {
	source CredentialSource
}

var _ TenantResolver = (*SessionResolver)(nil)

// NewSessionResolver creates a resolver reading credentials from source.
func NewSessionResolver(source CredentialSource) *SessionResolver {
	return &SessionResolver{source: source}
}

// Resolve returns the current tenant id, or ok=false when none can be
// derived from the session.
func (r *SessionResolver) Resolve() (string, bool) {
	if r == nil || r.source == nil {
		return "", false
	}
	token := strings.TrimSpace(r.source())
	if token == "" {
		return "", false
	}

	payload := token
	if parts := strings.Split(token, "."); len(parts) == 3 {
		payload = parts[1] // JWT-style: header.claims.signature
	} else if len(parts) != 1 {
		return "", false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		// Tolerate padded encodings; some token issuers keep the '='.
		decoded, err = base64.URLEncoding.DecodeString(payload)
		if err != nil {
			return "", false
		}
	}

	var claims sessionClaims
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return "", false
	}
	if claims.StoreID == "" {
		return "", false
	}
	return claims.StoreID, true
}
