// Package custodian implements the out-of-band credential model that binds
// a DEK to caller-presented Basic-auth credentials.
package custodian

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"lukechampine.com/blake3"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

// Credentials is a secret-wrapping pair (k1, k2) extracted from a Basic
// Authorization header. It redacts itself on String/GoString so it is never
// accidentally logged.
type Credentials struct {
	k1, k2 string
}

func (c Credentials) String() string   { return "custodian.Credentials{REDACTED}" }
func (c Credentials) GoString() string { return c.String() }

// token renders the credential pair in the "k1:k2" form hashed into an
// access token.
func (c Credentials) token() string {
	return c.k1 + ":" + c.k2
}

// Custodian optionally carries Credentials presented on the current
// request. A Custodian without credentials (HasCredentials false) means the
// request presented no Authorization header. Like Credentials, it redacts
// itself on String/GoString.
type Custodian struct {
	creds    Credentials
	hasCreds bool
}

func (c Custodian) String() string   { return "custodian.Custodian{REDACTED}" }
func (c Custodian) GoString() string { return c.String() }

// FromRequest extracts a Custodian from an HTTP request's Authorization
// header. An absent header yields a Custodian with no credentials, which is
// valid for every identifier kind except Entity (checked later in the
// envelope engine). A header that is present but malformed is an error: it
// must never silently downgrade to "no credentials".
func FromRequest(r *http.Request) (Custodian, error) {
	return FromHeader(r.Header.Get("Authorization"))
}

// FromHeader is the header-string entry point, usable outside net/http
// (e.g. from a gin.Context's header accessor).
func FromHeader(header string) (Custodian, error) {
	if header == "" {
		return Custodian{}, nil
	}
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return Custodian{}, fmt.Errorf("%w: authorization header is not Basic", domain.ErrParsingFailed)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return Custodian{}, fmt.Errorf("%w: authorization header: invalid base64: %w", domain.ErrParsingFailed, err)
	}
	k1, k2, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return Custodian{}, fmt.Errorf("%w: authorization header: credentials missing separator", domain.ErrParsingFailed)
	}
	return Custodian{creds: Credentials{k1: k1, k2: k2}, hasCreds: true}, nil
}

// HasCredentials reports whether this Custodian carries a credential pair.
func (c Custodian) HasCredentials() bool {
	return c.hasCreds
}

// TenantHashContext is the subset of tenant configuration the custodian
// needs to derive an access token: a per-tenant BLAKE3 key-derivation
// context string and the per-tenant secret material it's derived from.
type TenantHashContext struct {
	Context string
	Secret  []byte
}

// IntoAccessToken computes keyed_blake3(derived_key, "k1:k2") as a hex
// string. If no credentials were presented, the token is nil, matching the
// "unrestricted" DEK token.
func (c Custodian) IntoAccessToken(tenant TenantHashContext) (*string, error) {
	if !c.hasCreds {
		return nil, nil
	}
	if tenant.Context == "" || len(tenant.Secret) == 0 {
		return nil, fmt.Errorf("%w: custodian: tenant hash context not configured", domain.ErrKeyGeneration)
	}

	derived := make([]byte, 32)
	blake3.DeriveKey(derived, tenant.Context, tenant.Secret)
	h := blake3.New(32, derived)
	_, _ = h.Write([]byte(c.creds.token()))

	token := hex.EncodeToString(h.Sum(nil))
	return &token, nil
}
