// Package admintoken issues and verifies the stateless admin credential: a
// base64url JSON payload carrying only an expiry, joined by a dot to its
// base64url HMAC-SHA256 signature.
//
//	eyJleHAiOjE3MzAwMDAwMDB9.<signature>
//
// Tokens are never stored server side and cannot be revoked before they
// expire.
package admintoken

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	apperrors "github.com/findaly/findaly/internal/errors"
)

// DefaultTTL is the lifetime of an admin token when none is configured.
const DefaultTTL = 14 * 24 * time.Hour

// encoding rejects non-zero trailing bits so every signature has exactly one
// accepted spelling.
var encoding = base64.RawURLEncoding.Strict()

var signingMethod = jwt.SigningMethodHS256

// Payload is the signed body of an admin token.
type Payload struct {
	Exp int64 `json:"exp"` // unix seconds
}

// Issue creates a token valid for ttl from now. A non-positive ttl falls back
// to DefaultTTL.
func Issue(secret string, ttl time.Duration) (string, error) {
	return IssueAt(secret, ttl, time.Now())
}

// IssueAt is Issue with an explicit clock.
func IssueAt(secret string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", apperrors.ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	body, err := json.Marshal(Payload{Exp: now.Add(ttl).Unix()})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode admin token payload")
	}
	encodedPayload := encoding.EncodeToString(body)

	sig, err := signingMethod.Sign(encodedPayload, []byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign admin token")
	}
	return encodedPayload + "." + encoding.EncodeToString(sig), nil
}

// Verify reports whether token is a well-formed, correctly signed and
// unexpired admin token. It never panics and treats every failure alike.
func Verify(token, secret string) bool {
	_, err := Parse(token, secret, time.Now())
	return err == nil
}

// Parse validates token at the given time and returns its payload. The error
// identifies the failed check for logging; callers must not expose it.
func Parse(token, secret string, now time.Time) (Payload, error) {
	if secret == "" {
		return Payload{}, apperrors.ErrMissingSecret
	}
	if token == "" {
		return Payload{}, errors.Wrap(apperrors.ErrMalformedToken, "empty token")
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Payload{}, errors.Wrapf(apperrors.ErrMalformedToken, "expected 2 segments, got %d", len(parts))
	}
	encodedPayload, encodedSig := parts[0], parts[1]

	sig, err := encoding.DecodeString(encodedSig)
	if err != nil {
		return Payload{}, errors.Wrap(apperrors.ErrBadSignature, "signature is not base64url")
	}
	// hmac.Equal: constant time over the computed MAC, length mismatch fails.
	if err := signingMethod.Verify(encodedPayload, sig, []byte(secret)); err != nil {
		return Payload{}, errors.Wrap(apperrors.ErrBadSignature, err.Error())
	}

	body, err := encoding.DecodeString(encodedPayload)
	if err != nil {
		return Payload{}, errors.Wrap(apperrors.ErrMalformedToken, "payload is not base64url")
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, errors.Wrap(apperrors.ErrMalformedToken, "payload is not valid json")
	}
	if p.Exp <= 0 {
		return Payload{}, errors.Wrap(apperrors.ErrMalformedToken, "missing exp")
	}
	if p.Exp <= now.Unix() {
		return Payload{}, apperrors.ErrTokenExpired
	}
	return p, nil
}

// ExpiresAt returns the expiry as a time.
func (p Payload) ExpiresAt() time.Time {
	return time.Unix(p.Exp, 0)
}
