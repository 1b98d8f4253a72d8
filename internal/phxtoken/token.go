// Package phxtoken decodes the payload of Phoenix session tokens.
//
// A token is three dot-separated segments: a version marker, a base64
// binary payload, and a signature. The payload is a self-describing
// binary term stream (a small subset of the Erlang external term format)
// whose top level is a string-keyed map. The signature is deliberately
// not verified here; authenticity is established upstream by the service
// that issued the cookie.
package phxtoken

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDecode reports a malformed or truncated token. Every failure mode of
// this package wraps it, so callers can match with errors.Is.
var ErrDecode = errors.New("phxtoken: decode error")

// versionMarker is the fixed first segment of a signed Phoenix token
// ("HS256" base64-encoded by the issuer).
const versionMarker = "SFMyNTY"

// userIDKey is the payload map entry carrying the numeric identity.
const userIDKey = "user_id"

// Decode parses the binary payload of token and returns the top-level map.
func Decode(token string) (map[string]Term, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrDecode, len(parts))
	}
	if parts[0] != versionMarker {
		return nil, fmt.Errorf("%w: bad version marker %q", ErrDecode, parts[0])
	}

	raw, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: payload is not base64: %v", ErrDecode, err)
		}
	}

	c := cursor{data: raw}
	term, err := c.decodeTerm()
	if err != nil {
		return nil, err
	}
	if term.Kind != KindMap {
		return nil, fmt.Errorf("%w: top-level term is not a map", ErrDecode)
	}
	return term.Map, nil
}

// UserID extracts the numeric identity from token. The payload entry may be
// an integer term or a text term containing digits.
func UserID(token string) (int64, error) {
	m, err := Decode(token)
	if err != nil {
		return 0, err
	}

	v, ok := m[userIDKey]
	if !ok {
		return 0, fmt.Errorf("%w: payload has no %s", ErrDecode, userIDKey)
	}

	switch v.Kind {
	case KindInt:
		return v.Int, nil
	case KindText:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Text), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q is not numeric", ErrDecode, userIDKey, v.Text)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s has unsupported shape", ErrDecode, userIDKey)
	}
}
