package digest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Size is the length of a hex encoded digest.
const Size = sha256.Size * 2

var ErrMissingPepper = errors.New("SECRET_PEPPER is not configured")

// Engine turns plaintext secrets into storable HMAC-SHA256 digests keyed by
// the server-held pepper. The pepper never leaves the engine.
type Engine struct {
	pepper []byte
}

// New returns an engine for the given pepper. An empty pepper is a
// configuration error and must stop the process at startup.
func New(pepper string) (*Engine, error) {
	if strings.TrimSpace(pepper) == "" {
		return nil, ErrMissingPepper
	}
	return &Engine{pepper: []byte(pepper)}, nil
}

// Digest returns the lowercase hex HMAC-SHA256 of plaintext.
func (e *Engine) Digest(plaintext string) string {
	mac := hmac.New(sha256.New, e.pepper)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal compares two digests in constant time.
func (e *Engine) Equal(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// Matches digests plaintext and compares it against stored.
func (e *Engine) Matches(plaintext, stored string) bool {
	return e.Equal(e.Digest(plaintext), stored)
}

// String keeps the pepper out of logs and fmt output.
func (e *Engine) String() string {
	return "digest.Engine{pepper:<redacted>}"
}
