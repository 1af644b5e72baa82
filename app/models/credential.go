package models

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"
)

// Credential stores the digest of a user's API secret. The plaintext is
// never persisted; Last4 is kept so the UI can show a preview.
type Credential struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	AccountID string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_credentials_account" json:"account_id"`
	Digest    string    `gorm:"type:char(64);not null" json:"-"`
	Last4     string    `gorm:"type:varchar(4);not null;default:''" json:"last4"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SecretPrefix marks every issued secret so its format can be sniffed
// before any lookup.
const SecretPrefix = "sk_live_"

// CredentialPreviewMask is shown in place of the hidden part of a secret.
const CredentialPreviewMask = "••••"

const secretEntropyBytes = 32

var secretEncoding = base64.RawURLEncoding

var secretLen = len(SecretPrefix) + secretEncoding.EncodedLen(secretEntropyBytes)

// IssueSecret generates a new secret, stores its digest and preview on the
// struct, and returns the raw secret. Callers must persist the struct via the
// database after invoking this method. A nil random uses crypto/rand.
func (c *Credential) IssueSecret(random io.Reader, digest func(string) string) (string, error) {
	raw, err := generateSecretMaterial(random)
	if err != nil {
		return "", err
	}
	c.Digest = digest(raw)
	c.Last4 = raw[len(raw)-4:]
	return raw, nil
}

// Preview returns the masked secret shown after issuance.
func (c *Credential) Preview() string {
	if c == nil {
		return ""
	}
	return CredentialPreviewMask + c.Last4
}

// HasSecretFormat reports whether s looks like a secret issued here.
func HasSecretFormat(s string) bool {
	if len(s) != secretLen || !strings.HasPrefix(s, SecretPrefix) {
		return false
	}
	_, err := secretEncoding.DecodeString(s[len(SecretPrefix):])
	return err == nil
}

func generateSecretMaterial(random io.Reader) (string, error) {
	if random == nil {
		random = rand.Reader
	}
	b := make([]byte, secretEntropyBytes)
	if _, err := io.ReadFull(random, b); err != nil {
		return "", fmt.Errorf("secret generation failed: %w", err)
	}
	return SecretPrefix + secretEncoding.EncodeToString(b), nil
}
