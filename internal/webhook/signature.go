// Package webhook implements signed webhook notification delivery with
// bounded retries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignaturePrefix prefixes every payload signature so receivers can detect
// the scheme.
const SignaturePrefix = "sha256="

// Sign computes the hex-encoded HMAC-SHA256 of the raw payload body keyed
// by the agent's webhook secret, prefixed with "sha256=".
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature against the payload using a
// constant-time comparison.
func VerifySignature(payload []byte, secret, signature string) bool {
	if !strings.HasPrefix(signature, SignaturePrefix) {
		return false
	}

	expected, err := hex.DecodeString(strings.TrimPrefix(signature, SignaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
