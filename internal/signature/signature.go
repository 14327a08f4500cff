// Package signature computes and verifies webhook HMAC signatures for the
// supported platforms. All comparisons are constant-time; every verify
// function returns false (never an error) on missing or malformed input, and
// callers must treat false as reject-with-403.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a raw-body hex HMAC-SHA256 signature.
func Verify(body, signature, secret string) bool {
	if body == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}

// VerifyWhatsApp checks an X-Hub-Signature-256 header, which prefixes the
// hex digest with "sha256=".
func VerifyWhatsApp(body, header, secret string) bool {
	digest, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	return Verify(body, digest, secret)
}

// VerifyTelegram checks a raw-body HMAC keyed by the bot token.
func VerifyTelegram(body, header, botToken string) bool {
	return Verify(body, header, botToken)
}

// VerifySlack checks an X-Slack-Signature header against the v0 signing
// scheme: HMAC-SHA256 over "v0:<timestamp>:<body>", header "v0=<hex>".
func VerifySlack(body, header, secret, timestamp string) bool {
	if body == "" || header == "" || timestamp == "" {
		return false
	}
	base := "v0:" + timestamp + ":" + body
	expected := "v0=" + Sign(base, secret)
	return hmac.Equal([]byte(expected), []byte(header))
}

// SecureToken returns n random bytes hex-encoded.
func SecureToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return hex.EncodeToString(buf)
}

// Hash returns the hex SHA-256 of data.
func Hash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// MaskSensitive hides the middle of a credential for logging, keeping
// visible characters at each end.
func MaskSensitive(s string, visible int) string {
	if len(s) <= visible*2 {
		return strings.Repeat("*", len(s))
	}
	return s[:visible] + strings.Repeat("*", len(s)-visible*2) + s[len(s)-visible:]
}
