package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const (
	apiKeyPrefix       = "vpa_"
	apiKeySecretLength = 36
	displayPrefixLen   = 8
	alphabet           = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateAPIKey returns a new plaintext key and its display prefix. The
// plaintext is handed to the caller exactly once and never stored; only
// its digest is persisted.
func GenerateAPIKey() (plaintext string, displayPrefix string, err error) {
	secret, err := randomString(apiKeySecretLength)
	if err != nil {
		return "", "", err
	}
	plaintext = apiKeyPrefix + secret
	return plaintext, plaintext[:displayPrefixLen], nil
}

// HashAPIKey returns the SHA-256 hex digest of a plaintext key. The digest
// is deterministic so validation can look keys up by it directly.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// LooksLikeAPIKey reports whether a credential has the platform key shape.
// It is a cheap pre-check, not a validation.
func LooksLikeAPIKey(candidate string) bool {
	return strings.HasPrefix(candidate, apiKeyPrefix) &&
		len(candidate) == len(apiKeyPrefix)+apiKeySecretLength
}

func randomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
