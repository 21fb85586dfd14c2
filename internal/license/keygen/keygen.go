package keygen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Prefix is the product tag carried by every license key.
const Prefix = "GLOW"

const segments = 4

var keyPattern = regexp.MustCompile(`^` + Prefix + `-[0-9A-F]{4}(-[0-9A-F]{4}){3}$`)

// Generate produces a key of the form GLOW-XXXX-XXXX-XXXX-XXXX where each
// segment is two bytes of cryptographically secure randomness in uppercase
// hex. 64 bits of entropy makes collisions negligible, but the license store
// still enforces uniqueness and callers regenerate on a duplicate-key error.
func Generate() (string, error) {
	buf := make([]byte, 2*segments)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	parts := make([]string, 0, segments+1)
	parts = append(parts, Prefix)
	for i := 0; i < segments; i++ {
		parts = append(parts, strings.ToUpper(hex.EncodeToString(buf[2*i:2*i+2])))
	}
	return strings.Join(parts, "-"), nil
}

// IsValidFormat checks the surface format of a key before any store lookup.
func IsValidFormat(key string) bool {
	return keyPattern.MatchString(key)
}

// Checksum returns the first 16 hex characters of
// SHA-256(licenseKey + ":" + hardwareID), a tamper-evident pairing token
// clients may cache as an offline-verifiable credential.
func Checksum(licenseKey, hardwareID string) string {
	sum := sha256.Sum256([]byte(licenseKey + ":" + hardwareID))
	return hex.EncodeToString(sum[:])[:16]
}
