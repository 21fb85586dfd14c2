package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// DeviceAttributes are the machine identifiers a client reports when
// deriving its hardware fingerprint.
type DeviceAttributes struct {
	UUID string `json:"uuid"`
	CPU  string `json:"cpu"`
	MAC  string `json:"mac"`
}

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Derive returns the SHA-256 hex digest of the trimmed "uuid-cpu-mac"
// concatenation. Identical attributes always yield the identical digest.
func Derive(attrs DeviceAttributes) string {
	raw := strings.TrimSpace(attrs.UUID) + "-" + strings.TrimSpace(attrs.CPU) + "-" + strings.TrimSpace(attrs.MAC)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// IsValidFormat accepts exactly 64 hex characters, case-insensitive.
func IsValidFormat(hardwareID string) bool {
	return hexPattern.MatchString(Normalize(hardwareID))
}

// Normalize lowercases and trims a hardware identifier.
func Normalize(hardwareID string) string {
	return strings.ToLower(strings.TrimSpace(hardwareID))
}

// Equal compares two fingerprints case-insensitively. Absence never matches:
// if either side is empty the result is false.
func Equal(a, b string) bool {
	a, b = Normalize(a), Normalize(b)
	if a == "" || b == "" {
		return false
	}
	return a == b
}
