package license

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"
)

// KeyPattern matches the XXXX-XXXX-XXXX-XXXX hex key format
var KeyPattern = regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`)

// GenerateKey produces a new license key from four random 16-bit groups
func GenerateKey() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate license key: %w", err)
	}

	return fmt.Sprintf("%04X-%04X-%04X-%04X",
		binary.BigEndian.Uint16(buf[0:2]),
		binary.BigEndian.Uint16(buf[2:4]),
		binary.BigEndian.Uint16(buf[4:6]),
		binary.BigEndian.Uint16(buf[6:8]),
	), nil
}

// NormalizeKey uppercases and trims a client-supplied key
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
