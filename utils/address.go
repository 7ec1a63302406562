package utils

import (
	"fmt"
	"strings"
)

// NormalizeAddress validates a 0x-prefixed 20-byte hex address and returns
// it lowercased. The registry treats addresses as case-insensitive keys.
func NormalizeAddress(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return "", fmt.Errorf("address must be 0x followed by 40 hex chars, got %q", raw)
	}
	for _, r := range addr[2:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return "", fmt.Errorf("address contains non-hex char %q", r)
		}
	}
	return strings.ToLower(addr), nil
}
