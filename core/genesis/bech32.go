package genesis

import (
	"fmt"
	"strings"

	"landsale/crypto"
)

// ParseAccount decodes a bech32 (land1...) or 0x-hex account. Empty values
// are rejected with the field name for context.
func ParseAccount(field, addr string) ([20]byte, error) {
	if strings.TrimSpace(addr) == "" {
		return [20]byte{}, fmt.Errorf("%s: address required", field)
	}
	out, err := crypto.ParseAddress(addr)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	var zero [20]byte
	if out == zero {
		return [20]byte{}, fmt.Errorf("%s: zero address not allowed", field)
	}
	return out, nil
}
