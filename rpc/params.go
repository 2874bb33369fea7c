package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"landsale/crypto"
)

func hasParams(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func decodeParams(raw json.RawMessage, out interface{}) error {
	if !hasParams(raw) {
		return invalidParams("params object required")
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] != '{' {
		return invalidParams("params must be an object")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams(fmt.Sprintf("invalid params: %v", err))
	}
	return nil
}

func parseAddress(field, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return addr, invalidParams(fmt.Sprintf("%s: %v", field, err))
	}
	return addr, nil
}

// parseUint256 accepts a decimal or 0x-prefixed hex string no wider than 256
// bits.
func parseUint256(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, invalidParams(field + " required")
	}
	var (
		word *uint256.Int
		err  error
	)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		word, err = uint256.FromHex(trimmed)
	} else {
		word, err = uint256.FromDecimal(trimmed)
	}
	if err != nil {
		return nil, invalidParams(fmt.Sprintf("%s: %v", field, err))
	}
	return word.ToBig(), nil
}

func formatAddress(addr [20]byte) string {
	return crypto.FromArray(addr).String()
}

func formatAmount(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
