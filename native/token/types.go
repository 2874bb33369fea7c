package token

import (
	"errors"
	"math/big"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	errNilState = errors.New("token ledger: state not configured")

	ErrUnknownToken          = errors.New("token: unknown token contract")
	ErrTokenExists           = errors.New("token: contract already registered")
	ErrNotOwner              = errors.New("token: caller is not the token owner")
	ErrInvalidAddress        = errors.New("token: invalid address")
	ErrInvalidAmount         = errors.New("token: amount must be non-negative")
	ErrInvalidMetadata       = errors.New("token: invalid metadata")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
)

// Metadata describes a fungible token contract registered at an address.
type Metadata struct {
	Address     [20]byte `json:"address"`
	Symbol      string   `json:"symbol"`
	Name        string   `json:"name"`
	Decimals    uint8    `json:"decimals"`
	Owner       [20]byte `json:"owner"`
	TotalSupply *big.Int `json:"totalSupply"`
}

// Clone returns a deep copy of the metadata.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	if m.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(m.TotalSupply)
	}
	return &clone
}

func (m *Metadata) normalise() error {
	m.Symbol = strings.ToUpper(strings.TrimSpace(norm.NFKC.String(m.Symbol)))
	m.Name = strings.TrimSpace(norm.NFKC.String(m.Name))
	if m.Symbol == "" {
		return errors.Join(ErrInvalidMetadata, errors.New("symbol required"))
	}
	if m.Name == "" {
		m.Name = m.Symbol
	}
	if m.Decimals > 36 {
		return errors.Join(ErrInvalidMetadata, errors.New("decimals must not exceed 36"))
	}
	if m.TotalSupply == nil {
		m.TotalSupply = big.NewInt(0)
	}
	return nil
}
