package state

import (
	"math/big"

	"landsale/native/token"
)

type storedTokenMeta struct {
	Address     [20]byte
	Symbol      string
	Name        string
	Decimals    uint8
	Owner       [20]byte
	TotalSupply *big.Int
}

func tokenMetaKey(contract [20]byte) []byte {
	return joinKey(tokenMetaPrefix, contract[:])
}

func tokenBalanceKey(contract [20]byte, owner [20]byte) []byte {
	return joinKey(tokenBalancePrefix, contract[:], owner[:])
}

func tokenAllowanceKey(contract [20]byte, owner [20]byte, spender [20]byte) []byte {
	return joinKey(tokenAllowancePrefix, contract[:], owner[:], spender[:])
}

// TokenMetadataGet loads the metadata of the token contract at address.
func (m *Manager) TokenMetadataGet(contract [20]byte) (*token.Metadata, bool, error) {
	var stored storedTokenMeta
	ok, err := m.KVGet(tokenMetaKey(contract), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	meta := &token.Metadata{
		Address:     stored.Address,
		Symbol:      stored.Symbol,
		Name:        stored.Name,
		Decimals:    stored.Decimals,
		Owner:       stored.Owner,
		TotalSupply: stored.TotalSupply,
	}
	if meta.TotalSupply == nil {
		meta.TotalSupply = big.NewInt(0)
	}
	return meta, true, nil
}

// TokenMetadataPut stores token contract metadata.
func (m *Manager) TokenMetadataPut(meta *token.Metadata) error {
	supply := meta.TotalSupply
	if supply == nil {
		supply = big.NewInt(0)
	}
	return m.KVPut(tokenMetaKey(meta.Address), storedTokenMeta{
		Address:     meta.Address,
		Symbol:      meta.Symbol,
		Name:        meta.Name,
		Decimals:    meta.Decimals,
		Owner:       meta.Owner,
		TotalSupply: supply,
	})
}

func (m *Manager) bigGet(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) bigPut(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, amount)
}

// TokenBalanceGet returns the balance of owner. Missing balances read as zero.
func (m *Manager) TokenBalanceGet(contract [20]byte, owner [20]byte) (*big.Int, error) {
	return m.bigGet(tokenBalanceKey(contract, owner))
}

// TokenBalancePut stores the balance of owner.
func (m *Manager) TokenBalancePut(contract [20]byte, owner [20]byte, amount *big.Int) error {
	return m.bigPut(tokenBalanceKey(contract, owner), amount)
}

// TokenAllowanceGet returns the allowance owner granted spender.
func (m *Manager) TokenAllowanceGet(contract [20]byte, owner [20]byte, spender [20]byte) (*big.Int, error) {
	return m.bigGet(tokenAllowanceKey(contract, owner, spender))
}

// TokenAllowancePut stores the allowance owner granted spender.
func (m *Manager) TokenAllowancePut(contract [20]byte, owner [20]byte, spender [20]byte, amount *big.Int) error {
	return m.bigPut(tokenAllowanceKey(contract, owner, spender), amount)
}
