package core

import (
	"encoding/hex"

	"landsale/native/landsale"
)

// ledgerResolver binds collaborator addresses configured on the sale to the
// native ledgers hosted by the node. Binding fails for addresses with no
// deployed contract so a misconfigured sale surfaces the ledger's error.
type ledgerResolver struct {
	node *Node
}

func (r ledgerResolver) PaymentToken(addr [20]byte) (landsale.PaymentToken, error) {
	handle, err := r.node.tokens.Bind(addr)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (r ledgerResolver) LandRegistry(addr [20]byte) (landsale.LandRegistry, error) {
	handle, err := r.node.registries.Bind(addr)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (r ledgerResolver) WhitelistToken(addr [20]byte) (landsale.WhitelistToken, error) {
	handle, err := r.node.collections.Bind(addr)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
