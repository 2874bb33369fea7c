package state

import (
	"math/big"

	"landsale/native/nft"
)

type storedCollection struct {
	Address [20]byte
	Name    string
	Owner   [20]byte
	Supply  uint64
}

func nftCollectionKey(collection [20]byte) []byte {
	return joinKey(nftCollectionPrefix, collection[:])
}

func nftOwnerKey(collection [20]byte, id *big.Int) ([]byte, error) {
	raw, err := idBytes(id)
	if err != nil {
		return nil, err
	}
	return joinKey(nftOwnerPrefix, collection[:], raw), nil
}

// NFTCollectionGet loads the header of the collection at address.
func (m *Manager) NFTCollectionGet(collection [20]byte) (*nft.Collection, bool, error) {
	var stored storedCollection
	ok, err := m.KVGet(nftCollectionKey(collection), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &nft.Collection{Address: stored.Address, Name: stored.Name, Owner: stored.Owner, Supply: stored.Supply}, true, nil
}

// NFTCollectionPut stores a collection header.
func (m *Manager) NFTCollectionPut(c *nft.Collection) error {
	return m.KVPut(nftCollectionKey(c.Address), storedCollection{
		Address: c.Address,
		Name:    c.Name,
		Owner:   c.Owner,
		Supply:  c.Supply,
	})
}

// NFTOwnerGet returns the owner of token id.
func (m *Manager) NFTOwnerGet(collection [20]byte, id *big.Int) ([20]byte, bool, error) {
	key, err := nftOwnerKey(collection, id)
	if err != nil {
		return [20]byte{}, false, err
	}
	var owner [20]byte
	ok, err := m.KVGet(key, &owner)
	if err != nil || !ok {
		return [20]byte{}, ok, err
	}
	return owner, true, nil
}

// NFTOwnerPut records the owner of token id.
func (m *Manager) NFTOwnerPut(collection [20]byte, id *big.Int, owner [20]byte) error {
	key, err := nftOwnerKey(collection, id)
	if err != nil {
		return err
	}
	return m.KVPut(key, owner)
}
