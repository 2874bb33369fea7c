package nft

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

type memState struct {
	collections map[[20]byte]*Collection
	owners      map[string][20]byte
}

func (m *memState) NFTCollectionGet(collection [20]byte) (*Collection, bool, error) {
	record, ok := m.collections[collection]
	if !ok {
		return nil, false, nil
	}
	out := *record
	return &out, true, nil
}

func (m *memState) NFTCollectionPut(c *Collection) error {
	out := *c
	m.collections[c.Address] = &out
	return nil
}

func (m *memState) NFTOwnerGet(collection [20]byte, id *big.Int) ([20]byte, bool, error) {
	owner, ok := m.owners[fmt.Sprintf("%x/%s", collection, id)]
	return owner, ok, nil
}

func (m *memState) NFTOwnerPut(collection [20]byte, id *big.Int, owner [20]byte) error {
	m.owners[fmt.Sprintf("%x/%s", collection, id)] = owner
	return nil
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

var (
	collectionAddr = addr(0xb2)
	ownerAddr      = addr(0x01)
	alice          = addr(0x10)
	bob            = addr(0x11)
)

func newTestCollections(t *testing.T) *Collections {
	t.Helper()
	host := NewCollections()
	host.SetState(&memState{collections: make(map[[20]byte]*Collection), owners: make(map[string][20]byte)})
	_, err := host.Deploy(collectionAddr, "Whitelist Pass", ownerAddr)
	require.NoError(t, err)
	return host
}

func TestMintAndOwnerOf(t *testing.T) {
	host := newTestCollections(t)
	require.ErrorIs(t, host.Mint(collectionAddr, alice, alice, big.NewInt(3)), ErrNotOwner)
	require.NoError(t, host.Mint(collectionAddr, ownerAddr, alice, big.NewInt(3)))
	require.ErrorIs(t, host.Mint(collectionAddr, ownerAddr, bob, big.NewInt(3)), ErrTokenExists)

	owner, err := host.OwnerOf(collectionAddr, big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, alice, owner)

	_, err = host.OwnerOf(collectionAddr, big.NewInt(4))
	require.ErrorIs(t, err, ErrNonexistentToken)
	_, err = host.OwnerOf(collectionAddr, big.NewInt(-1))
	require.ErrorIs(t, err, ErrInvalidTokenID)

	record, err := host.Collection(collectionAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), record.Supply)
}

func TestTransferFrom(t *testing.T) {
	host := newTestCollections(t)
	require.NoError(t, host.Mint(collectionAddr, ownerAddr, alice, big.NewInt(3)))

	require.ErrorIs(t, host.TransferFrom(collectionAddr, bob, alice, bob, big.NewInt(3)), ErrNotTokenOwner)
	require.ErrorIs(t, host.TransferFrom(collectionAddr, alice, bob, alice, big.NewInt(3)), ErrNotTokenOwner)
	require.NoError(t, host.TransferFrom(collectionAddr, alice, alice, bob, big.NewInt(3)))

	owner, err := host.OwnerOf(collectionAddr, big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, bob, owner)
}

func TestHandle(t *testing.T) {
	host := newTestCollections(t)
	_, err := host.Bind(addr(0xee))
	require.ErrorIs(t, err, ErrUnknownCollection)

	require.NoError(t, host.Mint(collectionAddr, ownerAddr, alice, big.NewInt(1)))
	handle, err := host.Bind(collectionAddr)
	require.NoError(t, err)
	owner, err := handle.OwnerOf(big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, alice, owner)
	_, err = handle.OwnerOf(big.NewInt(2))
	require.ErrorIs(t, err, ErrNonexistentToken)
}
