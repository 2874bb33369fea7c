package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	landSaleConfigPrefix   = []byte("landsale/config/")
	landSaleFlagPrefix     = []byte("landsale/flag/")
	landSalePurchasePrefix = []byte("landsale/purchase/")
	landSaleClaimPrefix    = []byte("landsale/claim/")

	tokenMetaPrefix      = []byte("token/meta/")
	tokenBalancePrefix   = []byte("token/balance/")
	tokenAllowancePrefix = []byte("token/allowance/")

	landRegistryPrefix = []byte("land/registry/")
	landZonePrefix     = []byte("land/zone/")
	landParcelPrefix   = []byte("land/parcel/")
	landCoordPrefix    = []byte("land/coord/")
	landOwnerPrefix    = []byte("land/owner/")

	nftCollectionPrefix = []byte("nft/collection/")
	nftOwnerPrefix      = []byte("nft/owner/")
)

func joinKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	out = append(out, prefix...)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func u64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

// idBytes renders a non-negative id as a fixed 32-byte big-endian word.
func idBytes(id *big.Int) ([]byte, error) {
	if id == nil || id.Sign() < 0 {
		return nil, fmt.Errorf("state: id must be non-negative")
	}
	word, overflow := uint256.FromBig(id)
	if overflow {
		return nil, fmt.Errorf("state: id %s exceeds 256 bits", id)
	}
	b := word.Bytes32()
	return b[:], nil
}

// LandSaleConfigKey locates the configuration of the sale at address.
func LandSaleConfigKey(sale [20]byte) []byte {
	return joinKey(landSaleConfigPrefix, sale[:])
}

// LandSaleZoneFlagKey locates one zone flag of the sale.
func LandSaleZoneFlagKey(sale [20]byte, flag uint8, zone uint64) []byte {
	return joinKey(landSaleFlagPrefix, sale[:], []byte{flag}, u64(zone))
}

// LandSalePurchaseKey locates the last public purchase of buyer.
func LandSalePurchaseKey(sale [20]byte, buyer [20]byte) []byte {
	return joinKey(landSalePurchasePrefix, sale[:], buyer[:])
}

// LandSaleClaimKey locates the claim marker of a whitelist token id.
func LandSaleClaimKey(sale [20]byte, tokenID *big.Int) ([]byte, error) {
	id, err := idBytes(tokenID)
	if err != nil {
		return nil, err
	}
	return joinKey(landSaleClaimPrefix, sale[:], id), nil
}
