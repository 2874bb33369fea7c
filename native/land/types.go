package land

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	errNilState = errors.New("land registry: state not configured")

	ErrUnknownRegistry = errors.New("land: unknown registry")
	ErrRegistryExists  = errors.New("land: registry already deployed")
	ErrNotAdmin        = errors.New("land: caller is not the registry admin")
	ErrMissingRole     = errors.New("land: caller is missing role")
	ErrInvalidAddress  = errors.New("land: invalid address")
	ErrUnknownZone     = errors.New("land: unknown zone")
	ErrParcelOccupied  = errors.New("land: coordinates already minted")
	ErrUnknownParcel   = errors.New("land: unknown parcel")
	ErrInvalidZoneName = errors.New("land: zone name required")
)

// MinterRole is keccak256("MINTER_ROLE"). Holders may mint parcels.
var MinterRole = Role(ethcrypto.Keccak256Hash([]byte("MINTER_ROLE")))

// Role identifies a capability granted by the registry admin.
type Role [32]byte

// RoleFromName hashes a role name the same way MinterRole is derived.
func RoleFromName(name string) Role {
	return Role(ethcrypto.Keccak256Hash([]byte(name)))
}

// ParseRole accepts either a 0x-prefixed 32-byte hex role or a role name such
// as "MINTER_ROLE".
func ParseRole(value string) (Role, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Role{}, errors.New("land: role required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		raw, err := hex.DecodeString(trimmed[2:])
		if err != nil || len(raw) != 32 {
			return Role{}, errors.New("land: role must be 32 bytes of hex")
		}
		var role Role
		copy(role[:], raw)
		return role, nil
	}
	return RoleFromName(trimmed), nil
}

// Hex renders the role as 0x-prefixed hex.
func (r Role) Hex() string { return "0x" + hex.EncodeToString(r[:]) }

// Registry is the persisted header of a land registry contract.
type Registry struct {
	Address   [20]byte `json:"address"`
	Name      string   `json:"name"`
	Admin     [20]byte `json:"admin"`
	ZoneCount uint64   `json:"zoneCount"`
	ParcelSeq *big.Int `json:"parcelSeq"`
}

// Clone returns a deep copy of the registry header.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	clone := *r
	if r.ParcelSeq != nil {
		clone.ParcelSeq = new(big.Int).Set(r.ParcelSeq)
	}
	return &clone
}

// Zone is a named area parcels are minted into.
type Zone struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// Parcel is a minted plot of land.
type Parcel struct {
	ID       *big.Int `json:"id"`
	Zone     uint64   `json:"zone"`
	X        int64    `json:"x"`
	Y        int64    `json:"y"`
	Owner    [20]byte `json:"owner"`
	MintedBy [20]byte `json:"mintedBy"`
}

// Clone returns a deep copy of the parcel.
func (p *Parcel) Clone() *Parcel {
	if p == nil {
		return nil
	}
	clone := *p
	if p.ID != nil {
		clone.ID = new(big.Int).Set(p.ID)
	}
	return &clone
}
