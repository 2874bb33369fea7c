package state

import (
	"encoding/hex"
	"math/big"

	"landsale/native/land"
)

type storedRegistry struct {
	Address   [20]byte
	Name      string
	Admin     [20]byte
	ZoneCount uint64
	ParcelSeq *big.Int
}

type storedZone struct {
	ID   uint64
	Name string
}

// Coordinates are signed; RLP only carries unsigned integers so they are
// stored as their two's complement bit pattern.
type storedParcel struct {
	ID       *big.Int
	Zone     uint64
	X        uint64
	Y        uint64
	Owner    [20]byte
	MintedBy [20]byte
}

func landRegistryKey(registry [20]byte) []byte {
	return joinKey(landRegistryPrefix, registry[:])
}

func landZoneKey(registry [20]byte, id uint64) []byte {
	return joinKey(landZonePrefix, registry[:], u64(id))
}

func landParcelKey(registry [20]byte, id *big.Int) ([]byte, error) {
	raw, err := idBytes(id)
	if err != nil {
		return nil, err
	}
	return joinKey(landParcelPrefix, registry[:], raw), nil
}

func landCoordKey(registry [20]byte, zone uint64, x, y int64) []byte {
	return joinKey(landCoordPrefix, registry[:], u64(zone), u64(uint64(x)), u64(uint64(y)))
}

func landOwnerKey(registry [20]byte, owner [20]byte) []byte {
	return joinKey(landOwnerPrefix, registry[:], owner[:])
}

func landRoleName(registry [20]byte, role land.Role) string {
	return "land:" + hex.EncodeToString(registry[:]) + ":" + hex.EncodeToString(role[:])
}

// LandRegistryGet loads the header of the registry at address.
func (m *Manager) LandRegistryGet(registry [20]byte) (*land.Registry, bool, error) {
	var stored storedRegistry
	ok, err := m.KVGet(landRegistryKey(registry), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	seq := stored.ParcelSeq
	if seq == nil {
		seq = big.NewInt(0)
	}
	return &land.Registry{
		Address:   stored.Address,
		Name:      stored.Name,
		Admin:     stored.Admin,
		ZoneCount: stored.ZoneCount,
		ParcelSeq: seq,
	}, true, nil
}

// LandRegistryPut stores a registry header.
func (m *Manager) LandRegistryPut(reg *land.Registry) error {
	seq := reg.ParcelSeq
	if seq == nil {
		seq = big.NewInt(0)
	}
	return m.KVPut(landRegistryKey(reg.Address), storedRegistry{
		Address:   reg.Address,
		Name:      reg.Name,
		Admin:     reg.Admin,
		ZoneCount: reg.ZoneCount,
		ParcelSeq: seq,
	})
}

// LandZoneGet loads a zone.
func (m *Manager) LandZoneGet(registry [20]byte, id uint64) (*land.Zone, bool, error) {
	var stored storedZone
	ok, err := m.KVGet(landZoneKey(registry, id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &land.Zone{ID: stored.ID, Name: stored.Name}, true, nil
}

// LandZonePut stores a zone.
func (m *Manager) LandZonePut(registry [20]byte, zone *land.Zone) error {
	return m.KVPut(landZoneKey(registry, zone.ID), storedZone{ID: zone.ID, Name: zone.Name})
}

// LandParcelGet loads a parcel by id.
func (m *Manager) LandParcelGet(registry [20]byte, id *big.Int) (*land.Parcel, bool, error) {
	key, err := landParcelKey(registry, id)
	if err != nil {
		return nil, false, err
	}
	var stored storedParcel
	ok, err := m.KVGet(key, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &land.Parcel{
		ID:       stored.ID,
		Zone:     stored.Zone,
		X:        int64(stored.X),
		Y:        int64(stored.Y),
		Owner:    stored.Owner,
		MintedBy: stored.MintedBy,
	}, true, nil
}

// LandParcelPut stores a parcel and indexes its coordinates and owner.
func (m *Manager) LandParcelPut(registry [20]byte, parcel *land.Parcel) error {
	key, err := landParcelKey(registry, parcel.ID)
	if err != nil {
		return err
	}
	stored := storedParcel{
		ID:       parcel.ID,
		Zone:     parcel.Zone,
		X:        uint64(parcel.X),
		Y:        uint64(parcel.Y),
		Owner:    parcel.Owner,
		MintedBy: parcel.MintedBy,
	}
	if err := m.KVPut(key, stored); err != nil {
		return err
	}
	if err := m.KVPut(landCoordKey(registry, parcel.Zone, parcel.X, parcel.Y), parcel.ID); err != nil {
		return err
	}
	raw, err := idBytes(parcel.ID)
	if err != nil {
		return err
	}
	return m.KVAppend(landOwnerKey(registry, parcel.Owner), raw)
}

// LandParcelsOf lists the ids of parcels minted to owner in mint order.
func (m *Manager) LandParcelsOf(registry [20]byte, owner [20]byte) ([]*big.Int, error) {
	var raw [][]byte
	if err := m.KVGetList(landOwnerKey(registry, owner), &raw); err != nil {
		return nil, err
	}
	ids := make([]*big.Int, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, new(big.Int).SetBytes(id))
	}
	return ids, nil
}

// LandParcelAt returns the id of the parcel minted at (zone, x, y).
func (m *Manager) LandParcelAt(registry [20]byte, zone uint64, x, y int64) (*big.Int, bool, error) {
	id := new(big.Int)
	ok, err := m.KVGet(landCoordKey(registry, zone, x, y), id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return id, true, nil
}

// LandRoleHas reports whether account holds role on the registry.
func (m *Manager) LandRoleHas(registry [20]byte, role land.Role, account [20]byte) (bool, error) {
	return m.HasRole(landRoleName(registry, role), account[:]), nil
}

// LandRoleSet grants or revokes role for account on the registry.
func (m *Manager) LandRoleSet(registry [20]byte, role land.Role, account [20]byte, granted bool) error {
	name := landRoleName(registry, role)
	if granted {
		return m.SetRole(name, account[:])
	}
	return m.RemoveRole(name, account[:])
}

// LandRoleMembers lists every account holding role on the registry.
func (m *Manager) LandRoleMembers(registry [20]byte, role land.Role) ([][20]byte, error) {
	members, err := m.RoleMembers(landRoleName(registry, role))
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(members))
	for _, member := range members {
		var addr [20]byte
		copy(addr[:], member)
		out = append(out, addr)
	}
	return out, nil
}
