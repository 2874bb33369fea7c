package land

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"landsale/core/events"
	"landsale/core/types"
)

const (
	EventTypeZoneCreated  = "land.zone.created"
	EventTypeRoleGranted  = "land.role.granted"
	EventTypeRoleRevoked  = "land.role.revoked"
	EventTypeParcelMinted = "land.parcel.minted"
)

type registryState interface {
	LandRegistryGet(registry [20]byte) (*Registry, bool, error)
	LandRegistryPut(reg *Registry) error
	LandZoneGet(registry [20]byte, id uint64) (*Zone, bool, error)
	LandZonePut(registry [20]byte, zone *Zone) error
	LandParcelGet(registry [20]byte, id *big.Int) (*Parcel, bool, error)
	LandParcelPut(registry [20]byte, parcel *Parcel) error
	LandParcelAt(registry [20]byte, zone uint64, x, y int64) (*big.Int, bool, error)
	LandParcelsOf(registry [20]byte, owner [20]byte) ([]*big.Int, error)
	LandRoleHas(registry [20]byte, role Role, account [20]byte) (bool, error)
	LandRoleSet(registry [20]byte, role Role, account [20]byte, granted bool) error
}

// Registries hosts every land registry contract registered in state.
type Registries struct {
	state   registryState
	emitter events.Emitter
}

// NewRegistries returns an empty registry host with a no-op emitter.
func NewRegistries() *Registries {
	return &Registries{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend.
func (r *Registries) SetState(state registryState) { r.state = state }

// SetEmitter configures the event emitter.
func (r *Registries) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

func (r *Registries) emit(evtType string, attrs map[string]string) {
	if r == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(eventEnvelope{evt: &types.Event{Type: evtType, Attributes: attrs}})
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// canonicalName folds compatibility forms so visually identical names compare
// equal.
func canonicalName(name string) string {
	return strings.TrimSpace(norm.NFKC.String(name))
}

func isZero(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

// Deploy creates a registry at address administered by admin.
func (r *Registries) Deploy(address [20]byte, name string, admin [20]byte) (*Registry, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if isZero(address) || isZero(admin) {
		return nil, fmt.Errorf("%w: registry and admin required", ErrInvalidAddress)
	}
	if _, ok, err := r.state.LandRegistryGet(address); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrRegistryExists
	}
	reg := &Registry{Address: address, Name: canonicalName(name), Admin: admin, ParcelSeq: big.NewInt(0)}
	if err := r.state.LandRegistryPut(reg); err != nil {
		return nil, err
	}
	return reg.Clone(), nil
}

// Registry returns the header of the registry at address.
func (r *Registries) Registry(address [20]byte) (*Registry, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	reg, ok, err := r.state.LandRegistryGet(address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownRegistry
	}
	if reg.ParcelSeq == nil {
		reg.ParcelSeq = big.NewInt(0)
	}
	return reg, nil
}

// Exists reports whether a registry is deployed at address.
func (r *Registries) Exists(address [20]byte) bool {
	if r == nil || r.state == nil {
		return false
	}
	_, ok, err := r.state.LandRegistryGet(address)
	return err == nil && ok
}

func (r *Registries) requireAdmin(address [20]byte, caller [20]byte) (*Registry, error) {
	reg, err := r.Registry(address)
	if err != nil {
		return nil, err
	}
	if caller != reg.Admin {
		return nil, ErrNotAdmin
	}
	return reg, nil
}

// NewZone registers a zone and returns its id. Ids start at 1.
func (r *Registries) NewZone(address [20]byte, caller [20]byte, name string) (*Zone, error) {
	reg, err := r.requireAdmin(address, caller)
	if err != nil {
		return nil, err
	}
	name = canonicalName(name)
	if name == "" {
		return nil, ErrInvalidZoneName
	}
	reg.ZoneCount++
	zone := &Zone{ID: reg.ZoneCount, Name: name}
	if err := r.state.LandZonePut(address, zone); err != nil {
		return nil, err
	}
	if err := r.state.LandRegistryPut(reg); err != nil {
		return nil, err
	}
	r.emit(EventTypeZoneCreated, map[string]string{
		"registry": hexAddr(address),
		"zone":     strconv.FormatUint(zone.ID, 10),
		"name":     zone.Name,
	})
	return zone, nil
}

// Zone returns the zone with the given id.
func (r *Registries) Zone(address [20]byte, id uint64) (*Zone, error) {
	if _, err := r.Registry(address); err != nil {
		return nil, err
	}
	zone, ok, err := r.state.LandZoneGet(address, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownZone, id)
	}
	return zone, nil
}

// GrantRole gives account the role. Granting an existing role is a no-op.
func (r *Registries) GrantRole(address [20]byte, caller [20]byte, role Role, account [20]byte) error {
	return r.setRole(address, caller, role, account, true)
}

// RevokeRole removes the role from account.
func (r *Registries) RevokeRole(address [20]byte, caller [20]byte, role Role, account [20]byte) error {
	return r.setRole(address, caller, role, account, false)
}

func (r *Registries) setRole(address [20]byte, caller [20]byte, role Role, account [20]byte, granted bool) error {
	if _, err := r.requireAdmin(address, caller); err != nil {
		return err
	}
	if isZero(account) {
		return fmt.Errorf("%w: account", ErrInvalidAddress)
	}
	if err := r.state.LandRoleSet(address, role, account, granted); err != nil {
		return err
	}
	evtType := EventTypeRoleGranted
	if !granted {
		evtType = EventTypeRoleRevoked
	}
	r.emit(evtType, map[string]string{
		"registry": hexAddr(address),
		"role":     role.Hex(),
		"account":  hexAddr(account),
	})
	return nil
}

// HasRole reports whether account holds role.
func (r *Registries) HasRole(address [20]byte, role Role, account [20]byte) (bool, error) {
	if _, err := r.Registry(address); err != nil {
		return false, err
	}
	return r.state.LandRoleHas(address, role, account)
}

// Mint creates a parcel at (zone, x, y) owned by owner. The caller must hold
// MinterRole, the zone must exist and the coordinates must be free.
func (r *Registries) Mint(address [20]byte, caller [20]byte, owner [20]byte, zone uint64, x, y int64) (*Parcel, error) {
	reg, err := r.Registry(address)
	if err != nil {
		return nil, err
	}
	allowed, err := r.state.LandRoleHas(address, MinterRole, caller)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s lacks MINTER_ROLE", ErrMissingRole, hexAddr(caller))
	}
	if isZero(owner) {
		return nil, fmt.Errorf("%w: owner", ErrInvalidAddress)
	}
	if _, ok, err := r.state.LandZoneGet(address, zone); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownZone, zone)
	}
	if _, taken, err := r.state.LandParcelAt(address, zone, x, y); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("%w: zone %d (%d,%d)", ErrParcelOccupied, zone, x, y)
	}
	reg.ParcelSeq = new(big.Int).Add(reg.ParcelSeq, big.NewInt(1))
	parcel := &Parcel{ID: new(big.Int).Set(reg.ParcelSeq), Zone: zone, X: x, Y: y, Owner: owner, MintedBy: caller}
	if err := r.state.LandParcelPut(address, parcel); err != nil {
		return nil, err
	}
	if err := r.state.LandRegistryPut(reg); err != nil {
		return nil, err
	}
	r.emit(EventTypeParcelMinted, map[string]string{
		"registry": hexAddr(address),
		"parcelId": parcel.ID.String(),
		"zone":     strconv.FormatUint(zone, 10),
		"x":        strconv.FormatInt(x, 10),
		"y":        strconv.FormatInt(y, 10),
		"owner":    hexAddr(owner),
	})
	return parcel.Clone(), nil
}

// Parcel returns the parcel with the given id.
func (r *Registries) Parcel(address [20]byte, id *big.Int) (*Parcel, error) {
	if _, err := r.Registry(address); err != nil {
		return nil, err
	}
	if id == nil || id.Sign() <= 0 {
		return nil, ErrUnknownParcel
	}
	parcel, ok, err := r.state.LandParcelGet(address, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParcel, id)
	}
	return parcel, nil
}

// ParcelAt returns the parcel minted at (zone, x, y).
func (r *Registries) ParcelAt(address [20]byte, zone uint64, x, y int64) (*Parcel, error) {
	if _, err := r.Registry(address); err != nil {
		return nil, err
	}
	id, ok, err := r.state.LandParcelAt(address, zone, x, y)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: zone %d (%d,%d)", ErrUnknownParcel, zone, x, y)
	}
	return r.Parcel(address, id)
}

// OwnerOf returns the owner of parcel id.
func (r *Registries) OwnerOf(address [20]byte, id *big.Int) ([20]byte, error) {
	parcel, err := r.Parcel(address, id)
	if err != nil {
		return [20]byte{}, err
	}
	return parcel.Owner, nil
}

// ParcelsOf returns every parcel minted to owner, oldest first.
func (r *Registries) ParcelsOf(address [20]byte, owner [20]byte) ([]*Parcel, error) {
	if _, err := r.Registry(address); err != nil {
		return nil, err
	}
	ids, err := r.state.LandParcelsOf(address, owner)
	if err != nil {
		return nil, err
	}
	parcels := make([]*Parcel, 0, len(ids))
	for _, id := range ids {
		parcel, err := r.Parcel(address, id)
		if err != nil {
			return nil, err
		}
		parcels = append(parcels, parcel)
	}
	return parcels, nil
}

// Handle binds the host to one registry address.
type Handle struct {
	host    *Registries
	address [20]byte
}

// Bind returns a handle for the registry or ErrUnknownRegistry.
func (r *Registries) Bind(address [20]byte) (*Handle, error) {
	if _, err := r.Registry(address); err != nil {
		return nil, err
	}
	return &Handle{host: r, address: address}, nil
}

// Mint implements the land registry boundary used by the sale.
func (h *Handle) Mint(caller [20]byte, owner [20]byte, zone uint64, x, y int64) (*big.Int, error) {
	parcel, err := h.host.Mint(h.address, caller, owner, zone, x, y)
	if err != nil {
		return nil, err
	}
	return parcel.ID, nil
}
