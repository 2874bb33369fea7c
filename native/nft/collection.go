package nft

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"landsale/core/events"
	"landsale/core/types"
)

var (
	errNilState = errors.New("nft collection: state not configured")

	ErrUnknownCollection = errors.New("nft: unknown collection")
	ErrCollectionExists  = errors.New("nft: collection already deployed")
	ErrNotOwner          = errors.New("nft: caller is not the collection owner")
	ErrNotTokenOwner     = errors.New("nft: caller does not own token")
	ErrNonexistentToken  = errors.New("nft: nonexistent token")
	ErrTokenExists       = errors.New("nft: token already minted")
	ErrInvalidAddress    = errors.New("nft: invalid address")
	ErrInvalidTokenID    = errors.New("nft: invalid token id")
)

const EventTypeTransfer = "nft.transfer"

// Collection is the persisted header of a non-fungible token contract.
type Collection struct {
	Address [20]byte `json:"address"`
	Name    string   `json:"name"`
	Owner   [20]byte `json:"owner"`
	Supply  uint64   `json:"supply"`
}

type collectionState interface {
	NFTCollectionGet(collection [20]byte) (*Collection, bool, error)
	NFTCollectionPut(c *Collection) error
	NFTOwnerGet(collection [20]byte, id *big.Int) ([20]byte, bool, error)
	NFTOwnerPut(collection [20]byte, id *big.Int, owner [20]byte) error
}

// Collections hosts every NFT collection registered in state.
type Collections struct {
	state   collectionState
	emitter events.Emitter
}

// NewCollections returns an empty host with a no-op emitter.
func NewCollections() *Collections {
	return &Collections{emitter: events.NoopEmitter{}}
}

func (c *Collections) SetState(state collectionState) { c.state = state }

func (c *Collections) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
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

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func isZero(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func validID(id *big.Int) error {
	if id == nil || id.Sign() < 0 {
		return ErrInvalidTokenID
	}
	return nil
}

func (c *Collections) emitTransfer(collection, from, to [20]byte, id *big.Int) {
	if c.emitter == nil {
		return
	}
	c.emitter.Emit(eventEnvelope{evt: &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"collection": hexAddr(collection),
			"from":       hexAddr(from),
			"to":         hexAddr(to),
			"tokenId":    id.String(),
		},
	}})
}

// Deploy creates a collection at address owned by owner.
func (c *Collections) Deploy(address [20]byte, name string, owner [20]byte) (*Collection, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	if isZero(address) || isZero(owner) {
		return nil, fmt.Errorf("%w: collection and owner required", ErrInvalidAddress)
	}
	if _, ok, err := c.state.NFTCollectionGet(address); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrCollectionExists
	}
	record := &Collection{Address: address, Name: strings.TrimSpace(name), Owner: owner}
	if err := c.state.NFTCollectionPut(record); err != nil {
		return nil, err
	}
	out := *record
	return &out, nil
}

// Collection returns the header of the collection at address.
func (c *Collections) Collection(address [20]byte) (*Collection, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	record, ok, err := c.state.NFTCollectionGet(address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownCollection
	}
	return record, nil
}

// Exists reports whether a collection is deployed at address.
func (c *Collections) Exists(address [20]byte) bool {
	if c == nil || c.state == nil {
		return false
	}
	_, ok, err := c.state.NFTCollectionGet(address)
	return err == nil && ok
}

// Mint creates token id owned by to. Only the collection owner may mint.
func (c *Collections) Mint(address [20]byte, caller [20]byte, to [20]byte, id *big.Int) error {
	if err := validID(id); err != nil {
		return err
	}
	if isZero(to) {
		return fmt.Errorf("%w: recipient", ErrInvalidAddress)
	}
	record, err := c.Collection(address)
	if err != nil {
		return err
	}
	if caller != record.Owner {
		return ErrNotOwner
	}
	if _, ok, err := c.state.NFTOwnerGet(address, id); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrTokenExists, id)
	}
	if err := c.state.NFTOwnerPut(address, id, to); err != nil {
		return err
	}
	record.Supply++
	if err := c.state.NFTCollectionPut(record); err != nil {
		return err
	}
	c.emitTransfer(address, [20]byte{}, to, id)
	return nil
}

// OwnerOf returns the owner of token id or ErrNonexistentToken.
func (c *Collections) OwnerOf(address [20]byte, id *big.Int) ([20]byte, error) {
	if err := validID(id); err != nil {
		return [20]byte{}, err
	}
	if _, err := c.Collection(address); err != nil {
		return [20]byte{}, err
	}
	owner, ok, err := c.state.NFTOwnerGet(address, id)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, fmt.Errorf("%w: %s", ErrNonexistentToken, id)
	}
	return owner, nil
}

// TransferFrom moves token id from from to to. The caller must be the
// current owner.
func (c *Collections) TransferFrom(address [20]byte, caller [20]byte, from [20]byte, to [20]byte, id *big.Int) error {
	if isZero(to) {
		return fmt.Errorf("%w: recipient", ErrInvalidAddress)
	}
	owner, err := c.OwnerOf(address, id)
	if err != nil {
		return err
	}
	if owner != from || caller != owner {
		return fmt.Errorf("%w: %s", ErrNotTokenOwner, id)
	}
	if err := c.state.NFTOwnerPut(address, id, to); err != nil {
		return err
	}
	c.emitTransfer(address, from, to, id)
	return nil
}

// Handle binds the host to one collection address.
type Handle struct {
	host    *Collections
	address [20]byte
}

// Bind returns a handle for the collection or ErrUnknownCollection.
func (c *Collections) Bind(address [20]byte) (*Handle, error) {
	if _, err := c.Collection(address); err != nil {
		return nil, err
	}
	return &Handle{host: c, address: address}, nil
}

// OwnerOf implements the whitelist token boundary used by the sale.
func (h *Handle) OwnerOf(id *big.Int) ([20]byte, error) {
	return h.host.OwnerOf(h.address, id)
}
