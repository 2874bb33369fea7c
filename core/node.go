package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"landsale/core/events"
	ledgerstate "landsale/core/state"
	"landsale/core/types"
	"landsale/native/land"
	"landsale/native/landsale"
	"landsale/native/nft"
	"landsale/native/token"
	"landsale/observability"
	"landsale/storage"
)

// EventSink receives the events of every committed transition in emission
// order. Events of failed transitions are never delivered.
type EventSink interface {
	ConsumeEvents(evts []*types.Event)
}

// Node is the central controller, wiring all components together. Every
// mutating call runs as one transition: it holds stateMu, writes through the
// shared journaled state and is either committed to the database as a whole
// or discarded.
type Node struct {
	db      storage.Database
	state   *ledgerstate.Manager
	stateMu sync.Mutex

	sale        *landsale.Engine
	tokens      *token.Ledger
	registries  *land.Registries
	collections *nft.Collections

	recorder *events.Recorder
	sinksMu  sync.RWMutex
	sinks    []EventSink

	logger *slog.Logger
	nowFn  func() int64
}

// NewNode opens the state stored in db and wires the sale engine acting as
// saleAddress together with the reference collaborator ledgers.
func NewNode(db storage.Database, saleAddress [20]byte) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	var zero [20]byte
	if saleAddress == zero {
		return nil, fmt.Errorf("core: sale address required")
	}
	manager, err := ledgerstate.NewManager(db)
	if err != nil {
		return nil, err
	}
	if err := ledgerstate.EnsureStateVersion(manager, false); err != nil {
		return nil, err
	}

	n := &Node{
		db:          db,
		state:       manager,
		sale:        landsale.NewEngine(saleAddress),
		tokens:      token.NewLedger(),
		registries:  land.NewRegistries(),
		collections: nft.NewCollections(),
		recorder:    &events.Recorder{},
		logger:      slog.Default(),
		nowFn:       func() int64 { return time.Now().Unix() },
	}

	n.tokens.SetState(manager)
	n.tokens.SetEmitter(n.recorder)
	n.registries.SetState(manager)
	n.registries.SetEmitter(n.recorder)
	n.collections.SetState(manager)
	n.collections.SetEmitter(n.recorder)

	n.sale.SetState(manager)
	n.sale.SetEmitter(n.recorder)
	n.sale.SetResolver(ledgerResolver{node: n})
	n.sale.SetNowFunc(n.now)
	return n, nil
}

// SetLogger replaces the structured logger. Nil restores slog.Default().
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger
}

// SetNowFunc overrides the clock used by the sale engine.
func (n *Node) SetNowFunc(now func() int64) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
}

func (n *Node) now() int64 { return n.nowFn() }

// AddEventSink registers a consumer for committed events.
func (n *Node) AddEventSink(sink EventSink) {
	if sink == nil {
		return
	}
	n.sinksMu.Lock()
	n.sinks = append(n.sinks, sink)
	n.sinksMu.Unlock()
}

// SaleAddress returns the identity the sale engine acts as.
func (n *Node) SaleAddress() [20]byte { return n.sale.Address() }

// transition runs fn under the state lock. Writes and buffered events are
// committed together when fn succeeds and dropped otherwise.
func (n *Node) transition(op string, fn func() error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := fn(); err != nil {
		n.rollback(op)
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.rollback(op)
		n.logger.Error("state commit failed", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("core: commit %s: %w", op, err)
	}
	n.logger.Debug("state committed",
		slog.String("op", op),
		slog.Uint64("height", n.state.Height()),
		slog.String("root", n.state.Root().Hex()))
	n.publish(n.recorder.Drain())
	return nil
}

func (n *Node) rollback(op string) {
	n.recorder.Reset()
	if err := n.state.Discard(); err != nil {
		n.logger.Error("state rollback failed", slog.String("op", op), slog.Any("error", err))
	}
}

// StateRoot returns the committed state root and the number of commits that
// produced it.
func (n *Node) StateRoot() (common.Hash, uint64) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.Root(), n.state.Height()
}

// query runs fn under the state lock so reads never observe a transition in
// flight.
func (n *Node) query(fn func() error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return fn()
}

func (n *Node) publish(evts []*types.Event) {
	if len(evts) == 0 {
		return
	}
	for _, evt := range evts {
		observability.Events().RecordEvent(evt.Type)
	}
	n.sinksMu.RLock()
	sinks := append([]EventSink(nil), n.sinks...)
	n.sinksMu.RUnlock()
	for _, sink := range sinks {
		cloned := make([]*types.Event, len(evts))
		for i, evt := range evts {
			cloned[i] = evt.Clone()
		}
		sink.ConsumeEvents(cloned)
	}
}

// ---- land sale ----

// LandSaleBootstrap creates the sale configuration controlled by authority.
func (n *Node) LandSaleBootstrap(authority [20]byte) (*landsale.Config, error) {
	var cfg *landsale.Config
	err := n.transition("landsale.bootstrap", func() error {
		var err error
		cfg, err = n.sale.Bootstrap(authority)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("land sale bootstrapped", slog.String("authority", hexAddr(authority)))
	return cfg, nil
}

func (n *Node) configure(field string, caller [20]byte, fn func() error) error {
	err := n.transition("landsale.configure", fn)
	if err != nil {
		n.logger.Warn("land sale configuration rejected",
			slog.String("field", field),
			slog.String("caller", hexAddr(caller)),
			slog.String("class", string(landsale.Classify(err))),
			slog.Any("error", err))
		return err
	}
	n.logger.Info("land sale configuration updated", slog.String("field", field))
	return nil
}

// LandSaleSetPrice updates the price per parcel.
func (n *Node) LandSaleSetPrice(caller [20]byte, price *big.Int) error {
	err := n.configure("price", caller, func() error { return n.sale.SetPrice(caller, price) })
	if err == nil {
		observability.LandSale().SetPrice(price)
	}
	return err
}

// LandSaleSetCooldown updates the public sale cooldown.
func (n *Node) LandSaleSetCooldown(caller [20]byte, seconds uint64) error {
	return n.configure("cooldownSeconds", caller, func() error { return n.sale.SetCooldown(caller, seconds) })
}

// LandSaleSetPaymentToken points the sale at a payment token.
func (n *Node) LandSaleSetPaymentToken(caller [20]byte, addr [20]byte) error {
	return n.configure("paymentToken", caller, func() error { return n.sale.SetPaymentToken(caller, addr) })
}

// LandSaleSetLandRegistry points the sale at a land registry.
func (n *Node) LandSaleSetLandRegistry(caller [20]byte, addr [20]byte) error {
	return n.configure("landRegistry", caller, func() error { return n.sale.SetLandRegistry(caller, addr) })
}

// LandSaleSetWhitelistToken points the sale at a whitelist token.
func (n *Node) LandSaleSetWhitelistToken(caller [20]byte, addr [20]byte) error {
	return n.configure("whitelistToken", caller, func() error { return n.sale.SetWhitelistToken(caller, addr) })
}

// LandSaleSetSaleState applies enabled to the public sale flag of every zone.
func (n *Node) LandSaleSetSaleState(caller [20]byte, zones []uint64, enabled bool) error {
	return n.configure("zoneSaleEnabled", caller, func() error { return n.sale.SetSaleState(caller, zones, enabled) })
}

// LandSaleSetWhitelistSaleState applies enabled to the whitelist sale flag of
// every zone.
func (n *Node) LandSaleSetWhitelistSaleState(caller [20]byte, zones []uint64, enabled bool) error {
	return n.configure("zoneWhitelistEnabled", caller, func() error {
		return n.sale.SetWhitelistSaleState(caller, zones, enabled)
	})
}

// LandSaleTransferAuthority hands control of the sale to next.
func (n *Node) LandSaleTransferAuthority(caller [20]byte, next [20]byte) error {
	return n.configure("authority", caller, func() error { return n.sale.TransferAuthority(caller, next) })
}

// LandSaleMintLand runs a public sale mint.
func (n *Node) LandSaleMintLand(zone uint64, x, y int64, buyer [20]byte) (*landsale.MintReceipt, error) {
	var receipt *landsale.MintReceipt
	err := n.transition("landsale.mintLand", func() error {
		var err error
		receipt, err = n.sale.MintLand(zone, x, y, buyer)
		return err
	})
	n.observeMint(landsale.MintKindPublic, buyer, receipt, err)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// LandSaleWhitelistMintLand runs a whitelist mint against tokenID.
func (n *Node) LandSaleWhitelistMintLand(tokenID *big.Int, zone uint64, x, y int64, buyer [20]byte) (*landsale.MintReceipt, error) {
	var receipt *landsale.MintReceipt
	err := n.transition("landsale.whitelistMintLand", func() error {
		var err error
		receipt, err = n.sale.WhitelistMintLand(tokenID, zone, x, y, buyer)
		return err
	})
	n.observeMint(landsale.MintKindWhitelist, buyer, receipt, err)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (n *Node) observeMint(kind landsale.MintKind, buyer [20]byte, receipt *landsale.MintReceipt, err error) {
	if err != nil {
		class := landsale.Classify(err)
		observability.LandSale().RecordFailure(string(kind), string(class))
		level := slog.LevelInfo
		if class == landsale.ClassCollaborator {
			level = slog.LevelWarn
		}
		n.logger.Log(context.Background(), level, "land sale mint rejected",
			slog.String("kind", string(kind)),
			slog.String("buyer", hexAddr(buyer)),
			slog.String("class", string(class)),
			slog.Any("error", err))
		return
	}
	observability.LandSale().RecordMint(string(kind), receipt.Price)
	n.logger.Info("land sale mint committed",
		slog.String("kind", string(kind)),
		slog.String("buyer", hexAddr(buyer)),
		slog.String("parcelId", receipt.ParcelID.String()),
		slog.Uint64("zone", receipt.Zone),
		slog.Int64("x", receipt.X),
		slog.Int64("y", receipt.Y),
		slog.String("price", receipt.Price.String()))
}

// LandSaleConfig returns the sale configuration.
func (n *Node) LandSaleConfig() (*landsale.Config, error) {
	var cfg *landsale.Config
	err := n.query(func() error {
		var err error
		cfg, err = n.sale.Config()
		return err
	})
	return cfg, err
}

// LandSaleZoneSaleEnabled reports the public sale flag of zone.
func (n *Node) LandSaleZoneSaleEnabled(zone uint64) (bool, error) {
	var enabled bool
	err := n.query(func() error {
		var err error
		enabled, err = n.sale.ZoneSaleEnabled(zone)
		return err
	})
	return enabled, err
}

// LandSaleZoneWhitelistEnabled reports the whitelist sale flag of zone.
func (n *Node) LandSaleZoneWhitelistEnabled(zone uint64) (bool, error) {
	var enabled bool
	err := n.query(func() error {
		var err error
		enabled, err = n.sale.ZoneWhitelistEnabled(zone)
		return err
	})
	return enabled, err
}

// LandSaleWhitelistClaimed reports whether tokenID has been redeemed.
func (n *Node) LandSaleWhitelistClaimed(tokenID *big.Int) (bool, error) {
	var claimed bool
	err := n.query(func() error {
		var err error
		claimed, err = n.sale.WhitelistClaimed(tokenID)
		return err
	})
	return claimed, err
}

// LandSaleCooldownStatus reports when buyer may next use the public sale.
func (n *Node) LandSaleCooldownStatus(buyer [20]byte) (*landsale.CooldownStatus, error) {
	var status *landsale.CooldownStatus
	err := n.query(func() error {
		var err error
		status, err = n.sale.CooldownStatus(buyer)
		return err
	})
	return status, err
}

// LandSaleQuote reports price, allowance and cooldown for buyer.
func (n *Node) LandSaleQuote(buyer [20]byte) (*landsale.Quote, error) {
	var quote *landsale.Quote
	err := n.query(func() error {
		var err error
		quote, err = n.sale.Quote(buyer)
		return err
	})
	return quote, err
}

// ---- reference payment token ----

// TokenRegister deploys a token contract.
func (n *Node) TokenRegister(meta *token.Metadata) (*token.Metadata, error) {
	var out *token.Metadata
	err := n.transition("token.register", func() error {
		var err error
		out, err = n.tokens.Register(meta)
		return err
	})
	return out, err
}

// TokenMetadata returns the contract metadata.
func (n *Node) TokenMetadata(contract [20]byte) (*token.Metadata, error) {
	var meta *token.Metadata
	err := n.query(func() error {
		var err error
		meta, err = n.tokens.Metadata(contract)
		return err
	})
	return meta, err
}

// TokenMint credits amount to recipient on behalf of the contract owner.
func (n *Node) TokenMint(contract, caller, to [20]byte, amount *big.Int) error {
	return n.transition("token.mint", func() error { return n.tokens.Mint(contract, caller, to, amount) })
}

// TokenApprove sets the allowance spender may pull from owner.
func (n *Node) TokenApprove(contract, owner, spender [20]byte, amount *big.Int) error {
	return n.transition("token.approve", func() error { return n.tokens.Approve(contract, owner, spender, amount) })
}

// TokenTransfer moves amount from one account to another.
func (n *Node) TokenTransfer(contract, from, to [20]byte, amount *big.Int) error {
	return n.transition("token.transfer", func() error { return n.tokens.Transfer(contract, from, to, amount) })
}

// TokenBalance returns the balance held by owner.
func (n *Node) TokenBalance(contract, owner [20]byte) (*big.Int, error) {
	var balance *big.Int
	err := n.query(func() error {
		var err error
		balance, err = n.tokens.BalanceOf(contract, owner)
		return err
	})
	return balance, err
}

// TokenAllowance returns the allowance spender may still pull from owner.
func (n *Node) TokenAllowance(contract, owner, spender [20]byte) (*big.Int, error) {
	var allowance *big.Int
	err := n.query(func() error {
		var err error
		allowance, err = n.tokens.Allowance(contract, owner, spender)
		return err
	})
	return allowance, err
}

// ---- reference land registry ----

// LandDeploy deploys a land registry administered by admin.
func (n *Node) LandDeploy(address [20]byte, name string, admin [20]byte) (*land.Registry, error) {
	var reg *land.Registry
	err := n.transition("land.deploy", func() error {
		var err error
		reg, err = n.registries.Deploy(address, name, admin)
		return err
	})
	return reg, err
}

// LandNewZone registers a zone in the registry.
func (n *Node) LandNewZone(registry, caller [20]byte, name string) (*land.Zone, error) {
	var zone *land.Zone
	err := n.transition("land.newZone", func() error {
		var err error
		zone, err = n.registries.NewZone(registry, caller, name)
		return err
	})
	return zone, err
}

// LandGrantRole grants role to account.
func (n *Node) LandGrantRole(registry, caller [20]byte, role land.Role, account [20]byte) error {
	return n.transition("land.grantRole", func() error {
		return n.registries.GrantRole(registry, caller, role, account)
	})
}

// LandRevokeRole revokes role from account.
func (n *Node) LandRevokeRole(registry, caller [20]byte, role land.Role, account [20]byte) error {
	return n.transition("land.revokeRole", func() error {
		return n.registries.RevokeRole(registry, caller, role, account)
	})
}

// LandHasRole reports whether account holds role.
func (n *Node) LandHasRole(registry [20]byte, role land.Role, account [20]byte) (bool, error) {
	var ok bool
	err := n.query(func() error {
		var err error
		ok, err = n.registries.HasRole(registry, role, account)
		return err
	})
	return ok, err
}

// LandZone returns a zone of the registry.
func (n *Node) LandZone(registry [20]byte, id uint64) (*land.Zone, error) {
	var zone *land.Zone
	err := n.query(func() error {
		var err error
		zone, err = n.registries.Zone(registry, id)
		return err
	})
	return zone, err
}

// LandParcel returns the parcel with the given id.
func (n *Node) LandParcel(registry [20]byte, id *big.Int) (*land.Parcel, error) {
	var parcel *land.Parcel
	err := n.query(func() error {
		var err error
		parcel, err = n.registries.Parcel(registry, id)
		return err
	})
	return parcel, err
}

// LandParcelAt returns the parcel minted at (zone, x, y).
func (n *Node) LandParcelAt(registry [20]byte, zone uint64, x, y int64) (*land.Parcel, error) {
	var parcel *land.Parcel
	err := n.query(func() error {
		var err error
		parcel, err = n.registries.ParcelAt(registry, zone, x, y)
		return err
	})
	return parcel, err
}

// LandParcelsOf lists the parcels owner holds in registry, oldest first.
func (n *Node) LandParcelsOf(registry [20]byte, owner [20]byte) ([]*land.Parcel, error) {
	var parcels []*land.Parcel
	err := n.query(func() error {
		var err error
		parcels, err = n.registries.ParcelsOf(registry, owner)
		return err
	})
	return parcels, err
}

// ---- reference whitelist collection ----

// NFTDeploy deploys a whitelist collection owned by owner.
func (n *Node) NFTDeploy(address [20]byte, name string, owner [20]byte) (*nft.Collection, error) {
	var col *nft.Collection
	err := n.transition("nft.deploy", func() error {
		var err error
		col, err = n.collections.Deploy(address, name, owner)
		return err
	})
	return col, err
}

// NFTMint mints token id to recipient on behalf of the collection owner.
func (n *Node) NFTMint(collection, caller, to [20]byte, id *big.Int) error {
	return n.transition("nft.mint", func() error { return n.collections.Mint(collection, caller, to, id) })
}

// NFTOwnerOf returns the owner of token id.
func (n *Node) NFTOwnerOf(collection [20]byte, id *big.Int) ([20]byte, error) {
	var owner [20]byte
	err := n.query(func() error {
		var err error
		owner, err = n.collections.OwnerOf(collection, id)
		return err
	})
	return owner, err
}

// NFTTransfer moves token id from one account to another.
func (n *Node) NFTTransfer(collection, caller, from, to [20]byte, id *big.Int) error {
	return n.transition("nft.transfer", func() error {
		return n.collections.TransferFrom(collection, caller, from, to, id)
	})
}

// ErrGenesisMismatch is returned when a genesis spec names a different sale
// identity than the node was opened with.
var ErrGenesisMismatch = errors.New("core: genesis sale address does not match node")
