package landsale

import (
	"fmt"
	"math/big"
)

func (e *Engine) landRegistry(cfg *Config) (LandRegistry, error) {
	if isZeroAddress(cfg.LandRegistry) {
		return nil, ErrLandRegistryNotSet
	}
	if e.resolver == nil {
		return nil, errNilResolver
	}
	registry, err := e.resolver.LandRegistry(cfg.LandRegistry)
	if err != nil {
		return nil, fmt.Errorf("landsale: resolve land registry: %w", err)
	}
	return registry, nil
}

func (e *Engine) whitelistToken(cfg *Config) (WhitelistToken, error) {
	if isZeroAddress(cfg.WhitelistToken) {
		return nil, ErrWhitelistTokenNotSet
	}
	if e.resolver == nil {
		return nil, errNilResolver
	}
	token, err := e.resolver.WhitelistToken(cfg.WhitelistToken)
	if err != nil {
		return nil, fmt.Errorf("landsale: resolve whitelist token: %w", err)
	}
	return token, nil
}

// MintLand sells a parcel at (zone, x, y) to buyer through the public sale.
// The zone must be open for sale and the buyer outside their cooldown. The
// current price is collected before the registry mint.
func (e *Engine) MintLand(zone uint64, x, y int64, buyer [20]byte) (*MintReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(buyer) {
		return nil, fmt.Errorf("%w: buyer", ErrInvalidAddress)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	enabled, err := e.state.LandSaleZoneFlagGet(e.address, ZoneFlagSale, zone)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, fmt.Errorf("%w: zone %d", ErrZoneSaleDisabled, zone)
	}

	now := e.now()
	receipt := &MintReceipt{
		Kind:     MintKindPublic,
		Zone:     zone,
		X:        x,
		Y:        y,
		Buyer:    buyer,
		Payee:    cfg.Authority,
		Price:    new(big.Int).Set(cfg.Price),
		MintedAt: now,
	}
	err = e.atomically(func() error {
		if err := e.checkAndRecord(cfg, buyer, now); err != nil {
			return err
		}
		return e.settle(cfg, receipt)
	})
	if err != nil {
		return nil, err
	}
	e.emit(ParcelMintedEvent(receipt))
	return receipt, nil
}

// WhitelistMintLand sells a parcel at (zone, x, y) to buyer against a
// whitelist token the buyer currently owns. Each whitelist token id can be
// redeemed once; the public sale cooldown does not apply.
func (e *Engine) WhitelistMintLand(tokenID *big.Int, zone uint64, x, y int64, buyer [20]byte) (*MintReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, ErrInvalidTokenID
	}
	if isZeroAddress(buyer) {
		return nil, fmt.Errorf("%w: buyer", ErrInvalidAddress)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	enabled, err := e.state.LandSaleZoneFlagGet(e.address, ZoneFlagWhitelist, zone)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, fmt.Errorf("%w: zone %d", ErrZoneWhitelistDisabled, zone)
	}
	whitelist, err := e.whitelistToken(cfg)
	if err != nil {
		return nil, err
	}
	owner, err := whitelist.OwnerOf(tokenID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotWhitelistOwner, err)
	}
	if owner != buyer {
		return nil, fmt.Errorf("%w: token %s", ErrNotWhitelistOwner, tokenID)
	}

	receipt := &MintReceipt{
		Kind:             MintKindWhitelist,
		Zone:             zone,
		X:                x,
		Y:                y,
		Buyer:            buyer,
		Payee:            cfg.Authority,
		Price:            new(big.Int).Set(cfg.Price),
		WhitelistTokenID: new(big.Int).Set(tokenID),
		MintedAt:         e.now(),
	}
	err = e.atomically(func() error {
		if err := e.checkAndClaim(tokenID); err != nil {
			return err
		}
		return e.settle(cfg, receipt)
	})
	if err != nil {
		return nil, err
	}
	e.emit(WhitelistClaimedEvent(tokenID, buyer))
	e.emit(ParcelMintedEvent(receipt))
	return receipt, nil
}

// settle collects payment and then mints through the registry, filling in the
// parcel id on success.
func (e *Engine) settle(cfg *Config, receipt *MintReceipt) error {
	registry, err := e.landRegistry(cfg)
	if err != nil {
		return err
	}
	if err := e.collect(cfg, receipt.Buyer, receipt.Price); err != nil {
		return err
	}
	parcelID, err := registry.Mint(e.address, receipt.Buyer, receipt.Zone, receipt.X, receipt.Y)
	if err != nil {
		return err
	}
	receipt.ParcelID = parcelID
	return nil
}

// atomically runs fn and rolls every state write back when it fails. The
// reference collaborators share the engine's state so their writes are
// unwound too.
func (e *Engine) atomically(fn func() error) error {
	snap := e.state.Snapshot()
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	return nil
}
