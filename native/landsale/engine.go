package landsale

import (
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"landsale/core/events"
	"landsale/core/types"
)

type engineState interface {
	LandSaleConfigGet(sale [20]byte) (*Config, bool, error)
	LandSaleConfigPut(sale [20]byte, cfg *Config) error
	LandSaleZoneFlagGet(sale [20]byte, flag ZoneFlag, zone uint64) (bool, error)
	LandSaleZoneFlagPut(sale [20]byte, flag ZoneFlag, zone uint64, enabled bool) error
	LandSaleLastPurchaseGet(sale [20]byte, buyer [20]byte) (int64, bool, error)
	LandSaleLastPurchasePut(sale [20]byte, buyer [20]byte, ts int64) error
	LandSaleClaimGet(sale [20]byte, tokenID *big.Int) (bool, error)
	LandSaleClaimPut(sale [20]byte, tokenID *big.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// Engine is the land sale. It owns the sale configuration, the cooldown and
// whitelist claim trackers, and orchestrates payment and registry minting.
//
// Every mutating call holds the engine lock from its first check until the
// registry call returns, and unwinds all state written during the call when
// any step fails.
type Engine struct {
	mu       sync.RWMutex
	address  [20]byte
	state    engineState
	resolver Resolver
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine constructs a sale engine acting as the given identity. The
// identity is the spender on the payment token and the caller presented to the
// land registry.
func NewEngine(address [20]byte) *Engine {
	return &Engine{
		address: address,
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetResolver configures how collaborator addresses are bound to handles.
func (e *Engine) SetResolver(resolver Resolver) { e.resolver = resolver }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Address returns the identity the sale acts as.
func (e *Engine) Address() [20]byte { return e.address }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

// Bootstrap creates the sale configuration with its safe defaults: every zone
// disabled, price and cooldown zero, no collaborators. It fails when the sale
// already exists.
func (e *Engine) Bootstrap(authority [20]byte) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if isZeroAddress(authority) {
		return nil, fmt.Errorf("%w: authority", ErrInvalidAddress)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok, err := e.state.LandSaleConfigGet(e.address); err != nil {
		return nil, err
	} else if ok {
		return nil, errBootstrap
	}
	cfg := &Config{Authority: authority, Price: big.NewInt(0)}
	if err := e.state.LandSaleConfigPut(e.address, cfg); err != nil {
		return nil, err
	}
	e.emit(ConfigUpdatedEvent("authority", hexAddr(authority)))
	return cfg.Clone(), nil
}

// Bootstrapped reports whether the sale configuration exists.
func (e *Engine) Bootstrapped() (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok, err := e.state.LandSaleConfigGet(e.address)
	return ok, err
}

func (e *Engine) loadConfig() (*Config, error) {
	cfg, ok, err := e.state.LandSaleConfigGet(e.address)
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil {
		return nil, errNotReady
	}
	if cfg.Price == nil {
		cfg.Price = big.NewInt(0)
	}
	return cfg, nil
}

// --- queries ---

// Config returns a snapshot of the sale configuration.
func (e *Engine) Config() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Authority returns the controlling authority.
func (e *Engine) Authority() ([20]byte, error) {
	cfg, err := e.Config()
	if err != nil {
		return [20]byte{}, err
	}
	return cfg.Authority, nil
}

// Price returns the current price per parcel.
func (e *Engine) Price() (*big.Int, error) {
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	return cfg.Price, nil
}

// Cooldown returns the public sale cooldown in seconds.
func (e *Engine) Cooldown() (uint64, error) {
	cfg, err := e.Config()
	if err != nil {
		return 0, err
	}
	return cfg.CooldownSeconds, nil
}

// Collaborators returns the configured collaborator addresses.
func (e *Engine) Collaborators() (Collaborators, error) {
	cfg, err := e.Config()
	if err != nil {
		return Collaborators{}, err
	}
	return Collaborators{
		PaymentToken:   cfg.PaymentToken,
		LandRegistry:   cfg.LandRegistry,
		WhitelistToken: cfg.WhitelistToken,
	}, nil
}

// ZoneSaleEnabled reports the public sale flag for a zone.
func (e *Engine) ZoneSaleEnabled(zone uint64) (bool, error) {
	return e.zoneFlag(ZoneFlagSale, zone)
}

// ZoneWhitelistEnabled reports the whitelist sale flag for a zone.
func (e *Engine) ZoneWhitelistEnabled(zone uint64) (bool, error) {
	return e.zoneFlag(ZoneFlagWhitelist, zone)
}

func (e *Engine) zoneFlag(flag ZoneFlag, zone uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.LandSaleZoneFlagGet(e.address, flag, zone)
}

// WhitelistClaimed reports whether a whitelist token id has been redeemed.
func (e *Engine) WhitelistClaimed(tokenID *big.Int) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return false, ErrInvalidTokenID
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.LandSaleClaimGet(e.address, tokenID)
}

// CooldownStatus reports when the buyer may next use the public sale.
func (e *Engine) CooldownStatus(buyer [20]byte) (*CooldownStatus, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return e.cooldownStatus(cfg, buyer, e.now())
}

// Quote reports the current price, the buyer's allowance towards the sale and
// their cooldown status.
func (e *Engine) Quote(buyer [20]byte) (*Quote, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	status, err := e.cooldownStatus(cfg, buyer, e.now())
	if err != nil {
		return nil, err
	}
	quote := &Quote{
		Buyer:     buyer,
		Price:     new(big.Int).Set(cfg.Price),
		Allowance: big.NewInt(0),
		Funded:    cfg.Price.Sign() == 0,
		Cooldown:  *status,
	}
	if cfg.Price.Sign() == 0 || isZeroAddress(cfg.PaymentToken) {
		return quote, nil
	}
	token, err := e.paymentToken(cfg)
	if err != nil {
		return nil, err
	}
	allowance, err := token.Allowance(buyer, e.address)
	if err != nil {
		return nil, err
	}
	if allowance != nil {
		quote.Allowance = new(big.Int).Set(allowance)
	}
	quote.Funded = quote.Allowance.Cmp(cfg.Price) >= 0
	return quote, nil
}

// --- mutators (authority only) ---

// mutate checks the caller before apply validates its input, so callers
// other than the authority always see ErrUnauthorized.
func (e *Engine) mutate(caller [20]byte, apply func(cfg *Config) (*types.Event, error)) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if caller != cfg.Authority {
		return ErrUnauthorized
	}
	evt, err := apply(cfg)
	if err != nil {
		return err
	}
	if err := e.state.LandSaleConfigPut(e.address, cfg); err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

// SetPrice updates the price per parcel. Zero makes the sale free.
func (e *Engine) SetPrice(caller [20]byte, price *big.Int) error {
	return e.mutate(caller, func(cfg *Config) (*types.Event, error) {
		if price == nil || price.Sign() < 0 {
			return nil, ErrInvalidPrice
		}
		cfg.Price = new(big.Int).Set(price)
		return ConfigUpdatedEvent("price", price.String()), nil
	})
}

// SetCooldown updates the public sale cooldown. Zero disables it.
func (e *Engine) SetCooldown(caller [20]byte, seconds uint64) error {
	return e.mutate(caller, func(cfg *Config) (*types.Event, error) {
		cfg.CooldownSeconds = seconds
		return ConfigUpdatedEvent("cooldownSeconds", strconv.FormatUint(seconds, 10)), nil
	})
}

// SetPaymentToken points the sale at a new payment token.
func (e *Engine) SetPaymentToken(caller [20]byte, addr [20]byte) error {
	return e.setCollaborator(caller, "paymentToken", addr, func(cfg *Config) { cfg.PaymentToken = addr })
}

// SetLandRegistry points the sale at a new land registry.
func (e *Engine) SetLandRegistry(caller [20]byte, addr [20]byte) error {
	return e.setCollaborator(caller, "landRegistry", addr, func(cfg *Config) { cfg.LandRegistry = addr })
}

// SetWhitelistToken points the sale at a new whitelist token.
func (e *Engine) SetWhitelistToken(caller [20]byte, addr [20]byte) error {
	return e.setCollaborator(caller, "whitelistToken", addr, func(cfg *Config) { cfg.WhitelistToken = addr })
}

func (e *Engine) setCollaborator(caller [20]byte, field string, addr [20]byte, set func(cfg *Config)) error {
	return e.mutate(caller, func(cfg *Config) (*types.Event, error) {
		if isZeroAddress(addr) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, field)
		}
		set(cfg)
		return ConfigUpdatedEvent(field, hexAddr(addr)), nil
	})
}

// TransferAuthority hands control of the sale to next. Payments made after
// the transfer are forwarded to the new authority.
func (e *Engine) TransferAuthority(caller [20]byte, next [20]byte) error {
	return e.mutate(caller, func(cfg *Config) (*types.Event, error) {
		if isZeroAddress(next) {
			return nil, fmt.Errorf("%w: authority", ErrInvalidAddress)
		}
		cfg.Authority = next
		return ConfigUpdatedEvent("authority", hexAddr(next)), nil
	})
}

// SetSaleState applies enabled to the public sale flag of every listed zone.
func (e *Engine) SetSaleState(caller [20]byte, zones []uint64, enabled bool) error {
	return e.setZoneFlags(caller, ZoneFlagSale, zones, enabled)
}

// SetWhitelistSaleState applies enabled to the whitelist sale flag of every
// listed zone.
func (e *Engine) SetWhitelistSaleState(caller [20]byte, zones []uint64, enabled bool) error {
	return e.setZoneFlags(caller, ZoneFlagWhitelist, zones, enabled)
}

func validateZones(zones []uint64) error {
	if len(zones) > MaxZoneBatch {
		return fmt.Errorf("%w: %d ids exceeds batch limit %d", ErrInvalidZone, len(zones), MaxZoneBatch)
	}
	for i, zone := range zones {
		if zone == 0 {
			return fmt.Errorf("%w: entry %d is zero", ErrInvalidZone, i)
		}
	}
	return nil
}

func (e *Engine) setZoneFlags(caller [20]byte, flag ZoneFlag, zones []uint64, enabled bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if caller != cfg.Authority {
		return ErrUnauthorized
	}
	if err := validateZones(zones); err != nil {
		return err
	}
	if len(zones) == 0 {
		return nil
	}
	snap := e.state.Snapshot()
	for _, zone := range zones {
		if err := e.state.LandSaleZoneFlagPut(e.address, flag, zone, enabled); err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
	}
	e.emit(ConfigUpdatedEvent(fmt.Sprintf("zone.%s", flag), fmt.Sprintf("%s=%t", zoneList(zones), enabled)))
	return nil
}
