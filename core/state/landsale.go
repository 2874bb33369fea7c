package state

import (
	"math/big"

	"landsale/native/landsale"
)

type storedSaleConfig struct {
	Authority       [20]byte
	Price           *big.Int
	CooldownSeconds uint64
	PaymentToken    [20]byte
	LandRegistry    [20]byte
	WhitelistToken  [20]byte
}

// LandSaleConfigGet loads the configuration of the sale at address.
func (m *Manager) LandSaleConfigGet(sale [20]byte) (*landsale.Config, bool, error) {
	var stored storedSaleConfig
	ok, err := m.KVGet(LandSaleConfigKey(sale), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg := &landsale.Config{
		Authority:       stored.Authority,
		Price:           stored.Price,
		CooldownSeconds: stored.CooldownSeconds,
		PaymentToken:    stored.PaymentToken,
		LandRegistry:    stored.LandRegistry,
		WhitelistToken:  stored.WhitelistToken,
	}
	if cfg.Price == nil {
		cfg.Price = big.NewInt(0)
	}
	return cfg, true, nil
}

// LandSaleConfigPut stores the configuration of the sale at address.
func (m *Manager) LandSaleConfigPut(sale [20]byte, cfg *landsale.Config) error {
	stored := storedSaleConfig{
		Authority:       cfg.Authority,
		Price:           cfg.Price,
		CooldownSeconds: cfg.CooldownSeconds,
		PaymentToken:    cfg.PaymentToken,
		LandRegistry:    cfg.LandRegistry,
		WhitelistToken:  cfg.WhitelistToken,
	}
	if stored.Price == nil {
		stored.Price = big.NewInt(0)
	}
	return m.KVPut(LandSaleConfigKey(sale), stored)
}

// LandSaleZoneFlagGet reports a zone flag. Unset flags read as false.
func (m *Manager) LandSaleZoneFlagGet(sale [20]byte, flag landsale.ZoneFlag, zone uint64) (bool, error) {
	var enabled bool
	ok, err := m.KVGet(LandSaleZoneFlagKey(sale, uint8(flag), zone), &enabled)
	if err != nil || !ok {
		return false, err
	}
	return enabled, nil
}

// LandSaleZoneFlagPut stores a zone flag. Disabled flags are deleted so the
// map stays sparse.
func (m *Manager) LandSaleZoneFlagPut(sale [20]byte, flag landsale.ZoneFlag, zone uint64, enabled bool) error {
	key := LandSaleZoneFlagKey(sale, uint8(flag), zone)
	if !enabled {
		return m.KVDelete(key)
	}
	return m.KVPut(key, true)
}

// LandSaleLastPurchaseGet returns the last public purchase time of buyer.
func (m *Manager) LandSaleLastPurchaseGet(sale [20]byte, buyer [20]byte) (int64, bool, error) {
	var ts uint64
	ok, err := m.KVGet(LandSalePurchaseKey(sale, buyer), &ts)
	if err != nil || !ok {
		return 0, ok, err
	}
	return int64(ts), true, nil
}

// LandSaleLastPurchasePut records the last public purchase time of buyer.
func (m *Manager) LandSaleLastPurchasePut(sale [20]byte, buyer [20]byte, ts int64) error {
	return m.KVPut(LandSalePurchaseKey(sale, buyer), uint64(ts))
}

// LandSaleClaimGet reports whether a whitelist token id has been claimed.
func (m *Manager) LandSaleClaimGet(sale [20]byte, tokenID *big.Int) (bool, error) {
	key, err := LandSaleClaimKey(sale, tokenID)
	if err != nil {
		return false, err
	}
	return m.KVGet(key, nil)
}

// LandSaleClaimPut marks a whitelist token id as claimed.
func (m *Manager) LandSaleClaimPut(sale [20]byte, tokenID *big.Int) error {
	key, err := LandSaleClaimKey(sale, tokenID)
	if err != nil {
		return err
	}
	return m.KVPut(key, true)
}
