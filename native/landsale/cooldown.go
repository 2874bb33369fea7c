package landsale

import "math"

// cooldownStatus evaluates the cooldown rule without writing anything.
func (e *Engine) cooldownStatus(cfg *Config, buyer [20]byte, now int64) (*CooldownStatus, error) {
	last, ok, err := e.state.LandSaleLastPurchaseGet(e.address, buyer)
	if err != nil {
		return nil, err
	}
	status := &CooldownStatus{
		Buyer:           buyer,
		HasPurchased:    ok,
		CooldownSeconds: cfg.CooldownSeconds,
		NextEligible:    now,
		Eligible:        true,
	}
	if !ok {
		return status, nil
	}
	status.LastPurchase = last
	if cfg.CooldownSeconds == 0 {
		return status, nil
	}
	retryAt := addSeconds(last, cfg.CooldownSeconds)
	if now < retryAt {
		status.NextEligible = retryAt
		status.Eligible = false
	}
	return status, nil
}

// checkAndRecord enforces the public sale cooldown for buyer and, when the
// buyer is eligible, records now as their latest purchase.
func (e *Engine) checkAndRecord(cfg *Config, buyer [20]byte, now int64) error {
	status, err := e.cooldownStatus(cfg, buyer, now)
	if err != nil {
		return err
	}
	if !status.Eligible {
		return &CooldownError{Buyer: buyer, RetryAt: status.NextEligible}
	}
	return e.state.LandSaleLastPurchasePut(e.address, buyer, now)
}

// addSeconds adds a cooldown to a unix timestamp, saturating at MaxInt64.
func addSeconds(ts int64, seconds uint64) int64 {
	if seconds > math.MaxInt64 || ts > math.MaxInt64-int64(seconds) {
		return math.MaxInt64
	}
	return ts + int64(seconds)
}
