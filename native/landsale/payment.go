package landsale

import (
	"fmt"
	"math/big"
)

func (e *Engine) paymentToken(cfg *Config) (PaymentToken, error) {
	if isZeroAddress(cfg.PaymentToken) {
		return nil, ErrPaymentTokenNotSet
	}
	if e.resolver == nil {
		return nil, errNilResolver
	}
	token, err := e.resolver.PaymentToken(cfg.PaymentToken)
	if err != nil {
		return nil, fmt.Errorf("landsale: resolve payment token: %w", err)
	}
	return token, nil
}

// collect pulls amount from buyer to the sale authority using the allowance
// the buyer granted the sale. A zero amount is skipped without touching the
// payment token at all.
func (e *Engine) collect(cfg *Config, buyer [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	token, err := e.paymentToken(cfg)
	if err != nil {
		return err
	}
	return token.TransferFrom(e.address, buyer, cfg.Authority, amount)
}
