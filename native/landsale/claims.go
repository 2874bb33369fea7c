package landsale

import (
	"fmt"
	"math/big"
)

// checkAndClaim consumes a whitelist token id. A claimed id stays claimed for
// the lifetime of the sale.
func (e *Engine) checkAndClaim(tokenID *big.Int) error {
	claimed, err := e.state.LandSaleClaimGet(e.address, tokenID)
	if err != nil {
		return err
	}
	if claimed {
		return fmt.Errorf("%w: token %s", ErrAlreadyClaimed, tokenID)
	}
	return e.state.LandSaleClaimPut(e.address, tokenID)
}
