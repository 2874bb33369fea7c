package landsale

import (
	"errors"
	"fmt"
	"time"
)

var (
	errNilState    = errors.New("landsale engine: state not configured")
	errNilResolver = errors.New("landsale engine: collaborator resolver not configured")
	errNotReady    = errors.New("landsale engine: sale not bootstrapped")
	errBootstrap   = errors.New("landsale engine: sale already bootstrapped")

	// ErrUnauthorized is returned when a mutator is invoked by anyone but the
	// controlling authority.
	ErrUnauthorized = errors.New("landsale: caller is not the sale authority")
	// ErrInvalidAddress rejects zero identities for collaborators, buyers and
	// the authority.
	ErrInvalidAddress = errors.New("landsale: invalid address")
	// ErrInvalidZone rejects malformed zone id lists in bulk setters.
	ErrInvalidZone = errors.New("landsale: invalid zone id")
	// ErrInvalidPrice rejects nil or negative prices.
	ErrInvalidPrice = errors.New("landsale: price must be non-negative")
	// ErrInvalidTokenID rejects nil or negative whitelist token ids.
	ErrInvalidTokenID = errors.New("landsale: invalid whitelist token id")

	ErrZoneSaleDisabled      = errors.New("landsale: zone sale disabled")
	ErrZoneWhitelistDisabled = errors.New("landsale: zone whitelist sale disabled")
	ErrCooldownActive        = errors.New("landsale: purchase cooldown active")
	ErrAlreadyClaimed        = errors.New("landsale: whitelist token already claimed")
	ErrNotWhitelistOwner     = errors.New("landsale: buyer does not own whitelist token")

	ErrPaymentTokenNotSet   = errors.New("landsale: payment token not configured")
	ErrLandRegistryNotSet   = errors.New("landsale: land registry not configured")
	ErrWhitelistTokenNotSet = errors.New("landsale: whitelist token not configured")
)

// CooldownError reports an active cooldown together with the earliest time
// the buyer may purchase again.
type CooldownError struct {
	Buyer   [20]byte
	RetryAt int64
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry at %s", ErrCooldownActive, time.Unix(e.RetryAt, 0).UTC().Format(time.RFC3339))
}

// Is lets errors.Is match ErrCooldownActive.
func (e *CooldownError) Is(target error) bool { return target == ErrCooldownActive }

// ErrorClass groups errors by how a client should react to them.
type ErrorClass string

const (
	ClassNone          ErrorClass = ""
	ClassConfiguration ErrorClass = "configuration"
	ClassPrecondition  ErrorClass = "precondition"
	ClassCollaborator  ErrorClass = "collaborator"
)

var (
	configurationErrors = []error{
		errNilState, errNilResolver, errNotReady, errBootstrap,
		ErrUnauthorized, ErrInvalidAddress, ErrInvalidZone, ErrInvalidPrice, ErrInvalidTokenID,
	}
	preconditionErrors = []error{
		ErrZoneSaleDisabled, ErrZoneWhitelistDisabled, ErrCooldownActive, ErrAlreadyClaimed, ErrNotWhitelistOwner,
	}
)

// Classify maps an error returned by the engine to its class. Anything the
// engine does not own is treated as a collaborator failure.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	for _, target := range preconditionErrors {
		if errors.Is(err, target) {
			return ClassPrecondition
		}
	}
	for _, target := range configurationErrors {
		if errors.Is(err, target) {
			return ClassConfiguration
		}
	}
	return ClassCollaborator
}
