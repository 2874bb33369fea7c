package rpc

import (
	"errors"
	"net/http"

	"landsale/native/land"
	"landsale/native/landsale"
	"landsale/native/nft"
	"landsale/native/token"
)

// paramError marks a request whose params could not be decoded.
type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

func invalidParams(msg string) error { return &paramError{msg: msg} }

var ledgerInputErrors = []error{
	token.ErrInvalidAddress, token.ErrInvalidAmount, token.ErrInvalidMetadata,
	land.ErrInvalidAddress, land.ErrInvalidZoneName,
	nft.ErrInvalidAddress, nft.ErrInvalidTokenID,
}

var ledgerNotFoundErrors = []error{
	token.ErrUnknownToken, land.ErrUnknownRegistry, land.ErrUnknownZone, land.ErrUnknownParcel,
	nft.ErrUnknownCollection, nft.ErrNonexistentToken,
}

var ledgerDeniedErrors = []error{
	token.ErrNotOwner, land.ErrNotAdmin, land.ErrMissingRole, nft.ErrNotOwner, nft.ErrNotTokenOwner,
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// toRPCError maps a handler error to its HTTP status and JSON-RPC error.
// Sale errors map by class. Reference ledger errors raised outside a sale call
// map by kind.
func toRPCError(err error) (int, *RPCError) {
	var pe *paramError
	if errors.As(err, &pe) {
		return http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: pe.msg}
	}
	var direct *RPCError
	if errors.As(err, &direct) {
		return http.StatusServiceUnavailable, direct
	}
	var cooldown *landsale.CooldownError
	if errors.As(err, &cooldown) {
		return http.StatusConflict, &RPCError{
			Code:    codePrecondition,
			Message: err.Error(),
			Data:    map[string]int64{"retryAt": cooldown.RetryAt},
		}
	}
	if errors.Is(err, landsale.ErrUnauthorized) {
		return http.StatusForbidden, &RPCError{Code: codeUnauthorized, Message: err.Error()}
	}
	switch landsale.Classify(err) {
	case landsale.ClassConfiguration:
		return http.StatusBadRequest, &RPCError{Code: codeConfiguration, Message: err.Error()}
	case landsale.ClassPrecondition:
		return http.StatusConflict, &RPCError{Code: codePrecondition, Message: err.Error()}
	}
	switch {
	case isAny(err, ledgerInputErrors):
		return http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	case isAny(err, ledgerDeniedErrors):
		return http.StatusForbidden, &RPCError{Code: codeCollaborator, Message: err.Error()}
	case isAny(err, ledgerNotFoundErrors),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrTokenExists),
		errors.Is(err, land.ErrRegistryExists),
		errors.Is(err, land.ErrParcelOccupied),
		errors.Is(err, nft.ErrCollectionExists),
		errors.Is(err, nft.ErrTokenExists),
		errors.Is(err, landsale.ErrPaymentTokenNotSet),
		errors.Is(err, landsale.ErrLandRegistryNotSet),
		errors.Is(err, landsale.ErrWhitelistTokenNotSet):
		return http.StatusUnprocessableEntity, &RPCError{Code: codeCollaborator, Message: err.Error()}
	}
	return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: "internal error", Data: err.Error()}
}
