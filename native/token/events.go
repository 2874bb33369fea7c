package token

import (
	"encoding/hex"
	"math/big"

	"landsale/core/events"
	"landsale/core/types"
)

const (
	EventTypeTransfer = "token.transfer"
	EventTypeApproval = "token.approval"
)

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

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// TransferEvent records a balance movement. Mints use the zero address as
// the sender.
func TransferEvent(contract, from, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"token":  hexAddr(contract),
			"from":   hexAddr(from),
			"to":     hexAddr(to),
			"amount": amount.String(),
		},
	}
}

// ApprovalEvent records an allowance update.
func ApprovalEvent(contract, owner, spender [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeApproval,
		Attributes: map[string]string{
			"token":   hexAddr(contract),
			"owner":   hexAddr(owner),
			"spender": hexAddr(spender),
			"amount":  amount.String(),
		},
	}
}
