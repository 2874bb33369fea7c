package landsale

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"landsale/core/events"
	"landsale/core/types"
)

const (
	// EventTypeParcelMinted is emitted when either mint entry point succeeds.
	EventTypeParcelMinted = "landsale.parcel.minted"
	// EventTypeWhitelistClaimed is emitted when a whitelist token id is consumed.
	EventTypeWhitelistClaimed = "landsale.whitelist.claimed"
	// EventTypeConfigUpdated is emitted by every configuration mutator.
	EventTypeConfigUpdated = "landsale.config.updated"
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

// ParcelMintedEvent returns the structured payload describing a mint receipt.
func ParcelMintedEvent(receipt *MintReceipt) *types.Event {
	attrs := map[string]string{
		"kind":     string(receipt.Kind),
		"parcelId": bigString(receipt.ParcelID),
		"zone":     strconv.FormatUint(receipt.Zone, 10),
		"x":        strconv.FormatInt(receipt.X, 10),
		"y":        strconv.FormatInt(receipt.Y, 10),
		"buyer":    hexAddr(receipt.Buyer),
		"payee":    hexAddr(receipt.Payee),
		"price":    bigString(receipt.Price),
		"mintedAt": strconv.FormatInt(receipt.MintedAt, 10),
	}
	if receipt.WhitelistTokenID != nil {
		attrs["whitelistTokenId"] = receipt.WhitelistTokenID.String()
	}
	return &types.Event{Type: EventTypeParcelMinted, Attributes: attrs}
}

// WhitelistClaimedEvent records the consumption of a whitelist token id.
func WhitelistClaimedEvent(tokenID *big.Int, buyer [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeWhitelistClaimed,
		Attributes: map[string]string{
			"tokenId": bigString(tokenID),
			"buyer":   hexAddr(buyer),
		},
	}
}

// ConfigUpdatedEvent records a configuration change. Value is rendered by the
// caller so every field shares one event type.
func ConfigUpdatedEvent(field string, value string) *types.Event {
	return &types.Event{
		Type: EventTypeConfigUpdated,
		Attributes: map[string]string{
			"field": field,
			"value": value,
		},
	}
}

func zoneList(zones []uint64) string {
	parts := make([]string, len(zones))
	for i, z := range zones {
		parts[i] = strconv.FormatUint(z, 10)
	}
	return strings.Join(parts, ",")
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
