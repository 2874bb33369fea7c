package landsale

import "math/big"

// ZoneFlag selects one of the two per-zone enablement maps.
type ZoneFlag uint8

const (
	// ZoneFlagSale gates the public sale of a zone.
	ZoneFlagSale ZoneFlag = iota + 1
	// ZoneFlagWhitelist gates the whitelist sale of a zone.
	ZoneFlagWhitelist
)

func (f ZoneFlag) String() string {
	switch f {
	case ZoneFlagSale:
		return "sale"
	case ZoneFlagWhitelist:
		return "whitelist"
	default:
		return "unknown"
	}
}

// MintKind distinguishes the two mint entry points.
type MintKind string

const (
	MintKindPublic    MintKind = "public"
	MintKindWhitelist MintKind = "whitelist"
)

// MaxZoneBatch bounds the number of zone ids accepted by a bulk flag setter.
const MaxZoneBatch = 1024

// Config is the singleton sale configuration. The zone flag maps are stored
// sparsely next to it and are not part of the struct.
type Config struct {
	Authority       [20]byte `json:"authority"`
	Price           *big.Int `json:"price"`
	CooldownSeconds uint64   `json:"cooldownSeconds"`
	PaymentToken    [20]byte `json:"paymentToken"`
	LandRegistry    [20]byte `json:"landRegistry"`
	WhitelistToken  [20]byte `json:"whitelistToken"`
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Price != nil {
		clone.Price = new(big.Int).Set(c.Price)
	}
	return &clone
}

// Collaborators lists the configured collaborator addresses.
type Collaborators struct {
	PaymentToken   [20]byte `json:"paymentToken"`
	LandRegistry   [20]byte `json:"landRegistry"`
	WhitelistToken [20]byte `json:"whitelistToken"`
}

// CooldownStatus reports where a buyer stands relative to the public sale
// cooldown.
type CooldownStatus struct {
	Buyer           [20]byte `json:"buyer"`
	HasPurchased    bool     `json:"hasPurchased"`
	LastPurchase    int64    `json:"lastPurchase"`
	CooldownSeconds uint64   `json:"cooldownSeconds"`
	NextEligible    int64    `json:"nextEligible"`
	Eligible        bool     `json:"eligible"`
}

// Quote summarises what a buyer needs before calling a mint entry point.
type Quote struct {
	Buyer     [20]byte       `json:"buyer"`
	Price     *big.Int       `json:"price"`
	Allowance *big.Int       `json:"allowance"`
	Funded    bool           `json:"funded"`
	Cooldown  CooldownStatus `json:"cooldown"`
}

// MintReceipt describes a successfully minted parcel.
type MintReceipt struct {
	Kind             MintKind `json:"kind"`
	ParcelID         *big.Int `json:"parcelId"`
	Zone             uint64   `json:"zone"`
	X                int64    `json:"x"`
	Y                int64    `json:"y"`
	Buyer            [20]byte `json:"buyer"`
	Payee            [20]byte `json:"payee"`
	Price            *big.Int `json:"price"`
	WhitelistTokenID *big.Int `json:"whitelistTokenId,omitempty"`
	MintedAt         int64    `json:"mintedAt"`
}

// PaymentToken is the fungible ledger the sale pulls payment from. The sale
// always acts as spender.
type PaymentToken interface {
	Allowance(owner [20]byte, spender [20]byte) (*big.Int, error)
	TransferFrom(spender [20]byte, owner [20]byte, recipient [20]byte, amount *big.Int) error
}

// LandRegistry materialises parcels. The caller identity is the capability:
// the registry fails the call when the caller lacks its minter role.
type LandRegistry interface {
	Mint(caller [20]byte, owner [20]byte, zone uint64, x, y int64) (*big.Int, error)
}

// WhitelistToken answers ownership queries for whitelist token ids.
type WhitelistToken interface {
	OwnerOf(id *big.Int) ([20]byte, error)
}

// Resolver binds configured collaborator addresses to live handles. It is
// consulted on every call so reconfiguration takes effect immediately.
type Resolver interface {
	PaymentToken(addr [20]byte) (PaymentToken, error)
	LandRegistry(addr [20]byte) (LandRegistry, error)
	WhitelistToken(addr [20]byte) (WhitelistToken, error)
}
