// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
)

// Spec describes the initial deployment a fresh node creates: the reference
// payment token, land registry and whitelist collection, and the sale wired to
// them.
type Spec struct {
	Authority       string          `json:"authority" toml:"Authority"`
	SaleAddress     string          `json:"saleAddress" toml:"SaleAddress"`
	Price           string          `json:"price,omitempty" toml:"Price"`
	CooldownSeconds uint64          `json:"cooldownSeconds,omitempty" toml:"CooldownSeconds"`
	GrantMinter     bool            `json:"grantMinter,omitempty" toml:"GrantMinter"`
	SaleZones       []uint64        `json:"saleZones,omitempty" toml:"SaleZones"`
	WhitelistZones  []uint64        `json:"whitelistZones,omitempty" toml:"WhitelistZones"`
	PaymentToken    *TokenSpec      `json:"paymentToken,omitempty" toml:"PaymentToken"`
	LandRegistry    *RegistrySpec   `json:"landRegistry,omitempty" toml:"LandRegistry"`
	WhitelistToken  *CollectionSpec `json:"whitelistToken,omitempty" toml:"WhitelistToken"`

	authority [20]byte
	sale      [20]byte
	price     *big.Int
}

type TokenSpec struct {
	Address  string            `json:"address" toml:"Address"`
	Symbol   string            `json:"symbol" toml:"Symbol"`
	Name     string            `json:"name,omitempty" toml:"Name"`
	Decimals uint8             `json:"decimals" toml:"Decimals"`
	Owner    string            `json:"owner" toml:"Owner"`
	Alloc    map[string]string `json:"alloc,omitempty" toml:"Alloc"` // addr -> amount

	address [20]byte
	owner   [20]byte
	alloc   []Allocation
}

type RegistrySpec struct {
	Address string   `json:"address" toml:"Address"`
	Name    string   `json:"name,omitempty" toml:"Name"`
	Admin   string   `json:"admin" toml:"Admin"`
	Zones   []string `json:"zones,omitempty" toml:"Zones"`

	address [20]byte
	admin   [20]byte
}

type CollectionSpec struct {
	Address string            `json:"address" toml:"Address"`
	Name    string            `json:"name,omitempty" toml:"Name"`
	Owner   string            `json:"owner" toml:"Owner"`
	Tokens  map[string]string `json:"tokens,omitempty" toml:"Tokens"` // id -> owner

	address [20]byte
	owner   [20]byte
	tokens  []TokenGrant
}

// Allocation is a parsed initial token balance.
type Allocation struct {
	Account [20]byte
	Amount  *big.Int
}

// TokenGrant is a parsed initial whitelist token.
type TokenGrant struct {
	ID    *big.Int
	Owner [20]byte
}

// LoadGenesisSpec reads and validates a JSON genesis file.
func LoadGenesisSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

func (s *Spec) AuthorityAddress() [20]byte { return s.authority }
func (s *Spec) SaleIdentity() [20]byte { return s.sale }

// InitialPrice returns the parsed sale price, zero when unset.
func (s *Spec) InitialPrice() *big.Int {
	if s.price == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(s.price)
}

func (t *TokenSpec) ContractAddress() [20]byte { return t.address }
func (t *TokenSpec) OwnerAddress() [20]byte { return t.owner }
func (t *TokenSpec) Allocations() []Allocation { return t.alloc }
func (r *RegistrySpec) ContractAddress() [20]byte { return r.address }
func (r *RegistrySpec) AdminAddress() [20]byte { return r.admin }
func (c *CollectionSpec) ContractAddress() [20]byte { return c.address }
func (c *CollectionSpec) OwnerAddress() [20]byte { return c.owner }
func (c *CollectionSpec) Grants() []TokenGrant { return c.tokens }

// Validate parses every address and amount. It must run before the spec is
// applied.
func (s *Spec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	var err error
	if s.authority, err = ParseAccount("authority", s.Authority); err != nil {
		return err
	}
	if s.sale, err = ParseAccount("saleAddress", s.SaleAddress); err != nil {
		return err
	}
	if strings.TrimSpace(s.Price) == "" {
		s.price = big.NewInt(0)
	} else if s.price, err = parseAmountString(s.Price); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	for _, zones := range [][]uint64{s.SaleZones, s.WhitelistZones} {
		for _, zone := range zones {
			if zone == 0 {
				return fmt.Errorf("zone ids start at 1")
			}
		}
	}
	seen := map[[20]byte]string{s.sale: "saleAddress"}
	claim := func(field string, addr [20]byte) error {
		if other, ok := seen[addr]; ok {
			return fmt.Errorf("%s collides with %s", field, other)
		}
		seen[addr] = field
		return nil
	}
	if s.PaymentToken != nil {
		if err := s.PaymentToken.validate(); err != nil {
			return fmt.Errorf("paymentToken: %w", err)
		}
		if err := claim("paymentToken.address", s.PaymentToken.address); err != nil {
			return err
		}
	}
	if s.LandRegistry != nil {
		if err := s.LandRegistry.validate(); err != nil {
			return fmt.Errorf("landRegistry: %w", err)
		}
		if err := claim("landRegistry.address", s.LandRegistry.address); err != nil {
			return err
		}
		for _, zone := range append(append([]uint64(nil), s.SaleZones...), s.WhitelistZones...) {
			if zone > uint64(len(s.LandRegistry.Zones)) {
				return fmt.Errorf("zone %d is not created by landRegistry.zones", zone)
			}
		}
	} else if s.GrantMinter {
		return fmt.Errorf("grantMinter requires landRegistry")
	}
	if s.WhitelistToken != nil {
		if err := s.WhitelistToken.validate(); err != nil {
			return fmt.Errorf("whitelistToken: %w", err)
		}
		if err := claim("whitelistToken.address", s.WhitelistToken.address); err != nil {
			return err
		}
	}
	return nil
}

func (t *TokenSpec) validate() error {
	var err error
	if t.address, err = ParseAccount("address", t.Address); err != nil {
		return err
	}
	if t.owner, err = ParseAccount("owner", t.Owner); err != nil {
		return err
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol required")
	}
	t.alloc = t.alloc[:0]
	for account, amount := range t.Alloc {
		addr, err := ParseAccount("alloc", account)
		if err != nil {
			return err
		}
		value, err := parseAmountString(amount)
		if err != nil {
			return fmt.Errorf("alloc %s: %w", account, err)
		}
		t.alloc = append(t.alloc, Allocation{Account: addr, Amount: value})
	}
	sort.Slice(t.alloc, func(i, j int) bool {
		return bytes.Compare(t.alloc[i].Account[:], t.alloc[j].Account[:]) < 0
	})
	return nil
}

func (r *RegistrySpec) validate() error {
	var err error
	if r.address, err = ParseAccount("address", r.Address); err != nil {
		return err
	}
	if r.admin, err = ParseAccount("admin", r.Admin); err != nil {
		return err
	}
	for i, name := range r.Zones {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("zone %d: name required", i+1)
		}
	}
	return nil
}

func (c *CollectionSpec) validate() error {
	var err error
	if c.address, err = ParseAccount("address", c.Address); err != nil {
		return err
	}
	if c.owner, err = ParseAccount("owner", c.Owner); err != nil {
		return err
	}
	c.tokens = c.tokens[:0]
	for id, owner := range c.Tokens {
		value, err := parseAmountString(id)
		if err != nil {
			return fmt.Errorf("token id %q: %w", id, err)
		}
		addr, err := ParseAccount("tokens", owner)
		if err != nil {
			return err
		}
		c.tokens = append(c.tokens, TokenGrant{ID: value, Owner: addr})
	}
	sort.Slice(c.tokens, func(i, j int) bool { return c.tokens[i].ID.Cmp(c.tokens[j].ID) < 0 })
	return nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must not be empty")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
