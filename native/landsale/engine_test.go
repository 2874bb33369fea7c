package landsale

import (
	"errors"
	"math/big"
	"testing"
)

func TestBootstrapDefaults(t *testing.T) {
	st := newMockState()
	engine := NewEngine(saleAddr)
	engine.SetState(st)
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)

	if ok, err := engine.Bootstrapped(); err != nil || ok {
		t.Fatalf("expected fresh engine to be unbootstrapped, ok=%v err=%v", ok, err)
	}
	if _, err := engine.Config(); !errors.Is(err, errNotReady) {
		t.Fatalf("expected errNotReady before bootstrap, got %v", err)
	}
	if _, err := engine.Bootstrap([20]byte{}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected zero authority to be rejected, got %v", err)
	}
	cfg, err := engine.Bootstrap(authorityAddr)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if cfg.Authority != authorityAddr {
		t.Fatalf("unexpected authority %x", cfg.Authority)
	}
	if cfg.Price.Sign() != 0 || cfg.CooldownSeconds != 0 {
		t.Fatalf("expected zero price and cooldown, got %s/%d", cfg.Price, cfg.CooldownSeconds)
	}
	collab, err := engine.Collaborators()
	if err != nil {
		t.Fatalf("collaborators: %v", err)
	}
	if collab != (Collaborators{}) {
		t.Fatalf("expected no collaborators, got %+v", collab)
	}
	for _, zone := range []uint64{1, 2, 99} {
		sale, _ := engine.ZoneSaleEnabled(zone)
		wl, _ := engine.ZoneWhitelistEnabled(zone)
		if sale || wl {
			t.Fatalf("zone %d should start disabled", zone)
		}
	}
	if _, err := engine.Bootstrap(authorityAddr); !errors.Is(err, errBootstrap) {
		t.Fatalf("expected second bootstrap to fail, got %v", err)
	}
	if len(emitter.types) != 1 || emitter.types[0] != EventTypeConfigUpdated {
		t.Fatalf("unexpected events %v", emitter.types)
	}
}

func TestMutatorsRequireAuthority(t *testing.T) {
	h := newHarness(t)
	stranger := addr(0x01)

	calls := map[string]func(caller [20]byte) error{
		"price":     func(c [20]byte) error { return h.engine.SetPrice(c, big.NewInt(1)) },
		"cooldown":  func(c [20]byte) error { return h.engine.SetCooldown(c, 10) },
		"token":     func(c [20]byte) error { return h.engine.SetPaymentToken(c, addr(0xc0)) },
		"registry":  func(c [20]byte) error { return h.engine.SetLandRegistry(c, addr(0xc1)) },
		"whitelist": func(c [20]byte) error { return h.engine.SetWhitelistToken(c, addr(0xc2)) },
		"sale":      func(c [20]byte) error { return h.engine.SetSaleState(c, []uint64{1}, true) },
		"wlSale":    func(c [20]byte) error { return h.engine.SetWhitelistSaleState(c, []uint64{1}, true) },
		"authority": func(c [20]byte) error { return h.engine.TransferAuthority(c, stranger) },
	}
	for name, call := range calls {
		if err := call(stranger); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
	cfg, err := h.engine.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Price.Sign() != 0 || cfg.CooldownSeconds != 0 || cfg.Authority != authorityAddr {
		t.Fatalf("unauthorized calls changed config: %+v", cfg)
	}
	if cfg.PaymentToken != tokenAddr || cfg.LandRegistry != registryAddr || cfg.WhitelistToken != whitelistAddr {
		t.Fatalf("unauthorized calls changed collaborators: %+v", cfg)
	}
	if enabled, _ := h.engine.ZoneSaleEnabled(1); enabled {
		t.Fatalf("unauthorized call enabled zone 1")
	}
}

func TestUnauthorizedCallerWithInvalidInput(t *testing.T) {
	h := newHarness(t)
	stranger := addr(0x01)
	var zero [20]byte
	oversized := make([]uint64, MaxZoneBatch+1)

	cases := []struct {
		name string
		call func() error
	}{
		{"negative price", func() error { return h.engine.SetPrice(stranger, big.NewInt(-1)) }},
		{"nil price", func() error { return h.engine.SetPrice(stranger, nil) }},
		{"zero payment token", func() error { return h.engine.SetPaymentToken(stranger, zero) }},
		{"zero land registry", func() error { return h.engine.SetLandRegistry(stranger, zero) }},
		{"zero whitelist token", func() error { return h.engine.SetWhitelistToken(stranger, zero) }},
		{"zero zone id", func() error { return h.engine.SetSaleState(stranger, []uint64{0}, true) }},
		{"oversized whitelist batch", func() error { return h.engine.SetWhitelistSaleState(stranger, oversized, true) }},
		{"zero authority", func() error { return h.engine.TransferAuthority(stranger, zero) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestMutatorValidation(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.SetPrice(authorityAddr, big.NewInt(-1)); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if err := h.engine.SetPrice(authorityAddr, nil); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for nil, got %v", err)
	}
	var zero [20]byte
	if err := h.engine.SetPaymentToken(authorityAddr, zero); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for payment token, got %v", err)
	}
	if err := h.engine.SetLandRegistry(authorityAddr, zero); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for registry, got %v", err)
	}
	if err := h.engine.SetWhitelistToken(authorityAddr, zero); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for whitelist, got %v", err)
	}
	if err := h.engine.TransferAuthority(authorityAddr, zero); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for authority, got %v", err)
	}
	collab, _ := h.engine.Collaborators()
	if collab.PaymentToken != tokenAddr || collab.LandRegistry != registryAddr || collab.WhitelistToken != whitelistAddr {
		t.Fatalf("rejected updates changed collaborators: %+v", collab)
	}
}

func TestSetPriceAndCooldown(t *testing.T) {
	h := newHarness(t)
	emitter := &recordingEmitter{}
	h.engine.SetEmitter(emitter)

	if err := h.engine.SetPrice(authorityAddr, ether(500)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if err := h.engine.SetCooldown(authorityAddr, 1200); err != nil {
		t.Fatalf("set cooldown: %v", err)
	}
	price, err := h.engine.Price()
	if err != nil || price.Cmp(ether(500)) != 0 {
		t.Fatalf("unexpected price %v err=%v", price, err)
	}
	cooldown, err := h.engine.Cooldown()
	if err != nil || cooldown != 1200 {
		t.Fatalf("unexpected cooldown %d err=%v", cooldown, err)
	}
	// Mutating the returned value must not leak into the store.
	price.SetInt64(1)
	again, _ := h.engine.Price()
	if again.Cmp(ether(500)) != 0 {
		t.Fatalf("price aliased with caller: %s", again)
	}
	if len(emitter.types) != 2 {
		t.Fatalf("expected two config events, got %v", emitter.types)
	}
}

func TestSetSaleStateBulk(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.SetSaleState(authorityAddr, []uint64{1, 2}, true); err != nil {
		t.Fatalf("set sale state: %v", err)
	}
	for zone, want := range map[uint64]bool{1: true, 2: true, 3: false} {
		got, err := h.engine.ZoneSaleEnabled(zone)
		if err != nil {
			t.Fatalf("flag %d: %v", zone, err)
		}
		if got != want {
			t.Fatalf("zone %d: expected %v, got %v", zone, want, got)
		}
		if wl, _ := h.engine.ZoneWhitelistEnabled(zone); wl {
			t.Fatalf("zone %d: whitelist flag should be untouched", zone)
		}
	}
	if err := h.engine.SetSaleState(authorityAddr, []uint64{2}, false); err != nil {
		t.Fatalf("disable zone 2: %v", err)
	}
	if got, _ := h.engine.ZoneSaleEnabled(2); got {
		t.Fatalf("zone 2 should be disabled")
	}
	if got, _ := h.engine.ZoneSaleEnabled(1); !got {
		t.Fatalf("zone 1 should stay enabled")
	}
}

func TestSetZoneStateEmptyIsNoop(t *testing.T) {
	h := newHarness(t)
	emitter := &recordingEmitter{}
	h.engine.SetEmitter(emitter)
	if err := h.engine.SetWhitelistSaleState(authorityAddr, nil, true); err != nil {
		t.Fatalf("empty list: %v", err)
	}
	if len(h.state.flags) != 0 {
		t.Fatalf("empty list wrote flags: %v", h.state.flags)
	}
	if len(emitter.types) != 0 {
		t.Fatalf("empty list emitted %v", emitter.types)
	}
}

func TestSetZoneStateRejectsInvalidBatch(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.SetSaleState(authorityAddr, []uint64{1, 0, 2}, true); !errors.Is(err, ErrInvalidZone) {
		t.Fatalf("expected ErrInvalidZone, got %v", err)
	}
	if len(h.state.flags) != 0 {
		t.Fatalf("invalid batch wrote flags: %v", h.state.flags)
	}

	oversized := make([]uint64, MaxZoneBatch+1)
	for i := range oversized {
		oversized[i] = uint64(i + 1)
	}
	if err := h.engine.SetWhitelistSaleState(authorityAddr, oversized, true); !errors.Is(err, ErrInvalidZone) {
		t.Fatalf("expected oversized batch to fail, got %v", err)
	}
	if len(h.state.flags) != 0 {
		t.Fatalf("oversized batch wrote flags")
	}
}

func TestTransferAuthority(t *testing.T) {
	h := newHarness(t)
	next := addr(0xa2)
	if err := h.engine.TransferAuthority(authorityAddr, next); err != nil {
		t.Fatalf("transfer authority: %v", err)
	}
	if got, _ := h.engine.Authority(); got != next {
		t.Fatalf("expected new authority, got %x", got)
	}
	if err := h.engine.SetPrice(authorityAddr, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("old authority should lose control, got %v", err)
	}
	if err := h.engine.SetPrice(next, big.NewInt(1)); err != nil {
		t.Fatalf("new authority set price: %v", err)
	}
}

func TestCooldownStatusQuery(t *testing.T) {
	h := newHarness(t)
	buyer := addr(0x10)
	status, err := h.engine.CooldownStatus(buyer)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.HasPurchased || !status.Eligible {
		t.Fatalf("unexpected fresh status %+v", status)
	}

	h.state.purchases[purchaseKey(saleAddr, buyer)] = h.clock
	if err := h.engine.SetCooldown(authorityAddr, 600); err != nil {
		t.Fatalf("set cooldown: %v", err)
	}
	h.advance(100)
	status, err = h.engine.CooldownStatus(buyer)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Eligible || status.NextEligible != h.clock+500 {
		t.Fatalf("unexpected status during cooldown %+v", status)
	}
	h.advance(500)
	status, _ = h.engine.CooldownStatus(buyer)
	if !status.Eligible {
		t.Fatalf("expected buyer to be eligible at the boundary: %+v", status)
	}
}

func TestQuote(t *testing.T) {
	h := newHarness(t)
	buyer := addr(0x10)

	quote, err := h.engine.Quote(buyer)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !quote.Funded || quote.Price.Sign() != 0 {
		t.Fatalf("free sale should be funded: %+v", quote)
	}

	if err := h.engine.SetPrice(authorityAddr, ether(500)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	h.fund(buyer, ether(1000), ether(100))
	quote, err = h.engine.Quote(buyer)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Funded || quote.Allowance.Cmp(ether(100)) != 0 {
		t.Fatalf("under-approved buyer reported funded: %+v", quote)
	}
	h.fund(buyer, ether(1000), ether(500))
	quote, _ = h.engine.Quote(buyer)
	if !quote.Funded {
		t.Fatalf("approved buyer should be funded: %+v", quote)
	}
	if h.resolver.token.calls != 0 {
		t.Fatalf("quote must not move funds")
	}
}

func TestAddSecondsSaturates(t *testing.T) {
	if got := addSeconds(10, 5); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}
	const maxTS = int64(^uint64(0) >> 1)
	if got := addSeconds(maxTS-1, 10); got != maxTS {
		t.Fatalf("expected saturation, got %d", got)
	}
	if got := addSeconds(0, ^uint64(0)); got != maxTS {
		t.Fatalf("expected saturation for huge cooldown, got %d", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorClass
	}{
		{nil, ClassNone},
		{ErrUnauthorized, ClassConfiguration},
		{ErrInvalidZone, ClassConfiguration},
		{ErrZoneSaleDisabled, ClassPrecondition},
		{&CooldownError{RetryAt: 1}, ClassPrecondition},
		{ErrAlreadyClaimed, ClassPrecondition},
		{ErrNotWhitelistOwner, ClassPrecondition},
		{ErrPaymentTokenNotSet, ClassCollaborator},
		{errFakeMissingRole, ClassCollaborator},
		{errFakeInsufficientAllow, ClassCollaborator},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("classify(%v): expected %q, got %q", tc.err, tc.want, got)
		}
	}
}
