package core

import (
	"bytes"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"landsale/core/genesis"
	"landsale/core/types"
	"landsale/crypto"
	"landsale/native/land"
	"landsale/native/landsale"
	"landsale/native/nft"
	"landsale/native/token"
	"landsale/storage"
)

func fill(b byte) [20]byte {
	var out [20]byte
	copy(out[:], bytes.Repeat([]byte{b}, 20))
	return out
}

func bech(addr [20]byte) string { return crypto.FromArray(addr).String() }

var (
	authority  = fill(0x01)
	saleAddr   = fill(0xa0)
	tokenAddr  = fill(0xb0)
	landAddr   = fill(0xb1)
	wlAddr     = fill(0xb2)
	buyer      = fill(0x10)
	otherBuyer = fill(0x11)
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func testGenesis(grantMinter bool) *genesis.Spec {
	return &genesis.Spec{
		Authority:       bech(authority),
		SaleAddress:     bech(saleAddr),
		Price:           ether(500).String(),
		CooldownSeconds: 1200,
		GrantMinter:     grantMinter,
		SaleZones:       []uint64{1, 2},
		WhitelistZones:  []uint64{1},
		PaymentToken: &genesis.TokenSpec{
			Address:  bech(tokenAddr),
			Symbol:   "SACG",
			Name:     "SACGrams",
			Decimals: 18,
			Owner:    bech(authority),
			Alloc: map[string]string{
				bech(buyer):      ether(1000).String(),
				bech(otherBuyer): ether(1000).String(),
			},
		},
		LandRegistry: &genesis.RegistrySpec{
			Address: bech(landAddr),
			Name:    "Parcels",
			Admin:   bech(authority),
			Zones:   []string{"north", "south", "east"},
		},
		WhitelistToken: &genesis.CollectionSpec{
			Address: bech(wlAddr),
			Name:    "Early Access",
			Owner:   bech(authority),
			Tokens:  map[string]string{"3": bech(buyer)},
		},
	}
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []*types.Event
}

func (s *sinkRecorder) ConsumeEvents(evts []*types.Event) {
	s.mu.Lock()
	s.events = append(s.events, evts...)
	s.mu.Unlock()
}

func (s *sinkRecorder) count(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, evt := range s.events {
		if evt.Type == eventType {
			total++
		}
	}
	return total
}

type clock struct{ now int64 }

func (c *clock) read() int64 { return c.now }

func newTestNode(t *testing.T, db storage.Database, grantMinter bool) (*Node, *clock, *sinkRecorder) {
	t.Helper()
	node, err := NewNode(db, saleAddr)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := &clock{now: 1_700_000_000}
	node.SetNowFunc(clk.read)
	sink := &sinkRecorder{}
	node.AddEventSink(sink)
	applied, err := node.ApplyGenesis(testGenesis(grantMinter))
	if err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	if !applied {
		t.Fatalf("expected genesis to be applied on a fresh database")
	}
	return node, clk, sink
}

func TestGenesisConfiguresSale(t *testing.T) {
	node, _, _ := newTestNode(t, storage.NewMemDB(), true)

	cfg, err := node.LandSaleConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Authority != authority || cfg.Price.Cmp(ether(500)) != 0 || cfg.CooldownSeconds != 1200 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.PaymentToken != tokenAddr || cfg.LandRegistry != landAddr || cfg.WhitelistToken != wlAddr {
		t.Fatalf("unexpected collaborators %+v", cfg)
	}
	for zone, want := range map[uint64]bool{1: true, 2: true, 3: false} {
		got, err := node.LandSaleZoneSaleEnabled(zone)
		if err != nil || got != want {
			t.Fatalf("zone %d sale flag = %v err=%v, want %v", zone, got, err, want)
		}
	}
	if ok, _ := node.LandSaleZoneWhitelistEnabled(2); ok {
		t.Fatalf("zone 2 whitelist should stay disabled")
	}
	if ok, err := node.LandHasRole(landAddr, land.MinterRole, saleAddr); err != nil || !ok {
		t.Fatalf("expected sale to hold MINTER_ROLE, ok=%v err=%v", ok, err)
	}
	zone, err := node.LandZone(landAddr, 3)
	if err != nil || zone.Name != "east" {
		t.Fatalf("zone 3 = %+v err=%v", zone, err)
	}
	balance, err := node.TokenBalance(tokenAddr, buyer)
	if err != nil || balance.Cmp(ether(1000)) != 0 {
		t.Fatalf("buyer balance = %v err=%v", balance, err)
	}
	owner, err := node.NFTOwnerOf(wlAddr, big.NewInt(3))
	if err != nil || owner != buyer {
		t.Fatalf("whitelist token 3 owner = %x err=%v", owner, err)
	}

	applied, err := node.ApplyGenesis(testGenesis(true))
	if err != nil || applied {
		t.Fatalf("second genesis must be a no-op, applied=%v err=%v", applied, err)
	}
}

func TestGenesisRejectsForeignSaleAddress(t *testing.T) {
	node, err := NewNode(storage.NewMemDB(), fill(0xee))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if _, err := node.ApplyGenesis(testGenesis(true)); !errors.Is(err, ErrGenesisMismatch) {
		t.Fatalf("expected ErrGenesisMismatch, got %v", err)
	}
}

func TestPublicMintThroughNode(t *testing.T) {
	node, clk, sink := newTestNode(t, storage.NewMemDB(), true)

	if err := node.TokenApprove(tokenAddr, buyer, saleAddr, ether(500)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	quote, err := node.LandSaleQuote(buyer)
	if err != nil || !quote.Funded {
		t.Fatalf("expected funded quote, got %+v err=%v", quote, err)
	}
	receipt, err := node.LandSaleMintLand(1, 4, -2, buyer)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if receipt.ParcelID.Int64() != 1 || receipt.Kind != landsale.MintKindPublic {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	allowance, _ := node.TokenAllowance(tokenAddr, buyer, saleAddr)
	if allowance.Sign() != 0 {
		t.Fatalf("expected allowance to be spent, got %s", allowance)
	}
	buyerBal, _ := node.TokenBalance(tokenAddr, buyer)
	authBal, _ := node.TokenBalance(tokenAddr, authority)
	if buyerBal.Cmp(ether(500)) != 0 || authBal.Cmp(ether(500)) != 0 {
		t.Fatalf("unexpected balances buyer=%s authority=%s", buyerBal, authBal)
	}
	parcel, err := node.LandParcelAt(landAddr, 1, 4, -2)
	if err != nil || parcel.Owner != buyer || parcel.MintedBy != saleAddr {
		t.Fatalf("parcel = %+v err=%v", parcel, err)
	}
	if sink.count(landsale.EventTypeParcelMinted) != 1 {
		t.Fatalf("expected one committed mint event")
	}

	if err := node.TokenApprove(tokenAddr, buyer, saleAddr, ether(500)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	clk.now += 1199
	if _, err := node.LandSaleMintLand(1, 5, -2, buyer); !errors.Is(err, landsale.ErrCooldownActive) {
		t.Fatalf("expected cooldown, got %v", err)
	}
	clk.now++
	if _, err := node.LandSaleMintLand(1, 5, -2, buyer); err != nil {
		t.Fatalf("mint after cooldown: %v", err)
	}
}

func TestFailedMintLeavesNoTrace(t *testing.T) {
	node, _, sink := newTestNode(t, storage.NewMemDB(), false)
	if err := node.TokenApprove(tokenAddr, buyer, saleAddr, ether(500)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	before := len(sink.events)

	_, err := node.LandSaleMintLand(1, 0, 0, buyer)
	if !errors.Is(err, land.ErrMissingRole) {
		t.Fatalf("expected missing minter role to propagate, got %v", err)
	}
	if landsale.Classify(err) != landsale.ClassCollaborator {
		t.Fatalf("expected collaborator class, got %q", landsale.Classify(err))
	}

	balance, _ := node.TokenBalance(tokenAddr, buyer)
	allowance, _ := node.TokenAllowance(tokenAddr, buyer, saleAddr)
	if balance.Cmp(ether(1000)) != 0 || allowance.Cmp(ether(500)) != 0 {
		t.Fatalf("payment not unwound: balance=%s allowance=%s", balance, allowance)
	}
	status, err := node.LandSaleCooldownStatus(buyer)
	if err != nil || status.HasPurchased {
		t.Fatalf("cooldown record not unwound: %+v err=%v", status, err)
	}
	if len(sink.events) != before {
		t.Fatalf("failed transition must not publish events")
	}

	if err := node.LandGrantRole(landAddr, authority, land.MinterRole, saleAddr); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := node.LandSaleMintLand(1, 0, 0, buyer); err != nil {
		t.Fatalf("mint after grant: %v", err)
	}
}

func TestWhitelistMintThroughNode(t *testing.T) {
	node, _, sink := newTestNode(t, storage.NewMemDB(), true)
	for _, who := range [][20]byte{buyer, otherBuyer} {
		if err := node.TokenApprove(tokenAddr, who, saleAddr, ether(1000)); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}

	if _, err := node.LandSaleWhitelistMintLand(big.NewInt(3), 2, 0, 0, buyer); !errors.Is(err, landsale.ErrZoneWhitelistDisabled) {
		t.Fatalf("expected whitelist-disabled zone, got %v", err)
	}
	if _, err := node.LandSaleWhitelistMintLand(big.NewInt(3), 1, 0, 0, otherBuyer); !errors.Is(err, landsale.ErrNotWhitelistOwner) {
		t.Fatalf("expected non-owner rejection, got %v", err)
	}
	receipt, err := node.LandSaleWhitelistMintLand(big.NewInt(3), 1, 0, 0, buyer)
	if err != nil {
		t.Fatalf("whitelist mint: %v", err)
	}
	if receipt.WhitelistTokenID.Int64() != 3 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if claimed, _ := node.LandSaleWhitelistClaimed(big.NewInt(3)); !claimed {
		t.Fatalf("expected token 3 to be claimed")
	}

	if err := node.NFTTransfer(wlAddr, buyer, buyer, otherBuyer, big.NewInt(3)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := node.LandSaleWhitelistMintLand(big.NewInt(3), 1, 0, 1, otherBuyer); !errors.Is(err, landsale.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	if _, err := node.LandSaleWhitelistMintLand(big.NewInt(9), 1, 0, 1, buyer); !errors.Is(err, nft.ErrNonexistentToken) {
		t.Fatalf("expected nonexistent token to surface, got %v", err)
	}
	if sink.count(landsale.EventTypeWhitelistClaimed) != 1 {
		t.Fatalf("expected exactly one claim event")
	}
}

func TestAdminThroughNode(t *testing.T) {
	node, _, _ := newTestNode(t, storage.NewMemDB(), true)
	if err := node.LandSaleSetPrice(buyer, big.NewInt(1)); !errors.Is(err, landsale.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := node.LandSaleSetPrice(authority, big.NewInt(0)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if err := node.LandSaleSetSaleState(authority, []uint64{3}, true); err != nil {
		t.Fatalf("set sale state: %v", err)
	}
	receipt, err := node.LandSaleMintLand(3, 1, 1, otherBuyer)
	if err != nil {
		t.Fatalf("free mint: %v", err)
	}
	if receipt.Price.Sign() != 0 {
		t.Fatalf("expected free mint, got price %s", receipt.Price)
	}
	balance, _ := node.TokenBalance(tokenAddr, otherBuyer)
	if balance.Cmp(ether(1000)) != 0 {
		t.Fatalf("free mint must not move tokens, balance %s", balance)
	}
	if err := node.LandSaleTransferAuthority(authority, otherBuyer); err != nil {
		t.Fatalf("transfer authority: %v", err)
	}
	if err := node.LandSaleSetCooldown(authority, 5); !errors.Is(err, landsale.ErrUnauthorized) {
		t.Fatalf("old authority must lose control, got %v", err)
	}
	if err := node.LandSaleSetPaymentToken(otherBuyer, fill(0xcc)); err != nil {
		t.Fatalf("new authority set token: %v", err)
	}
	if err := node.LandSaleSetPrice(otherBuyer, big.NewInt(1)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if _, err := node.LandSaleMintLand(3, 2, 2, buyer); !errors.Is(err, token.ErrUnknownToken) {
		t.Fatalf("expected unbound payment token to fail, got %v", err)
	}
}

func TestNodePersistsAcrossRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	db, err := storage.NewLevelDB(dir)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	node, _, _ := newTestNode(t, db, true)
	if err := node.TokenApprove(tokenAddr, buyer, saleAddr, ether(500)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := node.LandSaleMintLand(2, 9, 9, buyer); err != nil {
		t.Fatalf("mint: %v", err)
	}
	db.Close()

	reopened, err := storage.NewLevelDB(dir)
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	defer reopened.Close()
	restarted, err := NewNode(reopened, saleAddr)
	if err != nil {
		t.Fatalf("restart node: %v", err)
	}
	applied, err := restarted.ApplyGenesis(testGenesis(true))
	if err != nil || applied {
		t.Fatalf("genesis must not reapply after restart, applied=%v err=%v", applied, err)
	}
	parcel, err := restarted.LandParcelAt(landAddr, 2, 9, 9)
	if err != nil || parcel.Owner != buyer {
		t.Fatalf("parcel after restart = %+v err=%v", parcel, err)
	}
	status, err := restarted.LandSaleCooldownStatus(buyer)
	if err != nil || !status.HasPurchased || status.LastPurchase != 1_700_000_000 {
		t.Fatalf("cooldown after restart = %+v err=%v", status, err)
	}
}

func TestConcurrentMintsSettleOnce(t *testing.T) {
	const workers = 16
	node, _, sink := newTestNode(t, storage.NewMemDB(), true)
	if err := node.TokenApprove(tokenAddr, buyer, saleAddr, ether(1000)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	run := func(mint func(i int) error) (succeeded int, failures []error) {
		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := mint(i)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
					return
				}
				failures = append(failures, err)
			}(i)
		}
		wg.Wait()
		return succeeded, failures
	}

	ok, failures := run(func(i int) error {
		_, err := node.LandSaleWhitelistMintLand(big.NewInt(3), 1, int64(i), 10, buyer)
		return err
	})
	if ok != 1 {
		t.Fatalf("expected exactly one whitelist redemption, got %d", ok)
	}
	for _, err := range failures {
		if !errors.Is(err, landsale.ErrAlreadyClaimed) {
			t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
		}
	}

	ok, failures = run(func(i int) error {
		_, err := node.LandSaleMintLand(2, int64(i), 20, buyer)
		return err
	})
	if ok != 1 {
		t.Fatalf("expected exactly one public mint inside the cooldown, got %d", ok)
	}
	for _, err := range failures {
		if !errors.Is(err, landsale.ErrCooldownActive) {
			t.Fatalf("expected ErrCooldownActive, got %v", err)
		}
	}

	balance, _ := node.TokenBalance(tokenAddr, buyer)
	if balance.Sign() != 0 {
		t.Fatalf("expected two payments of 500, buyer balance %s", balance)
	}
	if sink.count(landsale.EventTypeParcelMinted) != 2 {
		t.Fatalf("expected two committed mint events, got %d", sink.count(landsale.EventTypeParcelMinted))
	}
	parcels, err := node.LandParcelsOf(landAddr, buyer)
	if err != nil || len(parcels) != 2 {
		t.Fatalf("expected two indexed parcels, got %d err=%v", len(parcels), err)
	}
}
