package landsale

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"landsale/core/events"
)

var (
	errFakeMissingRole       = errors.New("fake registry: missing minter role")
	errFakeOccupied          = errors.New("fake registry: parcel occupied")
	errFakeNonexistent       = errors.New("fake whitelist: nonexistent token")
	errFakeInsufficientAllow = errors.New("fake token: insufficient allowance")
	errFakeInsufficientFunds = errors.New("fake token: insufficient balance")
)

// mockState keeps every map the engine and the fake collaborators write so a
// snapshot covers both, mirroring the shared journaled state used in
// production.
type mockState struct {
	configs    map[[20]byte]*Config
	flags      map[string]bool
	purchases  map[string]int64
	claims     map[string]bool
	balances   map[[20]byte]*big.Int
	allowances map[string]*big.Int
	parcels    map[string]*big.Int
	nextParcel int64
	snapshots  []*mockState
}

func newMockState() *mockState {
	return &mockState{
		configs:    make(map[[20]byte]*Config),
		flags:      make(map[string]bool),
		purchases:  make(map[string]int64),
		claims:     make(map[string]bool),
		balances:   make(map[[20]byte]*big.Int),
		allowances: make(map[string]*big.Int),
		parcels:    make(map[string]*big.Int),
	}
}

func (m *mockState) copyData() *mockState {
	out := newMockState()
	for k, v := range m.configs {
		out.configs[k] = v.Clone()
	}
	for k, v := range m.flags {
		out.flags[k] = v
	}
	for k, v := range m.purchases {
		out.purchases[k] = v
	}
	for k, v := range m.claims {
		out.claims[k] = v
	}
	for k, v := range m.balances {
		out.balances[k] = new(big.Int).Set(v)
	}
	for k, v := range m.allowances {
		out.allowances[k] = new(big.Int).Set(v)
	}
	for k, v := range m.parcels {
		out.parcels[k] = new(big.Int).Set(v)
	}
	out.nextParcel = m.nextParcel
	return out
}

func (m *mockState) Snapshot() int {
	m.snapshots = append(m.snapshots, m.copyData())
	return len(m.snapshots) - 1
}

func (m *mockState) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	saved := m.snapshots[id]
	m.configs = saved.configs
	m.flags = saved.flags
	m.purchases = saved.purchases
	m.claims = saved.claims
	m.balances = saved.balances
	m.allowances = saved.allowances
	m.parcels = saved.parcels
	m.nextParcel = saved.nextParcel
	m.snapshots = m.snapshots[:id]
}

func (m *mockState) LandSaleConfigGet(sale [20]byte) (*Config, bool, error) {
	cfg, ok := m.configs[sale]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

func (m *mockState) LandSaleConfigPut(sale [20]byte, cfg *Config) error {
	m.configs[sale] = cfg.Clone()
	return nil
}

func flagKey(sale [20]byte, flag ZoneFlag, zone uint64) string {
	return fmt.Sprintf("%x/%d/%d", sale, flag, zone)
}

func (m *mockState) LandSaleZoneFlagGet(sale [20]byte, flag ZoneFlag, zone uint64) (bool, error) {
	return m.flags[flagKey(sale, flag, zone)], nil
}

func (m *mockState) LandSaleZoneFlagPut(sale [20]byte, flag ZoneFlag, zone uint64, enabled bool) error {
	m.flags[flagKey(sale, flag, zone)] = enabled
	return nil
}

func purchaseKey(sale, buyer [20]byte) string {
	return fmt.Sprintf("%x/%x", sale, buyer)
}

func (m *mockState) LandSaleLastPurchaseGet(sale [20]byte, buyer [20]byte) (int64, bool, error) {
	ts, ok := m.purchases[purchaseKey(sale, buyer)]
	return ts, ok, nil
}

func (m *mockState) LandSaleLastPurchasePut(sale [20]byte, buyer [20]byte, ts int64) error {
	m.purchases[purchaseKey(sale, buyer)] = ts
	return nil
}

func (m *mockState) LandSaleClaimGet(sale [20]byte, tokenID *big.Int) (bool, error) {
	return m.claims[fmt.Sprintf("%x/%s", sale, tokenID)], nil
}

func (m *mockState) LandSaleClaimPut(sale [20]byte, tokenID *big.Int) error {
	m.claims[fmt.Sprintf("%x/%s", sale, tokenID)] = true
	return nil
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	if v, ok := m.balances[addr]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func allowanceKey(owner, spender [20]byte) string {
	return fmt.Sprintf("%x/%x", owner, spender)
}

func (m *mockState) allowance(owner, spender [20]byte) *big.Int {
	if v, ok := m.allowances[allowanceKey(owner, spender)]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

type fakeToken struct {
	st    *mockState
	calls int
}

func (t *fakeToken) Allowance(owner [20]byte, spender [20]byte) (*big.Int, error) {
	return t.st.allowance(owner, spender), nil
}

func (t *fakeToken) TransferFrom(spender [20]byte, owner [20]byte, recipient [20]byte, amount *big.Int) error {
	t.calls++
	allowed := t.st.allowance(owner, spender)
	if allowed.Cmp(amount) < 0 {
		return errFakeInsufficientAllow
	}
	balance := t.st.balance(owner)
	if balance.Cmp(amount) < 0 {
		return errFakeInsufficientFunds
	}
	t.st.allowances[allowanceKey(owner, spender)] = allowed.Sub(allowed, amount)
	t.st.balances[owner] = balance.Sub(balance, amount)
	t.st.balances[recipient] = new(big.Int).Add(t.st.balance(recipient), amount)
	return nil
}

type fakeRegistry struct {
	st     *mockState
	minter [20]byte
}

func (r *fakeRegistry) Mint(caller [20]byte, owner [20]byte, zone uint64, x, y int64) (*big.Int, error) {
	if caller != r.minter {
		return nil, errFakeMissingRole
	}
	key := fmt.Sprintf("%d:%d:%d", zone, x, y)
	if _, taken := r.st.parcels[key]; taken {
		return nil, errFakeOccupied
	}
	r.st.nextParcel++
	id := big.NewInt(r.st.nextParcel)
	r.st.parcels[key] = id
	return new(big.Int).Set(id), nil
}

type fakeWhitelist struct {
	owners map[string][20]byte
}

func (w *fakeWhitelist) OwnerOf(id *big.Int) ([20]byte, error) {
	owner, ok := w.owners[id.String()]
	if !ok {
		return [20]byte{}, errFakeNonexistent
	}
	return owner, nil
}

type fakeResolver struct {
	token     *fakeToken
	registry  *fakeRegistry
	whitelist *fakeWhitelist
}

func (r *fakeResolver) PaymentToken([20]byte) (PaymentToken, error)     { return r.token, nil }
func (r *fakeResolver) LandRegistry([20]byte) (LandRegistry, error)     { return r.registry, nil }
func (r *fakeResolver) WhitelistToken([20]byte) (WhitelistToken, error) { return r.whitelist, nil }

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.types = append(r.types, evt.EventType())
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

var (
	saleAddr      = addr(0xa0)
	authorityAddr = addr(0xa1)
	tokenAddr     = addr(0xb0)
	registryAddr  = addr(0xb1)
	whitelistAddr = addr(0xb2)
)

type harness struct {
	engine   *Engine
	state    *mockState
	resolver *fakeResolver
	clock    int64
}

func (h *harness) advance(seconds int64) { h.clock += seconds }

func (h *harness) fund(buyer [20]byte, balance, approved *big.Int) {
	h.state.balances[buyer] = new(big.Int).Set(balance)
	h.state.allowances[allowanceKey(buyer, saleAddr)] = new(big.Int).Set(approved)
}

// newHarness returns a bootstrapped engine wired to fake collaborators with
// every collaborator address configured.
func newHarness(t *testing.T) *harness {
	t.Helper()
	st := newMockState()
	h := &harness{state: st, clock: 1_700_000_000}
	h.resolver = &fakeResolver{
		token:     &fakeToken{st: st},
		registry:  &fakeRegistry{st: st, minter: saleAddr},
		whitelist: &fakeWhitelist{owners: make(map[string][20]byte)},
	}
	engine := NewEngine(saleAddr)
	engine.SetState(st)
	engine.SetResolver(h.resolver)
	engine.SetNowFunc(func() int64 { return h.clock })
	if _, err := engine.Bootstrap(authorityAddr); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := engine.SetPaymentToken(authorityAddr, tokenAddr); err != nil {
		t.Fatalf("set payment token: %v", err)
	}
	if err := engine.SetLandRegistry(authorityAddr, registryAddr); err != nil {
		t.Fatalf("set land registry: %v", err)
	}
	if err := engine.SetWhitelistToken(authorityAddr, whitelistAddr); err != nil {
		t.Fatalf("set whitelist token: %v", err)
	}
	h.engine = engine
	return h
}

func ether(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}
