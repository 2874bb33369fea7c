package token

import (
	"fmt"
	"math/big"

	"landsale/core/events"
	"landsale/core/types"
)

type ledgerState interface {
	TokenMetadataGet(contract [20]byte) (*Metadata, bool, error)
	TokenMetadataPut(meta *Metadata) error
	TokenBalanceGet(contract [20]byte, owner [20]byte) (*big.Int, error)
	TokenBalancePut(contract [20]byte, owner [20]byte, amount *big.Int) error
	TokenAllowanceGet(contract [20]byte, owner [20]byte, spender [20]byte) (*big.Int, error)
	TokenAllowancePut(contract [20]byte, owner [20]byte, spender [20]byte, amount *big.Int) error
}

// Ledger hosts every fungible token contract registered in state. Each
// contract is addressed by its 20-byte identity.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger returns a ledger with a no-op emitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter used by the ledger.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt *types.Event) {
	if l == nil || evt == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(WrapEvent(evt))
}

func isZero(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Register creates a token contract at meta.Address owned by meta.Owner.
func (l *Ledger) Register(meta *Metadata) (*Metadata, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if meta == nil {
		return nil, ErrInvalidMetadata
	}
	record := meta.Clone()
	if isZero(record.Address) || isZero(record.Owner) {
		return nil, fmt.Errorf("%w: contract and owner required", ErrInvalidAddress)
	}
	if err := record.normalise(); err != nil {
		return nil, err
	}
	if _, ok, err := l.state.TokenMetadataGet(record.Address); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrTokenExists
	}
	record.TotalSupply = big.NewInt(0)
	if err := l.state.TokenMetadataPut(record); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// Metadata returns the registered contract metadata.
func (l *Ledger) Metadata(contract [20]byte) (*Metadata, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	meta, ok, err := l.state.TokenMetadataGet(contract)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownToken
	}
	return meta, nil
}

// Exists reports whether a token contract is registered at the address.
func (l *Ledger) Exists(contract [20]byte) bool {
	if l == nil || l.state == nil {
		return false
	}
	_, ok, err := l.state.TokenMetadataGet(contract)
	return err == nil && ok
}

// Mint credits amount to recipient. Only the contract owner may mint.
func (l *Ledger) Mint(contract [20]byte, caller [20]byte, to [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if isZero(to) {
		return fmt.Errorf("%w: recipient", ErrInvalidAddress)
	}
	meta, err := l.Metadata(contract)
	if err != nil {
		return err
	}
	if caller != meta.Owner {
		return ErrNotOwner
	}
	balance, err := l.state.TokenBalanceGet(contract, to)
	if err != nil {
		return err
	}
	if err := l.state.TokenBalancePut(contract, to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	meta.TotalSupply = new(big.Int).Add(meta.TotalSupply, amount)
	if err := l.state.TokenMetadataPut(meta); err != nil {
		return err
	}
	l.emit(TransferEvent(contract, [20]byte{}, to, amount))
	return nil
}

// BalanceOf returns the balance held by owner.
func (l *Ledger) BalanceOf(contract [20]byte, owner [20]byte) (*big.Int, error) {
	if _, err := l.Metadata(contract); err != nil {
		return nil, err
	}
	return l.state.TokenBalanceGet(contract, owner)
}

// Approve sets the amount spender may pull from owner, replacing any previous
// allowance.
func (l *Ledger) Approve(contract [20]byte, owner [20]byte, spender [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if isZero(owner) || isZero(spender) {
		return fmt.Errorf("%w: owner and spender required", ErrInvalidAddress)
	}
	if _, err := l.Metadata(contract); err != nil {
		return err
	}
	if err := l.state.TokenAllowancePut(contract, owner, spender, new(big.Int).Set(amount)); err != nil {
		return err
	}
	l.emit(ApprovalEvent(contract, owner, spender, amount))
	return nil
}

// Allowance returns the amount spender may still pull from owner.
func (l *Ledger) Allowance(contract [20]byte, owner [20]byte, spender [20]byte) (*big.Int, error) {
	if _, err := l.Metadata(contract); err != nil {
		return nil, err
	}
	return l.state.TokenAllowanceGet(contract, owner, spender)
}

// Transfer moves amount from the caller to recipient.
func (l *Ledger) Transfer(contract [20]byte, from [20]byte, to [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if _, err := l.Metadata(contract); err != nil {
		return err
	}
	return l.move(contract, from, to, amount)
}

// TransferFrom moves amount from owner to recipient on behalf of spender.
// The allowance is checked before the balance and decremented by amount.
func (l *Ledger) TransferFrom(contract [20]byte, spender [20]byte, owner [20]byte, recipient [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if _, err := l.Metadata(contract); err != nil {
		return err
	}
	allowed, err := l.state.TokenAllowanceGet(contract, owner, spender)
	if err != nil {
		return err
	}
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowed, amount)
	}
	if err := l.move(contract, owner, recipient, amount); err != nil {
		return err
	}
	return l.state.TokenAllowancePut(contract, owner, spender, new(big.Int).Sub(allowed, amount))
}

func (l *Ledger) move(contract [20]byte, from [20]byte, to [20]byte, amount *big.Int) error {
	if isZero(from) || isZero(to) {
		return fmt.Errorf("%w: sender and recipient required", ErrInvalidAddress)
	}
	fromBalance, err := l.state.TokenBalanceGet(contract, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance, amount)
	}
	if err := l.state.TokenBalancePut(contract, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := l.state.TokenBalanceGet(contract, to)
	if err != nil {
		return err
	}
	if err := l.state.TokenBalancePut(contract, to, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	l.emit(TransferEvent(contract, from, to, amount))
	return nil
}

// Handle binds the ledger to one contract address.
type Handle struct {
	ledger   *Ledger
	contract [20]byte
}

// Bind returns a handle for the contract or ErrUnknownToken.
func (l *Ledger) Bind(contract [20]byte) (*Handle, error) {
	if _, err := l.Metadata(contract); err != nil {
		return nil, err
	}
	return &Handle{ledger: l, contract: contract}, nil
}

// Address returns the bound contract address.
func (h *Handle) Address() [20]byte { return h.contract }

// Allowance implements the payment token boundary.
func (h *Handle) Allowance(owner [20]byte, spender [20]byte) (*big.Int, error) {
	return h.ledger.Allowance(h.contract, owner, spender)
}

// TransferFrom implements the payment token boundary.
func (h *Handle) TransferFrom(spender [20]byte, owner [20]byte, recipient [20]byte, amount *big.Int) error {
	return h.ledger.TransferFrom(h.contract, spender, owner, recipient, amount)
}

// BalanceOf returns the balance held by owner.
func (h *Handle) BalanceOf(owner [20]byte) (*big.Int, error) {
	return h.ledger.BalanceOf(h.contract, owner)
}
