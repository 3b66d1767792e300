package sim

import (
	"errors"
	"math/big"
	"sync"

	"yieldvault/crypto"
)

var (
	errInsufficientBalance   = errors.New("sim token: insufficient balance")
	errInsufficientAllowance = errors.New("sim token: insufficient allowance")
	errInvalidAmount         = errors.New("sim token: amount must be positive")
)

// Token is an in-process fungible-token ledger used in local mode and tests.
// It mirrors the failure behavior of a real asset: transfers beyond balance
// or allowance fail hard instead of silently succeeding.
type Token struct {
	mu         sync.Mutex
	balances   map[string]*big.Int
	allowances map[string]map[string]*big.Int
}

func NewToken() *Token {
	return &Token{
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]map[string]*big.Int),
	}
}

func key(addr crypto.Address) string { return string(addr.Bytes()) }

func (t *Token) balance(addr crypto.Address) *big.Int {
	if bal, ok := t.balances[key(addr)]; ok {
		return bal
	}
	zero := big.NewInt(0)
	t.balances[key(addr)] = zero
	return zero
}

// Mint credits freshly created units to an account. It is the faucet for
// local runs and the mechanism the sim venue uses to realize accrued yield.
func (t *Token) Mint(to crypto.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[key(to)] = new(big.Int).Add(t.balance(to), amount)
}

// ApproveFor records an allowance on behalf of an owner. Local faucet helper;
// real deployments carry approvals on chain.
func (t *Token) ApproveFor(owner, spender crypto.Address, amount *big.Int) {
	if amount == nil || amount.Sign() < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAllowance(owner, spender, new(big.Int).Set(amount))
}

// BalanceOf reports an account balance.
func (t *Token) BalanceOf(account crypto.Address) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.balance(account)), nil
}

// Ledger returns a sender-bound view of the token. The view satisfies the
// engine's Token capability contract: TransferFrom spends the sender's
// allowance, Transfer and Approve act as the bound identity.
func (t *Token) Ledger(owner crypto.Address) *Ledger {
	return &Ledger{token: t, owner: owner}
}

// Ledger is a Token view bound to a sender identity.
type Ledger struct {
	token *Token
	owner crypto.Address
}

func (l *Ledger) TransferFrom(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	t := l.token
	t.mu.Lock()
	defer t.mu.Unlock()
	if !from.Equal(l.owner) {
		allowed := t.allowance(from, l.owner)
		if allowed.Cmp(amount) < 0 {
			return errInsufficientAllowance
		}
		t.setAllowance(from, l.owner, new(big.Int).Sub(allowed, amount))
	}
	fromBal := t.balance(from)
	if fromBal.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	t.balances[key(from)] = new(big.Int).Sub(fromBal, amount)
	t.balances[key(to)] = new(big.Int).Add(t.balance(to), amount)
	return nil
}

func (l *Ledger) Transfer(to crypto.Address, amount *big.Int) error {
	return l.TransferFrom(l.owner, to, amount)
}

func (l *Ledger) Approve(spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	t := l.token
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAllowance(l.owner, spender, new(big.Int).Set(amount))
	return nil
}

func (l *Ledger) BalanceOf(account crypto.Address) (*big.Int, error) {
	return l.token.BalanceOf(account)
}

func (t *Token) allowance(owner, spender crypto.Address) *big.Int {
	byOwner, ok := t.allowances[key(owner)]
	if !ok {
		return big.NewInt(0)
	}
	if allowed, ok := byOwner[key(spender)]; ok {
		return allowed
	}
	return big.NewInt(0)
}

func (t *Token) setAllowance(owner, spender crypto.Address, amount *big.Int) {
	byOwner, ok := t.allowances[key(owner)]
	if !ok {
		byOwner = make(map[string]*big.Int)
		t.allowances[key(owner)] = byOwner
	}
	byOwner[key(spender)] = amount
}
