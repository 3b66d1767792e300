package sim

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"yieldvault/crypto"
)

var (
	errNoShares      = errors.New("sim venue: insufficient venue shares")
	errEmptyVenue    = errors.New("sim venue: no balance to withdraw against")
	errNotApproved   = errors.New("sim venue: deposit exceeds allowance")
	errInvalidShares = errors.New("sim venue: share amount must be positive")
)

var ray = func() *big.Int {
	v, _ := new(big.Int).SetString("1000000000000000000000000000", 10)
	return v
}()

// Venue is an in-process yield venue with a deterministic per-second growth
// rate. Yield accrues virtually and is realized by minting sim-token units at
// withdrawal time, so the venue can always honor what Balance reports.
type Venue struct {
	mu    sync.Mutex
	token *Token
	addr  crypto.Address // the venue's own token account
	owner crypto.Address // the engine context this venue serves

	shares      map[string]*big.Int
	totalShares *big.Int

	principal   *big.Int // token units actually held
	accrued     *big.Int // virtual yield not yet minted
	rateRay     *big.Int // growth per second, ray-scaled
	lastAccrual int64
	nowFn       func() int64
}

// NewVenue builds a venue serving one engine. rateRay is the per-second
// growth applied to the venue's balance, ray-scaled; zero disables accrual.
func NewVenue(token *Token, venueAddr, engineAddr crypto.Address, rateRay *big.Int) *Venue {
	if rateRay == nil {
		rateRay = big.NewInt(0)
	}
	now := time.Now().Unix()
	return &Venue{
		token:       token,
		addr:        venueAddr,
		owner:       engineAddr,
		shares:      make(map[string]*big.Int),
		totalShares: big.NewInt(0),
		principal:   big.NewInt(0),
		accrued:     big.NewInt(0),
		rateRay:     new(big.Int).Set(rateRay),
		lastAccrual: now,
	}
}

// SetNowFunc overrides the wall clock used for accrual.
func (v *Venue) SetNowFunc(now func() int64) {
	if now == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nowFn = now
	v.lastAccrual = now()
}

// AddYield credits extra yield directly, bypassing the rate model. Test and
// faucet helper.
func (v *Venue) AddYield(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accrued = new(big.Int).Add(v.accrued, amount)
}

func (v *Venue) now() int64 {
	if v.nowFn != nil {
		return v.nowFn()
	}
	return time.Now().Unix()
}

// accrue folds rate-based growth since the last observation into the virtual
// yield bucket. Callers hold v.mu.
func (v *Venue) accrue() {
	now := v.now()
	elapsed := now - v.lastAccrual
	v.lastAccrual = now
	if elapsed <= 0 || v.rateRay.Sign() == 0 {
		return
	}
	base := new(big.Int).Add(v.principal, v.accrued)
	if base.Sign() == 0 {
		return
	}
	growth := new(big.Int).Mul(base, v.rateRay)
	growth.Mul(growth, big.NewInt(elapsed))
	growth.Quo(growth, ray)
	v.accrued = new(big.Int).Add(v.accrued, growth)
}

func (v *Venue) balanceLocked() *big.Int {
	return new(big.Int).Add(v.principal, v.accrued)
}

func (v *Venue) shareBalance(owner crypto.Address) *big.Int {
	if bal, ok := v.shares[key(owner)]; ok {
		return bal
	}
	zero := big.NewInt(0)
	v.shares[key(owner)] = zero
	return zero
}

// Deposit pulls previously approved asset from the engine and mints venue
// shares at the current venue share price.
func (v *Venue) Deposit(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidShares
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accrue()

	ledger := v.token.Ledger(v.addr)
	if err := ledger.TransferFrom(v.owner, v.addr, amount); err != nil {
		if errors.Is(err, errInsufficientAllowance) {
			return errNotApproved
		}
		return err
	}

	minted := new(big.Int)
	balance := v.balanceLocked()
	if v.totalShares.Sign() == 0 || balance.Sign() == 0 {
		minted.Set(amount)
	} else {
		minted.Mul(amount, v.totalShares)
		minted.Quo(minted, balance)
		if minted.Sign() == 0 {
			minted.SetInt64(1)
		}
	}

	v.shares[key(v.owner)] = new(big.Int).Add(v.shareBalance(v.owner), minted)
	v.totalShares = new(big.Int).Add(v.totalShares, minted)
	v.principal = new(big.Int).Add(v.principal, amount)
	return nil
}

// Withdraw burns venue shares and returns the corresponding asset to the
// engine, minting the realized yield portion on the way out.
func (v *Venue) Withdraw(shares *big.Int) error {
	if shares == nil || shares.Sign() <= 0 {
		return errInvalidShares
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accrue()

	if v.totalShares.Sign() == 0 {
		return errEmptyVenue
	}
	held := v.shareBalance(v.owner)
	if held.Cmp(shares) < 0 {
		return errNoShares
	}

	balance := v.balanceLocked()
	assets := new(big.Int).Mul(shares, balance)
	assets.Quo(assets, v.totalShares)

	// Realize virtual yield so the token transfer below can be honored.
	if v.principal.Cmp(assets) < 0 {
		missing := new(big.Int).Sub(assets, v.principal)
		v.token.Mint(v.addr, missing)
		v.accrued = new(big.Int).Sub(v.accrued, missing)
		if v.accrued.Sign() < 0 {
			v.accrued = big.NewInt(0)
		}
		v.principal = new(big.Int).Add(v.principal, missing)
	}

	ledger := v.token.Ledger(v.addr)
	if err := ledger.Transfer(v.owner, assets); err != nil {
		return err
	}

	v.shares[key(v.owner)] = new(big.Int).Sub(held, shares)
	v.totalShares = new(big.Int).Sub(v.totalShares, shares)
	v.principal = new(big.Int).Sub(v.principal, assets)
	if v.principal.Sign() < 0 {
		v.principal = big.NewInt(0)
	}
	return nil
}

// Balance reports the asset value held for the engine context.
func (v *Venue) Balance() (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accrue()
	return v.balanceLocked(), nil
}

// TotalSupply reports the venue's own share supply.
func (v *Venue) TotalSupply() (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.totalShares), nil
}

// PricePerShare reports the ray-scaled asset value of one venue share.
func (v *Venue) PricePerShare() (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accrue()
	if v.totalShares.Sign() == 0 {
		return new(big.Int).Set(ray), nil
	}
	price := new(big.Int).Mul(v.balanceLocked(), ray)
	return price.Quo(price, v.totalShares), nil
}

// ShareBalanceOf reports the venue shares held for the given owner.
func (v *Venue) ShareBalanceOf(owner crypto.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.shareBalance(owner)), nil
}
