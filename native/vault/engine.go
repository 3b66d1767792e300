package vault

import (
	"math/big"
	"sync/atomic"
	"time"

	"yieldvault/core/events"
	"yieldvault/core/types"
	"yieldvault/crypto"
	nativecommon "yieldvault/native/common"
)

const moduleName = "vault"

// engineState is the persistence contract the engine requires. Snapshots make
// every mutating operation atomic: any failure after the first write reverts
// the call's effects as a unit.
type engineState interface {
	GetVault() (*VaultState, error)
	PutVault(vault *VaultState) error
	GetAccount(addr crypto.Address) (*AccountRecord, error)
	PutAccount(account *AccountRecord) error
	Snapshot() int
	RevertToSnapshot(id int)
}

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// Engine orchestrates the share ledger, capital router and harvest flow for a
// single (asset, venue) pair. It is a sequential state machine: every public
// mutating entry point holds a non-blocking whole-engine guard, and a call
// that re-enters while one is in flight fails immediately.
type Engine struct {
	state engineState
	token Token
	venue Venue
	auth  Authorizer

	engineAddress crypto.Address
	venueAddress  crypto.Address

	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64

	busy atomic.Bool
}

// NewEngine constructs a vault engine. The engine address doubles as the
// protocol-fee account identity; the venue address is the spender granted
// asset allowances during delegation.
func NewEngine(engineAddr, venueAddr crypto.Address) *Engine {
	return &Engine{
		engineAddress: engineAddr,
		venueAddress:  venueAddr,
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCollaborators wires the asset token and yield venue adapters.
func (e *Engine) SetCollaborators(token Token, venue Venue) {
	e.token = token
	e.venue = venue
}

// SetAuthorizer configures the policy consulted for privileged operations.
// A nil authorizer denies every privileged call.
func (e *Engine) SetAuthorizer(auth Authorizer) { e.auth = auth }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the wall clock. Tests use it to drive the delay gates.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		return
	}
	e.nowFn = now
}

// EngineAddress returns the engine's own identity, which is also the
// protocol-fee account.
func (e *Engine) EngineAddress() crypto.Address { return e.engineAddress }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event})
}

// enter acquires the non-reentrant guard for the duration of one public
// mutating operation. The returned release must run on every exit path.
func (e *Engine) enter() (func(), error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { e.busy.Store(false) }, nil
}

func (e *Engine) checkWired() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.token == nil || e.venue == nil {
		return ErrNilCollaborator
	}
	return nil
}

func (e *Engine) authorize(caller crypto.Address, op string) error {
	if e.auth == nil || !e.auth.Allow(caller, op) {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) ensureVault() (*VaultState, error) {
	vault, err := e.state.GetVault()
	if err != nil {
		return nil, err
	}
	if vault == nil {
		vault = NewVaultState()
	}
	if vault.TotalShares == nil {
		vault.TotalShares = new(big.Int).Set(shareSentinel)
	}
	if vault.TotalDelegatedHoldings == nil {
		vault.TotalDelegatedHoldings = big.NewInt(0)
	}
	if vault.RatePerSecond == nil {
		vault.RatePerSecond = big.NewInt(0)
	}
	return vault, nil
}

func (e *Engine) ensureAccount(addr crypto.Address) (*AccountRecord, error) {
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &AccountRecord{Address: addr}
	}
	if account.ShareBalance == nil {
		account.ShareBalance = big.NewInt(0)
	}
	return account, nil
}

// Initialize performs the one-time lifecycle transition: it flips the share
// supply from the sentinel to zero, opening deposits, and starts the harvest
// clock. The harvest delay must already be configured so a fresh instance can
// never be harvested at will.
func (e *Engine) Initialize(caller crypto.Address) error {
	if err := e.checkWired(); err != nil {
		return err
	}
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorize(caller, OpInitialize); err != nil {
		return err
	}

	vault, err := e.ensureVault()
	if err != nil {
		return err
	}
	if vault.Initialized {
		return ErrAlreadyInitialized
	}
	if vault.HarvestDelaySeconds == 0 {
		return ErrZeroDelay
	}

	now := e.nowFn()
	vault.Initialized = true
	vault.TotalShares = big.NewInt(0)
	vault.LastHarvestUnix = now

	snap := e.state.Snapshot()
	if err := e.state.PutVault(vault); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(NewInitializedEvent(caller, now))
	return nil
}

// Deposit pulls the asset amount from the caller, credits shares at the
// current share price and delegates the full amount to the venue. The share
// credit lands before the external delegation call so a reentrant callback
// can never double-credit.
func (e *Engine) Deposit(caller crypto.Address, amount *big.Int) (*big.Int, error) {
	if err := e.checkWired(); err != nil {
		return nil, err
	}
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	vault, err := e.ensureVault()
	if err != nil {
		return nil, err
	}
	if !vault.Initialized {
		return nil, ErrNotInitialized
	}

	holdings, err := e.totalHoldings(vault)
	if err != nil {
		return nil, err
	}
	shares, err := sharesForAssets(amount, vault.TotalShares, holdings)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return nil, ErrZeroShares
	}

	snap := e.state.Snapshot()
	minted, err := e.deposit(vault, caller, amount, shares)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	return minted, nil
}

func (e *Engine) deposit(vault *VaultState, caller crypto.Address, amount, shares *big.Int) (*big.Int, error) {
	if err := e.token.TransferFrom(caller, e.engineAddress, amount); err != nil {
		return nil, err
	}

	account, err := e.ensureAccount(caller)
	if err != nil {
		return nil, err
	}
	now := e.nowFn()
	account.ShareBalance = new(big.Int).Add(account.ShareBalance, shares)
	account.LastDepositUnix = now
	vault.TotalShares = new(big.Int).Add(vault.TotalShares, shares)

	if err := e.state.PutAccount(account); err != nil {
		return nil, err
	}
	if err := e.state.PutVault(vault); err != nil {
		return nil, err
	}

	if err := e.delegate(vault, amount); err != nil {
		return nil, err
	}

	e.emit(NewDepositEvent(caller, amount, shares, now))
	return shares, nil
}

// Withdraw burns shares at the round-up rate for the requested asset amount,
// retrieves the asset (pulling from the venue when the float is short) and
// pays out whatever was retrieved. The payout may be below the request when
// the venue short-pays; callers must tolerate that.
func (e *Engine) Withdraw(caller crypto.Address, amount *big.Int) (*big.Int, error) {
	if err := e.checkWired(); err != nil {
		return nil, err
	}
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	vault, err := e.ensureVault()
	if err != nil {
		return nil, err
	}
	if !vault.Initialized {
		return nil, ErrNotInitialized
	}

	account, err := e.ensureAccount(caller)
	if err != nil {
		return nil, err
	}
	now := e.nowFn()
	if now < account.LastDepositUnix+int64(vault.WithdrawalDelaySeconds) {
		return nil, ErrWithdrawalTooSoon
	}

	holdings, err := e.totalHoldings(vault)
	if err != nil {
		return nil, err
	}
	shares, err := sharesForAssetsCeil(amount, vault.TotalShares, holdings)
	if err != nil {
		return nil, err
	}
	if account.ShareBalance.Cmp(shares) < 0 {
		return nil, ErrInsufficientShares
	}

	snap := e.state.Snapshot()
	paid, err := e.withdraw(vault, account, caller, amount, shares)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	return paid, nil
}

func (e *Engine) withdraw(vault *VaultState, account *AccountRecord, caller crypto.Address, amount, shares *big.Int) (*big.Int, error) {
	account.ShareBalance = new(big.Int).Sub(account.ShareBalance, shares)
	vault.TotalShares = new(big.Int).Sub(vault.TotalShares, shares)

	if err := e.state.PutAccount(account); err != nil {
		return nil, err
	}
	if err := e.state.PutVault(vault); err != nil {
		return nil, err
	}

	retrieved, err := e.retrieve(vault, amount)
	if err != nil {
		return nil, err
	}
	if err := e.token.Transfer(caller, retrieved); err != nil {
		return nil, err
	}

	e.emit(NewWithdrawEvent(caller, amount, retrieved, shares))
	return retrieved, nil
}

// ClaimProfit redeems the protocol-fee account's entire share balance through
// the retrieve path and transfers the proceeds to the caller.
func (e *Engine) ClaimProfit(caller crypto.Address) (*big.Int, error) {
	if err := e.checkWired(); err != nil {
		return nil, err
	}
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.authorize(caller, OpClaimProfit); err != nil {
		return nil, err
	}

	vault, err := e.ensureVault()
	if err != nil {
		return nil, err
	}
	if !vault.Initialized {
		return nil, ErrNotInitialized
	}

	feeAccount, err := e.ensureAccount(e.engineAddress)
	if err != nil {
		return nil, err
	}
	feeShares := feeAccount.ShareBalance
	if feeShares.Sign() == 0 {
		return nil, ErrNothingToClaim
	}

	holdings, err := e.totalHoldings(vault)
	if err != nil {
		return nil, err
	}
	assets, err := assetsForShares(feeShares, vault.TotalShares, holdings)
	if err != nil {
		return nil, err
	}

	snap := e.state.Snapshot()
	paid, err := e.claimProfit(vault, feeAccount, caller, feeShares, assets)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	return paid, nil
}

func (e *Engine) claimProfit(vault *VaultState, feeAccount *AccountRecord, caller crypto.Address, feeShares, assets *big.Int) (*big.Int, error) {
	burned := new(big.Int).Set(feeShares)
	feeAccount.ShareBalance = big.NewInt(0)
	vault.TotalShares = new(big.Int).Sub(vault.TotalShares, burned)

	if err := e.state.PutAccount(feeAccount); err != nil {
		return nil, err
	}
	if err := e.state.PutVault(vault); err != nil {
		return nil, err
	}

	retrieved, err := e.retrieve(vault, assets)
	if err != nil {
		return nil, err
	}
	if err := e.token.Transfer(caller, retrieved); err != nil {
		return nil, err
	}

	e.emit(NewProfitClaimedEvent(caller, burned, retrieved))
	return retrieved, nil
}

// SetWithdrawalDelay updates the per-depositor withdrawal lock. The change is
// immediate; delays beyond one year are rejected, which also keeps the stored
// value safely inside int64 range for the eligibility arithmetic.
func (e *Engine) SetWithdrawalDelay(caller crypto.Address, seconds uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorize(caller, OpSetWithdrawalDelay); err != nil {
		return err
	}
	if seconds > secondsPerYear {
		return ErrDelayTooLong
	}

	vault, err := e.ensureVault()
	if err != nil {
		return err
	}
	vault.WithdrawalDelaySeconds = seconds

	snap := e.state.Snapshot()
	if err := e.state.PutVault(vault); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(NewWithdrawalDelayEvent(caller, seconds))
	return nil
}

// SetHarvestDelay updates the harvest gate. The very first delay ever set
// applies immediately (bootstrap); every later change is staged and applied
// at the next harvest boundary so it cannot retroactively shorten the cycle
// in flight.
func (e *Engine) SetHarvestDelay(caller crypto.Address, seconds uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorize(caller, OpSetHarvestDelay); err != nil {
		return err
	}
	if seconds == 0 {
		return ErrZeroDelay
	}
	if seconds > secondsPerYear {
		return ErrDelayTooLong
	}

	vault, err := e.ensureVault()
	if err != nil {
		return err
	}
	staged := vault.HarvestDelaySeconds != 0
	if staged {
		vault.PendingHarvestDelaySeconds = seconds
	} else {
		vault.HarvestDelaySeconds = seconds
	}

	snap := e.state.Snapshot()
	if err := e.state.PutVault(vault); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(NewHarvestDelayEvent(caller, seconds, staged))
	return nil
}

// SetFixedRate updates the ray-scaled per-second growth target credited to
// depositors. The change is immediate.
func (e *Engine) SetFixedRate(caller crypto.Address, rate *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorize(caller, OpSetFixedRate); err != nil {
		return err
	}
	if rate == nil || rate.Sign() < 0 {
		return ErrInvalidRate
	}

	vault, err := e.ensureVault()
	if err != nil {
		return err
	}
	vault.RatePerSecond = new(big.Int).Set(rate)

	snap := e.state.Snapshot()
	if err := e.state.PutVault(vault); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(NewFixedRateEvent(caller, rate))
	return nil
}

// --- Read-only views ---

// TotalHoldings reports float plus delegated holdings.
func (e *Engine) TotalHoldings() (*big.Int, error) {
	if err := e.checkWired(); err != nil {
		return nil, err
	}
	vault, err := e.ensureVault()
	if err != nil {
		return nil, err
	}
	return e.totalHoldings(vault)
}

// TotalFloat reports the idle asset balance held by the engine.
func (e *Engine) TotalFloat() (*big.Int, error) {
	if err := e.checkWired(); err != nil {
		return nil, err
	}
	return e.float()
}

// TotalShares reports the outstanding share supply, zero before
// initialization.
func (e *Engine) TotalShares() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	vault, err := e.ensureVault()
	if err != nil {
		return nil, err
	}
	if !vault.Initialized {
		return big.NewInt(0), nil
	}
	return cloneOrZero(vault.TotalShares), nil
}

// BalanceOf reports an account's share balance.
func (e *Engine) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	account, err := e.ensureAccount(addr)
	if err != nil {
		return nil, err
	}
	return cloneOrZero(account.ShareBalance), nil
}

// BalanceOfUnderlying reports the asset value of an account's shares at the
// current share price.
func (e *Engine) BalanceOfUnderlying(addr crypto.Address) (*big.Int, error) {
	if err := e.checkWired(); err != nil {
		return nil, err
	}
	vault, err := e.ensureVault()
	if err != nil {
		return nil, err
	}
	if !vault.Initialized {
		return nil, ErrNotInitialized
	}
	account, err := e.ensureAccount(addr)
	if err != nil {
		return nil, err
	}
	holdings, err := e.totalHoldings(vault)
	if err != nil {
		return nil, err
	}
	return assetsForShares(account.ShareBalance, vault.TotalShares, holdings)
}

// ConvertToShares quotes the shares a deposit of the given amount would mint.
func (e *Engine) ConvertToShares(amount *big.Int) (*big.Int, error) {
	if err := e.checkWired(); err != nil {
		return nil, err
	}
	vault, err := e.ensureVault()
	if err != nil {
		return nil, err
	}
	if !vault.Initialized {
		return nil, ErrNotInitialized
	}
	holdings, err := e.totalHoldings(vault)
	if err != nil {
		return nil, err
	}
	return sharesForAssets(amount, vault.TotalShares, holdings)
}

// ConvertToUnderlying quotes the asset value of the given shares.
func (e *Engine) ConvertToUnderlying(shares *big.Int) (*big.Int, error) {
	if err := e.checkWired(); err != nil {
		return nil, err
	}
	vault, err := e.ensureVault()
	if err != nil {
		return nil, err
	}
	if !vault.Initialized {
		return nil, ErrNotInitialized
	}
	holdings, err := e.totalHoldings(vault)
	if err != nil {
		return nil, err
	}
	return assetsForShares(shares, vault.TotalShares, holdings)
}

// VenueBalanceOfUnderlying reports the round-up valuation of the venue
// position.
func (e *Engine) VenueBalanceOfUnderlying() (*big.Int, error) {
	if err := e.checkWired(); err != nil {
		return nil, err
	}
	return e.venueValue()
}

// State returns a copy of the current vault state for observers.
func (e *Engine) State() (*VaultState, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	vault, err := e.ensureVault()
	if err != nil {
		return nil, err
	}
	copied := *vault
	copied.TotalShares = cloneOrZero(vault.TotalShares)
	copied.TotalDelegatedHoldings = cloneOrZero(vault.TotalDelegatedHoldings)
	copied.RatePerSecond = cloneOrZero(vault.RatePerSecond)
	return &copied, nil
}
