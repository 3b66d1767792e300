package vault

import "math/big"

// float reports the idle asset balance sitting on the engine's own address.
func (e *Engine) float() (*big.Int, error) {
	bal, err := e.token.BalanceOf(e.engineAddress)
	if err != nil {
		return nil, err
	}
	if bal == nil || bal.Sign() < 0 {
		return nil, ErrNegativeValue
	}
	return bal, nil
}

// delegate moves an asset amount from the float into the yield venue. The
// delegated-holdings counter is bumped before the external calls so a
// re-entrant read never observes venue capital the counter does not cover.
func (e *Engine) delegate(vault *VaultState, amount *big.Int) error {
	vault.TotalDelegatedHoldings = new(big.Int).Add(vault.TotalDelegatedHoldings, amount)
	if err := e.state.PutVault(vault); err != nil {
		return err
	}
	if err := e.token.Approve(e.venueAddress, amount); err != nil {
		return err
	}
	return e.venue.Deposit(amount)
}

// retrieve makes up to the requested asset amount available on the engine's
// float, pulling the shortfall from the venue when the float cannot cover it.
// The venue itself may return less than the shortfall; that is a silent
// short-pay, and the returned amount can therefore be below the request.
func (e *Engine) retrieve(vault *VaultState, amount *big.Int) (*big.Int, error) {
	idle, err := e.float()
	if err != nil {
		return nil, err
	}
	if idle.Cmp(amount) >= 0 {
		return new(big.Int).Set(amount), nil
	}

	shortfall := new(big.Int).Sub(amount, idle)

	venueBalance, err := e.venue.Balance()
	if err != nil {
		return nil, err
	}
	venueSupply, err := e.venue.TotalSupply()
	if err != nil {
		return nil, err
	}
	venueShares, err := mulDivDown(shortfall, venueSupply, venueBalance)
	if err != nil {
		return nil, err
	}
	if err := e.venue.Withdraw(venueShares); err != nil {
		return nil, err
	}

	vault.TotalDelegatedHoldings = new(big.Int).Sub(vault.TotalDelegatedHoldings, shortfall)
	if vault.TotalDelegatedHoldings.Sign() < 0 {
		vault.TotalDelegatedHoldings = big.NewInt(0)
	}
	if err := e.state.PutVault(vault); err != nil {
		return nil, err
	}

	idle, err = e.float()
	if err != nil {
		return nil, err
	}
	return minBig(new(big.Int).Set(amount), idle), nil
}

// venueValue prices the engine's venue position in asset units, rounding up.
// Valuing the position high keeps withdrawals from being overpaid out of an
// undervalued venue holding.
func (e *Engine) venueValue() (*big.Int, error) {
	shares, err := e.venue.ShareBalanceOf(e.engineAddress)
	if err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() == 0 {
		return big.NewInt(0), nil
	}
	price, err := e.venue.PricePerShare()
	if err != nil {
		return nil, err
	}
	return mulDivUp(shares, price, ray)
}

// totalHoldings is the float plus the recorded delegated holdings.
func (e *Engine) totalHoldings(vault *VaultState) (*big.Int, error) {
	idle, err := e.float()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(idle, vault.TotalDelegatedHoldings), nil
}
