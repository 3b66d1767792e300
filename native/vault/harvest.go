package vault

import (
	"math/big"

	"yieldvault/crypto"
	nativecommon "yieldvault/native/common"
)

// Harvest reconciles the venue's reported value against the fixed-rate
// expectation, mints protocol-fee shares for any surplus and rolls the
// accounting baseline forward. Depositors are guaranteed the fixed rate and
// no more: the minted fee shares dilute every other holder by exactly the
// surplus. Returns the fee shares minted.
func (e *Engine) Harvest(caller crypto.Address) (*big.Int, error) {
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
	if err := e.authorize(caller, OpHarvest); err != nil {
		return nil, err
	}

	vault, err := e.ensureVault()
	if err != nil {
		return nil, err
	}
	if !vault.Initialized {
		return nil, ErrNotInitialized
	}

	now := e.nowFn()
	if now < vault.LastHarvestUnix+int64(vault.HarvestDelaySeconds) {
		return nil, ErrHarvestTooSoon
	}

	snap := e.state.Snapshot()
	minted, err := e.harvest(vault, caller, now)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	return minted, nil
}

func (e *Engine) harvest(vault *VaultState, caller crypto.Address, now int64) (*big.Int, error) {
	observed, err := e.venueValue()
	if err != nil {
		return nil, err
	}

	// When the venue reports less than the recorded baseline the loss is
	// deferred: no fee is minted, the baseline resyncs downward and the
	// shortfall is surfaced through the event for observers.
	realProfit := new(big.Int).Sub(observed, vault.TotalDelegatedHoldings)
	shortfall := big.NewInt(0)
	if realProfit.Sign() < 0 {
		shortfall = new(big.Int).Neg(realProfit)
		realProfit = big.NewInt(0)
	}

	elapsed := now - vault.LastHarvestUnix
	if elapsed < 0 {
		elapsed = 0
	}
	growth := new(big.Int).Mul(vault.RatePerSecond, big.NewInt(elapsed))
	expected, err := mulDivDown(vault.TotalDelegatedHoldings, growth, ray)
	if err != nil {
		return nil, err
	}

	delta := big.NewInt(0)
	if realProfit.Cmp(expected) > 0 {
		delta = new(big.Int).Sub(realProfit, expected)
	}

	feeShares := big.NewInt(0)
	if delta.Sign() > 0 {
		// Share price is evaluated before the resync so the surplus itself
		// does not deflate the shares it buys.
		holdings, herr := e.totalHoldings(vault)
		if herr != nil {
			return nil, herr
		}
		feeShares, err = sharesForAssets(delta, vault.TotalShares, holdings)
		if err != nil {
			return nil, err
		}
		if feeShares.Sign() > 0 {
			feeAccount, aerr := e.ensureAccount(e.engineAddress)
			if aerr != nil {
				return nil, aerr
			}
			feeAccount.ShareBalance = new(big.Int).Add(feeAccount.ShareBalance, feeShares)
			vault.TotalShares = new(big.Int).Add(vault.TotalShares, feeShares)
			if err := e.state.PutAccount(feeAccount); err != nil {
				return nil, err
			}
		}
	}

	// Resync absorbs the rounding drift of this cycle into the baseline for
	// the next one.
	vault.TotalDelegatedHoldings = observed
	vault.LastHarvestUnix = now
	if vault.PendingHarvestDelaySeconds != 0 {
		vault.HarvestDelaySeconds = vault.PendingHarvestDelaySeconds
		vault.PendingHarvestDelaySeconds = 0
	}
	if err := e.state.PutVault(vault); err != nil {
		return nil, err
	}

	e.emit(NewHarvestEvent(caller, observed, expected, delta, feeShares, shortfall, now))
	return feeShares, nil
}
