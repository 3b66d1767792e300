package vault

import (
	"errors"
	"math/big"
	"testing"
)

func TestHarvestGate(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)

	if _, err := rig.engine.Harvest(rig.operator); !errors.Is(err, ErrHarvestTooSoon) {
		t.Fatalf("expected ErrHarvestTooSoon right after initialize, got %v", err)
	}
	rig.advance(3599)
	if _, err := rig.engine.Harvest(rig.operator); !errors.Is(err, ErrHarvestTooSoon) {
		t.Fatalf("expected ErrHarvestTooSoon one second early, got %v", err)
	}
	rig.advance(1)
	if _, err := rig.engine.Harvest(rig.operator); err != nil {
		t.Fatalf("harvest at exact boundary: %v", err)
	}
}

func TestHarvestRequiresAuthorization(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)
	rig.advance(3600)
	if _, err := rig.engine.Harvest(rig.user); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestHarvestBeforeInitialize(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.engine.SetHarvestDelay(rig.operator, 3600); err != nil {
		t.Fatalf("set harvest delay: %v", err)
	}
	if _, err := rig.engine.Harvest(rig.operator); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestHarvestMintsSurplusFeeShares(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)
	if _, err := rig.engine.Deposit(rig.user, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	rig.venue.addYield(big.NewInt(10))
	rig.advance(3600)
	minted, err := rig.engine.Harvest(rig.operator)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	// Zero fixed rate: the whole 10-unit gain is surplus, priced against the
	// pre-resync 100-unit holdings.
	if minted.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("fee shares = %s, want 10", minted)
	}

	feeBalance, err := rig.engine.BalanceOf(rig.engine.EngineAddress())
	if err != nil {
		t.Fatalf("fee balance: %v", err)
	}
	if feeBalance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("fee account = %s shares, want 10", feeBalance)
	}

	state, err := rig.engine.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.TotalShares.Cmp(big.NewInt(110)) != 0 {
		t.Fatalf("total shares = %s, want 110", state.TotalShares)
	}
	if state.TotalDelegatedHoldings.Cmp(big.NewInt(110)) != 0 {
		t.Fatalf("delegated resynced to %s, want observed 110", state.TotalDelegatedHoldings)
	}
	if state.LastHarvestUnix != rig.now {
		t.Fatalf("harvest clock = %d, want %d", state.LastHarvestUnix, rig.now)
	}

	attrs := rig.events.lastOfType(EventTypeHarvest)
	if attrs == nil {
		t.Fatalf("no harvest event recorded")
	}
	if attrs["observed"] != "110" || attrs["surplus"] != "10" || attrs["feeShares"] != "10" {
		t.Fatalf("harvest event observed=%s surplus=%s feeShares=%s", attrs["observed"], attrs["surplus"], attrs["feeShares"])
	}
}

func TestHarvestFixedRateAbsorbsExpectedGrowth(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)
	// 1e23 ray-scaled per second: expected growth over 3600s on 100 units is
	// floor(100*3600*1e23/1e27) = 36.
	rate := new(big.Int).Exp(big.NewInt(10), big.NewInt(23), nil)
	if err := rig.engine.SetFixedRate(rig.operator, rate); err != nil {
		t.Fatalf("set fixed rate: %v", err)
	}
	if _, err := rig.engine.Deposit(rig.user, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	rig.venue.addYield(big.NewInt(50))
	rig.advance(3600)
	minted, err := rig.engine.Harvest(rig.operator)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	// Surplus 50-36=14 priced against 100 holdings.
	if minted.Cmp(big.NewInt(14)) != 0 {
		t.Fatalf("fee shares = %s, want 14", minted)
	}

	attrs := rig.events.lastOfType(EventTypeHarvest)
	if attrs == nil {
		t.Fatalf("no harvest event recorded")
	}
	if attrs["expected"] != "36" || attrs["surplus"] != "14" {
		t.Fatalf("harvest event expected=%s surplus=%s, want 36/14", attrs["expected"], attrs["surplus"])
	}
}

func TestHarvestUnderperformanceMintsNothing(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)
	rate := new(big.Int).Exp(big.NewInt(10), big.NewInt(23), nil)
	if err := rig.engine.SetFixedRate(rig.operator, rate); err != nil {
		t.Fatalf("set fixed rate: %v", err)
	}
	if _, err := rig.engine.Deposit(rig.user, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Real profit 20 below the 36 expected: no fee, gains stay with
	// depositors.
	rig.venue.addYield(big.NewInt(20))
	rig.advance(3600)
	minted, err := rig.engine.Harvest(rig.operator)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if minted.Sign() != 0 {
		t.Fatalf("fee shares = %s, want 0", minted)
	}

	state, err := rig.engine.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.TotalShares.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("total shares = %s, want unchanged 100", state.TotalShares)
	}
	if state.TotalDelegatedHoldings.Cmp(big.NewInt(120)) != 0 {
		t.Fatalf("delegated = %s, want resynced 120", state.TotalDelegatedHoldings)
	}
}

func TestHarvestLossClampsAndResyncsDown(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)
	if _, err := rig.engine.Deposit(rig.user, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	rig.venue.recordLoss(big.NewInt(30))
	rig.advance(3600)
	minted, err := rig.engine.Harvest(rig.operator)
	if err != nil {
		t.Fatalf("harvest after loss: %v", err)
	}
	if minted.Sign() != 0 {
		t.Fatalf("fee shares = %s after a loss, want 0", minted)
	}

	state, err := rig.engine.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.TotalDelegatedHoldings.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("delegated = %s, want resynced down to 70", state.TotalDelegatedHoldings)
	}
	if state.LastHarvestUnix != rig.now {
		t.Fatalf("harvest clock did not advance after loss")
	}

	attrs := rig.events.lastOfType(EventTypeHarvest)
	if attrs == nil {
		t.Fatalf("no harvest event recorded")
	}
	if attrs["shortfall"] != "30" {
		t.Fatalf("harvest event shortfall = %s, want 30", attrs["shortfall"])
	}
}

func TestHarvestAppliesPendingDelay(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)
	if err := rig.engine.SetHarvestDelay(rig.operator, 7200); err != nil {
		t.Fatalf("stage harvest delay: %v", err)
	}

	rig.advance(3600)
	if _, err := rig.engine.Harvest(rig.operator); err != nil {
		t.Fatalf("harvest: %v", err)
	}

	state, err := rig.engine.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.HarvestDelaySeconds != 7200 {
		t.Fatalf("active delay = %d, want staged 7200 applied", state.HarvestDelaySeconds)
	}
	if state.PendingHarvestDelaySeconds != 0 {
		t.Fatalf("pending delay = %d, want cleared", state.PendingHarvestDelaySeconds)
	}

	// The next cycle runs under the new delay.
	rig.advance(3600)
	if _, err := rig.engine.Harvest(rig.operator); !errors.Is(err, ErrHarvestTooSoon) {
		t.Fatalf("expected ErrHarvestTooSoon under the longer delay, got %v", err)
	}
	rig.advance(3600)
	if _, err := rig.engine.Harvest(rig.operator); err != nil {
		t.Fatalf("harvest under new delay: %v", err)
	}
}

func TestHarvestEmptyVenue(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)
	rig.advance(3600)
	minted, err := rig.engine.Harvest(rig.operator)
	if err != nil {
		t.Fatalf("harvest with no position: %v", err)
	}
	if minted.Sign() != 0 {
		t.Fatalf("fee shares = %s on empty venue, want 0", minted)
	}
}
