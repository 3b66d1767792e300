package vault

import (
	"math/big"
	"testing"
)

func TestRetrieveFromFloatLeavesVenueUntouched(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)
	if _, err := rig.engine.Deposit(rig.user, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Donated float covers the request, so the venue position must not move.
	rig.token.credit(rig.engine.EngineAddress(), big.NewInt(50))
	venueBefore, err := rig.venue.Balance()
	if err != nil {
		t.Fatalf("venue balance: %v", err)
	}

	paid, err := rig.engine.Withdraw(rig.user, big.NewInt(30))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if paid.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("paid = %s, want 30", paid)
	}

	venueAfter, err := rig.venue.Balance()
	if err != nil {
		t.Fatalf("venue balance: %v", err)
	}
	if venueAfter.Cmp(venueBefore) != 0 {
		t.Fatalf("venue balance moved from %s to %s on a float-covered withdrawal", venueBefore, venueAfter)
	}
	state, err := rig.engine.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.TotalDelegatedHoldings.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("delegated = %s, want unchanged 100", state.TotalDelegatedHoldings)
	}
}

func TestTotalHoldingsSumsFloatAndDelegated(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)
	if _, err := rig.engine.Deposit(rig.user, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	rig.token.credit(rig.engine.EngineAddress(), big.NewInt(25))

	holdings, err := rig.engine.TotalHoldings()
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if holdings.Cmp(big.NewInt(125)) != 0 {
		t.Fatalf("holdings = %s, want 125", holdings)
	}
	idle, err := rig.engine.TotalFloat()
	if err != nil {
		t.Fatalf("float: %v", err)
	}
	if idle.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("float = %s, want 25", idle)
	}
}

func TestVenueValuationRoundsUp(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)
	if _, err := rig.engine.Deposit(rig.user, big.NewInt(3)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// 4 units over 3 venue shares: the per-share price floors, the position
	// valuation ceils back to the full 4.
	rig.venue.addYield(big.NewInt(1))

	value, err := rig.engine.VenueBalanceOfUnderlying()
	if err != nil {
		t.Fatalf("venue value: %v", err)
	}
	if value.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("venue value = %s, want 4 (round up)", value)
	}
}

func TestVenueValueZeroWithoutPosition(t *testing.T) {
	rig := newTestRig(t)
	rig.initialize(t, 3600)
	value, err := rig.engine.VenueBalanceOfUnderlying()
	if err != nil {
		t.Fatalf("venue value: %v", err)
	}
	if value.Sign() != 0 {
		t.Fatalf("venue value = %s with no position, want 0", value)
	}
}
