package state

import (
	"math/big"
	"testing"

	"yieldvault/core/types"
	"yieldvault/crypto"
	"yieldvault/native/vault"
	"yieldvault/storage"
)

func testAddr(last byte) crypto.Address {
	b := make([]byte, 20)
	b[19] = last
	return crypto.NewAddress(crypto.VaultPrefix, b)
}

func TestVaultStateRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	loaded, err := manager.GetVault()
	if err != nil {
		t.Fatalf("get empty vault: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil vault before first write, got %+v", loaded)
	}

	stored := &vault.VaultState{
		TotalShares:                big.NewInt(12345),
		TotalDelegatedHoldings:     big.NewInt(9876),
		Initialized:                true,
		WithdrawalDelaySeconds:     600,
		HarvestDelaySeconds:        3600,
		PendingHarvestDelaySeconds: 7200,
		LastHarvestUnix:            1_700_000_000,
		RatePerSecond:              big.NewInt(42),
	}
	if err := manager.PutVault(stored); err != nil {
		t.Fatalf("put vault: %v", err)
	}

	loaded, err = manager.GetVault()
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	if loaded.TotalShares.Cmp(stored.TotalShares) != 0 ||
		loaded.TotalDelegatedHoldings.Cmp(stored.TotalDelegatedHoldings) != 0 ||
		loaded.RatePerSecond.Cmp(stored.RatePerSecond) != 0 {
		t.Fatalf("amounts did not round trip: %+v", loaded)
	}
	if !loaded.Initialized || loaded.WithdrawalDelaySeconds != 600 ||
		loaded.HarvestDelaySeconds != 3600 || loaded.PendingHarvestDelaySeconds != 7200 ||
		loaded.LastHarvestUnix != 1_700_000_000 {
		t.Fatalf("scalars did not round trip: %+v", loaded)
	}
}

func TestAccountRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(0x07)

	loaded, err := manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("get unknown account: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil for unknown account, got %+v", loaded)
	}

	record := &vault.AccountRecord{
		Address:         addr,
		ShareBalance:    big.NewInt(555),
		LastDepositUnix: 1_700_000_123,
	}
	if err := manager.PutAccount(record); err != nil {
		t.Fatalf("put account: %v", err)
	}
	loaded, err = manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if loaded.ShareBalance.Cmp(big.NewInt(555)) != 0 || loaded.LastDepositUnix != 1_700_000_123 {
		t.Fatalf("account did not round trip: %+v", loaded)
	}
	if !loaded.Address.Equal(addr) {
		t.Fatalf("address mismatch: %s", loaded.Address)
	}
}

func TestSnapshotRevertRestoresWrites(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(0x07)

	if err := manager.PutAccount(&vault.AccountRecord{Address: addr, ShareBalance: big.NewInt(100)}); err != nil {
		t.Fatalf("put account: %v", err)
	}

	snap := manager.Snapshot()
	if err := manager.PutAccount(&vault.AccountRecord{Address: addr, ShareBalance: big.NewInt(40)}); err != nil {
		t.Fatalf("overwrite account: %v", err)
	}
	if err := manager.PutVault(&vault.VaultState{TotalShares: big.NewInt(1)}); err != nil {
		t.Fatalf("put vault: %v", err)
	}

	manager.RevertToSnapshot(snap)

	account, err := manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.ShareBalance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("account balance = %s after revert, want 100", account.ShareBalance)
	}
	vaultState, err := manager.GetVault()
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	if vaultState != nil {
		t.Fatalf("vault write survived revert: %+v", vaultState)
	}
}

func TestSnapshotRevertRemovesNewKeys(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(0x08)

	snap := manager.Snapshot()
	if err := manager.PutAccount(&vault.AccountRecord{Address: addr, ShareBalance: big.NewInt(7)}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	manager.RevertToSnapshot(snap)

	account, err := manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account != nil {
		t.Fatalf("freshly created key survived revert: %+v", account)
	}
}

type stubEvent struct {
	payload *types.Event
}

func (e stubEvent) EventType() string   { return e.payload.Type }
func (e stubEvent) Event() *types.Event { return e.payload }

func TestEmitBuffersEvents(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	manager.Emit(stubEvent{payload: &types.Event{Type: "vault.deposit", Attributes: map[string]string{"amount": "1"}}})
	manager.Emit(stubEvent{payload: &types.Event{Type: "vault.withdraw"}})

	recorded := manager.Events()
	if len(recorded) != 2 {
		t.Fatalf("buffered %d events, want 2", len(recorded))
	}
	if recorded[0].Type != "vault.deposit" || recorded[1].Type != "vault.withdraw" {
		t.Fatalf("unexpected event order: %s, %s", recorded[0].Type, recorded[1].Type)
	}
}

func TestEmitBoundsBuffer(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	for i := 0; i < eventBufferSize+10; i++ {
		manager.Emit(stubEvent{payload: &types.Event{Type: "vault.deposit"}})
	}
	if got := len(manager.Events()); got != eventBufferSize {
		t.Fatalf("buffer length = %d, want %d", got, eventBufferSize)
	}
}
