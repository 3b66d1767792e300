package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"yieldvault/core/events"
	"yieldvault/core/types"
	"yieldvault/crypto"
	"yieldvault/native/vault"
	"yieldvault/storage"
)

const (
	vaultStateKey   = "vault:state"
	accountKeyStem  = "vault:acct:"
	eventBufferSize = 256
)

// Manager persists vault accounting state in a key-value store and exposes
// the snapshot/revert journal the engine relies on for call atomicity. It
// also collects emitted events for the RPC layer.
type Manager struct {
	mu sync.Mutex
	db storage.Database

	journal []journalEntry
	events  []*types.Event
}

type journalEntry struct {
	key      string
	previous []byte // nil when the key did not exist
	existed  bool
}

// NewManager wires a state manager over the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// --- serialized forms (big.Int as decimal strings, addresses as bech32) ---

type storedVault struct {
	TotalShares                string `json:"totalShares"`
	TotalDelegatedHoldings     string `json:"totalDelegatedHoldings"`
	Initialized                bool   `json:"initialized"`
	WithdrawalDelaySeconds     uint64 `json:"withdrawalDelaySeconds"`
	HarvestDelaySeconds        uint64 `json:"harvestDelaySeconds"`
	PendingHarvestDelaySeconds uint64 `json:"pendingHarvestDelaySeconds"`
	LastHarvestUnix            int64  `json:"lastHarvestUnix"`
	RatePerSecond              string `json:"ratePerSecond"`
}

type storedAccount struct {
	Address         string `json:"address"`
	ShareBalance    string `json:"shareBalance"`
	LastDepositUnix int64  `json:"lastDepositUnix"`
}

func parseBig(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("state: invalid integer %q", value)
	}
	return v, nil
}

func formatBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func accountKey(addr crypto.Address) string {
	return accountKeyStem + hex.EncodeToString(addr.Bytes())
}

// GetVault loads the vault state, or nil when none has been stored yet.
func (m *Manager) GetVault() (*vault.VaultState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := m.db.Get([]byte(vaultStateKey))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedVault
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	totalShares, err := parseBig(stored.TotalShares)
	if err != nil {
		return nil, err
	}
	delegated, err := parseBig(stored.TotalDelegatedHoldings)
	if err != nil {
		return nil, err
	}
	rate, err := parseBig(stored.RatePerSecond)
	if err != nil {
		return nil, err
	}
	return &vault.VaultState{
		TotalShares:                totalShares,
		TotalDelegatedHoldings:     delegated,
		Initialized:                stored.Initialized,
		WithdrawalDelaySeconds:     stored.WithdrawalDelaySeconds,
		HarvestDelaySeconds:        stored.HarvestDelaySeconds,
		PendingHarvestDelaySeconds: stored.PendingHarvestDelaySeconds,
		LastHarvestUnix:            stored.LastHarvestUnix,
		RatePerSecond:              rate,
	}, nil
}

// PutVault stores the vault state, journaling the previous value.
func (m *Manager) PutVault(v *vault.VaultState) error {
	if v == nil {
		return errors.New("state: nil vault state")
	}
	stored := storedVault{
		TotalShares:                formatBig(v.TotalShares),
		TotalDelegatedHoldings:     formatBig(v.TotalDelegatedHoldings),
		Initialized:                v.Initialized,
		WithdrawalDelaySeconds:     v.WithdrawalDelaySeconds,
		HarvestDelaySeconds:        v.HarvestDelaySeconds,
		PendingHarvestDelaySeconds: v.PendingHarvestDelaySeconds,
		LastHarvestUnix:            v.LastHarvestUnix,
		RatePerSecond:              formatBig(v.RatePerSecond),
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(vaultStateKey, raw)
}

// GetAccount loads an account record, or nil when the account is unknown.
func (m *Manager) GetAccount(addr crypto.Address) (*vault.AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := m.db.Get([]byte(accountKey(addr)))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedAccount
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	balance, err := parseBig(stored.ShareBalance)
	if err != nil {
		return nil, err
	}
	return &vault.AccountRecord{
		Address:         addr,
		ShareBalance:    balance,
		LastDepositUnix: stored.LastDepositUnix,
	}, nil
}

// PutAccount stores an account record, journaling the previous value.
func (m *Manager) PutAccount(account *vault.AccountRecord) error {
	if account == nil {
		return errors.New("state: nil account record")
	}
	stored := storedAccount{
		Address:         account.Address.String(),
		ShareBalance:    formatBig(account.ShareBalance),
		LastDepositUnix: account.LastDepositUnix,
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(accountKey(account.Address), raw)
}

func (m *Manager) write(key string, value []byte) error {
	previous, err := m.db.Get([]byte(key))
	existed := true
	if errors.Is(err, storage.ErrNotFound) {
		existed = false
		previous = nil
	} else if err != nil {
		return err
	}
	if err := m.db.Put([]byte(key), value); err != nil {
		return err
	}
	m.journal = append(m.journal, journalEntry{key: key, previous: previous, existed: existed})
	return nil
}

// Snapshot marks the current journal position. Reverting to it undoes every
// write recorded after the mark.
func (m *Manager) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.journal)
}

// RevertToSnapshot restores the database to the state it had at the given
// snapshot mark.
func (m *Manager) RevertToSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 0 || id > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.existed {
			_ = m.db.Put([]byte(entry.key), entry.previous)
		} else {
			_ = m.db.Delete([]byte(entry.key))
		}
	}
	m.journal = m.journal[:id]
}

// payloadEvent is satisfied by the engine's emitted events, which carry a
// wire payload alongside the type tag.
type payloadEvent interface {
	Event() *types.Event
}

// Emit implements events.Emitter, buffering the most recent events for the
// RPC layer.
func (m *Manager) Emit(evt events.Event) {
	payload, ok := evt.(payloadEvent)
	if !ok || payload.Event() == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, payload.Event())
	if len(m.events) > eventBufferSize {
		m.events = m.events[len(m.events)-eventBufferSize:]
	}
}

// Events returns a copy of the buffered events, newest last.
func (m *Manager) Events() []*types.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Event, len(m.events))
	copy(out, m.events)
	return out
}

var _ events.Emitter = (*Manager)(nil)
