package vault

import (
	"math/big"

	"yieldvault/crypto"
)

// VaultState captures the global accounting state for one engine instance.
// Amount values are denominated in base asset units and expressed as big
// integers; none of them may silently wrap.
type VaultState struct {
	// TotalShares is the outstanding share supply, including the protocol-fee
	// account. Before initialization it is parked at the share sentinel.
	TotalShares *big.Int
	// TotalDelegatedHoldings records how much asset value the engine believes
	// it has placed with the yield venue as of the last harvest.
	TotalDelegatedHoldings *big.Int
	// Initialized reports whether the one-time lifecycle transition happened.
	Initialized bool
	// WithdrawalDelaySeconds gates withdrawals after each deposit.
	WithdrawalDelaySeconds uint64
	// HarvestDelaySeconds gates consecutive harvests. Never zero once the
	// vault is initialized.
	HarvestDelaySeconds uint64
	// PendingHarvestDelaySeconds stages a delay change until the next harvest
	// boundary. Zero means no change is pending.
	PendingHarvestDelaySeconds uint64
	// LastHarvestUnix is the wall-clock second of the last harvest (or of
	// initialization, which starts the clock).
	LastHarvestUnix int64
	// RatePerSecond is the fixed asset-value growth target per second,
	// ray-scaled. Depositors are guaranteed this rate; surplus is skimmed.
	RatePerSecond *big.Int
}

// NewVaultState returns the pre-initialization state of a fresh instance.
func NewVaultState() *VaultState {
	return &VaultState{
		TotalShares:            new(big.Int).Set(shareSentinel),
		TotalDelegatedHoldings: big.NewInt(0),
		RatePerSecond:          big.NewInt(0),
	}
}

// AccountRecord maintains the ledger entry for an individual depositor. The
// protocol-fee account is an ordinary record keyed by the engine's own
// address.
type AccountRecord struct {
	// Address is the unique account identifier.
	Address crypto.Address
	// ShareBalance is the account's proportional claim on total holdings.
	ShareBalance *big.Int
	// LastDepositUnix resets on every deposit and gates withdrawal
	// eligibility.
	LastDepositUnix int64
}
