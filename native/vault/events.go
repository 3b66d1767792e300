package vault

import (
	"math/big"
	"strconv"

	"yieldvault/core/types"
	"yieldvault/crypto"
)

const (
	EventTypeInitialized            = "vault.initialized"
	EventTypeDeposit                = "vault.deposit"
	EventTypeWithdraw               = "vault.withdraw"
	EventTypeHarvest                = "vault.harvest"
	EventTypeProfitClaimed          = "vault.profit_claimed"
	EventTypeWithdrawalDelayUpdated = "vault.withdrawal_delay_updated"
	EventTypeHarvestDelayUpdated    = "vault.harvest_delay_updated"
	EventTypeFixedRateUpdated       = "vault.fixed_rate_updated"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewInitializedEvent returns the canonical payload for the one-time
// lifecycle transition.
func NewInitializedEvent(caller crypto.Address, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"caller":        caller.String(),
			"initializedAt": strconv.FormatInt(now, 10),
		},
	}
}

// NewDepositEvent returns the canonical payload emitted when shares are
// credited for a deposit.
func NewDepositEvent(caller crypto.Address, amount, shares *big.Int, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"caller":    caller.String(),
			"amount":    formatAmount(amount),
			"shares":    formatAmount(shares),
			"depositAt": strconv.FormatInt(now, 10),
		},
	}
}

// NewWithdrawEvent returns the canonical payload for a withdrawal. The paid
// amount may be below the requested one when the venue short-pays.
func NewWithdrawEvent(caller crypto.Address, requested, paid, shares *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeWithdraw,
		Attributes: map[string]string{
			"caller":    caller.String(),
			"requested": formatAmount(requested),
			"paid":      formatAmount(paid),
			"shares":    formatAmount(shares),
		},
	}
}

// NewHarvestEvent returns the canonical payload for a harvest cycle.
func NewHarvestEvent(caller crypto.Address, observed, expected, surplus, feeShares, shortfall *big.Int, now int64) *types.Event {
	return &types.Event{
		Type: EventTypeHarvest,
		Attributes: map[string]string{
			"caller":    caller.String(),
			"observed":  formatAmount(observed),
			"expected":  formatAmount(expected),
			"surplus":   formatAmount(surplus),
			"feeShares": formatAmount(feeShares),
			"shortfall": formatAmount(shortfall),
			"harvestAt": strconv.FormatInt(now, 10),
		},
	}
}

// NewProfitClaimedEvent returns the canonical payload emitted when the
// protocol-fee account is redeemed.
func NewProfitClaimedEvent(caller crypto.Address, shares, paid *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeProfitClaimed,
		Attributes: map[string]string{
			"caller": caller.String(),
			"shares": formatAmount(shares),
			"paid":   formatAmount(paid),
		},
	}
}

// NewWithdrawalDelayEvent returns the canonical payload for a withdrawal
// delay change.
func NewWithdrawalDelayEvent(caller crypto.Address, seconds uint64) *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawalDelayUpdated,
		Attributes: map[string]string{
			"caller":  caller.String(),
			"seconds": strconv.FormatUint(seconds, 10),
		},
	}
}

// NewHarvestDelayEvent returns the canonical payload for a harvest delay
// change. Staged changes apply at the next harvest boundary.
func NewHarvestDelayEvent(caller crypto.Address, seconds uint64, staged bool) *types.Event {
	return &types.Event{
		Type: EventTypeHarvestDelayUpdated,
		Attributes: map[string]string{
			"caller":  caller.String(),
			"seconds": strconv.FormatUint(seconds, 10),
			"staged":  strconv.FormatBool(staged),
		},
	}
}

// NewFixedRateEvent returns the canonical payload for a fixed-rate change.
func NewFixedRateEvent(caller crypto.Address, rate *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFixedRateUpdated,
		Attributes: map[string]string{
			"caller":        caller.String(),
			"ratePerSecond": formatAmount(rate),
		},
	}
}
