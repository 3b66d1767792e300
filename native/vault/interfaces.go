package vault

import (
	"math/big"

	"yieldvault/crypto"
)

// Token is the capability contract the engine requires from the pooled asset.
// Every call can fail; failures abort the whole operation rather than being
// assumed away.
type Token interface {
	TransferFrom(from, to crypto.Address, amount *big.Int) error
	Transfer(to crypto.Address, amount *big.Int) error
	Approve(spender crypto.Address, amount *big.Int) error
	BalanceOf(account crypto.Address) (*big.Int, error)
}

// Venue is the capability contract the engine requires from the external
// yield-bearing destination. The engine only reads these; it never assumes
// internal venue structure.
type Venue interface {
	// Deposit places previously approved asset with the venue.
	Deposit(amount *big.Int) error
	// Withdraw redeems the given number of venue shares back to asset.
	Withdraw(shares *big.Int) error
	// Balance reports the asset value the venue holds for this caller context.
	Balance() (*big.Int, error)
	// TotalSupply reports the venue's own share supply.
	TotalSupply() (*big.Int, error)
	// PricePerShare reports the ray-scaled asset value of one venue share.
	PricePerShare() (*big.Int, error)
	// ShareBalanceOf reports the venue shares held for the given owner.
	ShareBalanceOf(owner crypto.Address) (*big.Int, error)
}

// Authorizer decides whether a caller may invoke a privileged operation now.
type Authorizer interface {
	Allow(caller crypto.Address, op string) bool
}

// Privileged operation names passed to the Authorizer.
const (
	OpInitialize         = "initialize"
	OpHarvest            = "harvest"
	OpClaimProfit        = "claimProfit"
	OpSetWithdrawalDelay = "setWithdrawalDelay"
	OpSetHarvestDelay    = "setHarvestDelay"
	OpSetFixedRate       = "setFixedRate"
)
