package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"yieldvault/crypto"
)

const venueABI = `[
  {"name":"deposit","type":"function","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"name":"withdraw","type":"function","inputs":[{"name":"shares","type":"uint256"}],"outputs":[]},
  {"name":"balance","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"totalSupply","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"pricePerShare","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// Venue adapts an on-chain yield venue to the engine's Venue capability
// contract. The engine only reads the venue's accounting; deposits and
// withdrawals are mined synchronously.
type Venue struct {
	client   *Client
	contract *bind.BoundContract
}

// NewVenue binds the venue contract at the given vault-encoded address.
func NewVenue(client *Client, venue crypto.Address) (*Venue, error) {
	parsed, err := abi.JSON(strings.NewReader(venueABI))
	if err != nil {
		return nil, err
	}
	return &Venue{
		client:   client,
		contract: client.bound(evmAddress(venue), parsed),
	}, nil
}

func (v *Venue) Deposit(amount *big.Int) error {
	return v.client.transact(v.contract, "deposit", amount)
}

func (v *Venue) Withdraw(shares *big.Int) error {
	return v.client.transact(v.contract, "withdraw", shares)
}

func (v *Venue) Balance() (*big.Int, error) {
	return v.client.callUint(v.contract, "balance")
}

func (v *Venue) TotalSupply() (*big.Int, error) {
	return v.client.callUint(v.contract, "totalSupply")
}

func (v *Venue) PricePerShare() (*big.Int, error) {
	return v.client.callUint(v.contract, "pricePerShare")
}

func (v *Venue) ShareBalanceOf(owner crypto.Address) (*big.Int, error) {
	return v.client.callUint(v.contract, "balanceOf", evmAddress(owner))
}
