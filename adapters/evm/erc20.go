package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"yieldvault/crypto"
)

const erc20ABI = `[
  {"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"name":"transferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// ERC20 adapts an on-chain fungible token to the engine's Token capability
// contract. Mutating calls are simulated first so a false return aborts the
// engine operation, then sent by the operator key and mined; a reverted
// receipt aborts too.
type ERC20 struct {
	client   *Client
	contract *bind.BoundContract
}

// NewERC20 binds the token contract at the given vault-encoded address.
func NewERC20(client *Client, token crypto.Address) (*ERC20, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, err
	}
	return &ERC20{
		client:   client,
		contract: client.bound(evmAddress(token), parsed),
	}, nil
}

func (t *ERC20) TransferFrom(from, to crypto.Address, amount *big.Int) error {
	return t.client.transactChecked(t.contract, "transferFrom", evmAddress(from), evmAddress(to), amount)
}

func (t *ERC20) Transfer(to crypto.Address, amount *big.Int) error {
	return t.client.transactChecked(t.contract, "transfer", evmAddress(to), amount)
}

func (t *ERC20) Approve(spender crypto.Address, amount *big.Int) error {
	return t.client.transactChecked(t.contract, "approve", evmAddress(spender), amount)
}

func (t *ERC20) BalanceOf(account crypto.Address) (*big.Int, error) {
	return t.client.callUint(t.contract, "balanceOf", evmAddress(account))
}
