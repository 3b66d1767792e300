package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"yieldvault/crypto"
)

const defaultCallTimeout = 30 * time.Second

var (
	errRevertedTx  = errors.New("evm: transaction reverted")
	errFalseReturn = errors.New("evm: call returned false")
)

// Client bundles the RPC connection and the operator transactor shared by the
// token and venue adapters. Every mutating call is mined synchronously and a
// reverted receipt is surfaced as a hard error, matching the engine's
// collaborator-failure contract.
type Client struct {
	eth      *ethclient.Client
	chainID  *big.Int
	operator *bind.TransactOpts
	timeout  time.Duration
}

// Dial connects to the given JSON-RPC endpoint and prepares a keyed
// transactor for the operator key.
func Dial(ctx context.Context, endpoint string, operator *crypto.PrivateKey) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", endpoint, err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("evm: chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(operator.PrivateKey, chainID)
	if err != nil {
		eth.Close()
		return nil, err
	}
	return &Client{eth: eth, chainID: chainID, operator: opts, timeout: defaultCallTimeout}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	if c != nil && c.eth != nil {
		c.eth.Close()
	}
}

func (c *Client) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// transact sends a state-changing call and waits for it to be mined. A
// receipt with status zero aborts with errRevertedTx.
func (c *Client) transact(contract *bind.BoundContract, method string, args ...interface{}) error {
	ctx, cancel := c.callCtx()
	defer cancel()
	opts := *c.operator
	opts.Context = ctx
	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		return fmt.Errorf("evm: %s: %w", method, err)
	}
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return fmt.Errorf("evm: %s: wait mined: %w", method, err)
	}
	if receipt.Status == 0 {
		return fmt.Errorf("evm: %s: %w", method, errRevertedTx)
	}
	return nil
}

// transactChecked simulates the method first and requires a true bool result
// before sending the real transaction. ERC-20 implementations that signal
// failure by returning false without reverting never produce a status-zero
// receipt, so the receipt check in transact alone cannot catch them.
func (c *Client) transactChecked(contract *bind.BoundContract, method string, args ...interface{}) error {
	if err := c.simulateBool(contract, method, args...); err != nil {
		return err
	}
	return c.transact(contract, method, args...)
}

// simulateBool performs a read-only call of a bool-returning method from the
// operator address and fails when the result is false.
func (c *Client) simulateBool(contract *bind.BoundContract, method string, args ...interface{}) error {
	ctx, cancel := c.callCtx()
	defer cancel()
	opts := &bind.CallOpts{Context: ctx}
	if c.operator != nil {
		opts.From = c.operator.From
	}
	var out []interface{}
	if err := contract.Call(opts, &out, method, args...); err != nil {
		return fmt.Errorf("evm: %s: simulate: %w", method, err)
	}
	return checkBoolResult(method, out)
}

func checkBoolResult(method string, out []interface{}) error {
	if len(out) != 1 {
		return fmt.Errorf("evm: %s: unexpected result arity %d", method, len(out))
	}
	ok, isBool := out[0].(bool)
	if !isBool {
		return fmt.Errorf("evm: %s: unexpected result type %T", method, out[0])
	}
	if !ok {
		return fmt.Errorf("evm: %s: %w", method, errFalseReturn)
	}
	return nil
}

// callUint performs a read-only call returning a single uint256.
func (c *Client) callUint(contract *bind.BoundContract, method string, args ...interface{}) (*big.Int, error) {
	ctx, cancel := c.callCtx()
	defer cancel()
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("evm: %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("evm: %s: unexpected result arity %d", method, len(out))
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("evm: %s: unexpected result type %T", method, out[0])
	}
	return value, nil
}

func (c *Client) bound(addr common.Address, parsed abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(addr, parsed, c.eth, c.eth, c.eth)
}

// evmAddress converts a vault address into its 20-byte EVM form.
func evmAddress(addr crypto.Address) common.Address {
	return common.BytesToAddress(addr.Bytes())
}
