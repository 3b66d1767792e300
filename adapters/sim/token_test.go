package sim

import (
	"errors"
	"math/big"
	"testing"

	"yieldvault/crypto"
)

func testAddr(last byte) crypto.Address {
	b := make([]byte, 20)
	b[19] = last
	return crypto.NewAddress(crypto.VaultPrefix, b)
}

func TestLedgerTransfer(t *testing.T) {
	token := NewToken()
	alice := testAddr(0x01)
	bob := testAddr(0x02)
	token.Mint(alice, big.NewInt(100))

	if err := token.Ledger(alice).Transfer(bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	aliceBal, _ := token.BalanceOf(alice)
	bobBal, _ := token.BalanceOf(bob)
	if aliceBal.Cmp(big.NewInt(60)) != 0 || bobBal.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("balances = %s/%s, want 60/40", aliceBal, bobBal)
	}

	if err := token.Ledger(alice).Transfer(bob, big.NewInt(61)); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("expected errInsufficientBalance, got %v", err)
	}
}

func TestLedgerTransferFromSpendsAllowance(t *testing.T) {
	token := NewToken()
	alice := testAddr(0x01)
	spender := testAddr(0x02)
	sink := testAddr(0x03)
	token.Mint(alice, big.NewInt(100))

	ledger := token.Ledger(spender)
	if err := ledger.TransferFrom(alice, sink, big.NewInt(10)); !errors.Is(err, errInsufficientAllowance) {
		t.Fatalf("expected errInsufficientAllowance, got %v", err)
	}

	token.ApproveFor(alice, spender, big.NewInt(30))
	if err := ledger.TransferFrom(alice, sink, big.NewInt(10)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if err := ledger.TransferFrom(alice, sink, big.NewInt(25)); !errors.Is(err, errInsufficientAllowance) {
		t.Fatalf("allowance not decremented: %v", err)
	}
}

func TestLedgerSelfTransferFromSkipsAllowance(t *testing.T) {
	token := NewToken()
	alice := testAddr(0x01)
	sink := testAddr(0x03)
	token.Mint(alice, big.NewInt(100))

	if err := token.Ledger(alice).TransferFrom(alice, sink, big.NewInt(10)); err != nil {
		t.Fatalf("self transferFrom: %v", err)
	}
}

func TestTransferRejectsNonPositiveAmounts(t *testing.T) {
	token := NewToken()
	alice := testAddr(0x01)
	if err := token.Ledger(alice).Transfer(testAddr(0x02), big.NewInt(0)); !errors.Is(err, errInvalidAmount) {
		t.Fatalf("expected errInvalidAmount, got %v", err)
	}
	if err := token.Ledger(alice).Transfer(testAddr(0x02), nil); !errors.Is(err, errInvalidAmount) {
		t.Fatalf("expected errInvalidAmount for nil, got %v", err)
	}
}
