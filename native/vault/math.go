package vault

import "math/big"

var (
	// ray is the fixed-point scale applied to the per-second growth rate.
	ray = mustBigInt("1000000000000000000000000000") // 1e27 precision
	// shareSentinel marks an uninitialized vault. Parking the supply at the
	// maximum keeps the zero-supply bootstrap branch from treating a fresh
	// instance as empty before initialize() opens deposits.
	shareSentinel = mustBigInt("115792089237316195423570985008687907853269984665640564039457584007913129639935") // 2^256-1
)

// secondsPerYear caps the harvest and withdrawal delays.
const secondsPerYear = 31_536_000

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// mulDivDown returns floor(a*b/den). Division by zero is an error, never a
// panic, so a bad collaborator report aborts the call cleanly.
func mulDivDown(a, b, den *big.Int) (*big.Int, error) {
	if a == nil || b == nil || den == nil {
		return nil, ErrNegativeValue
	}
	if den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, den), nil
}

// mulDivUp returns ceil(a*b/den).
func mulDivUp(a, b, den *big.Int) (*big.Int, error) {
	if a == nil || b == nil || den == nil {
		return nil, ErrNegativeValue
	}
	if den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, new(big.Int).Sub(den, big.NewInt(1)))
	return product.Quo(product, den), nil
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
