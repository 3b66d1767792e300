package vault

import "math/big"

// sharesForAssets converts an asset amount into shares at the current share
// price, rounding down so deposits always round in the pool's favor. The
// first deposit into an empty vault mints 1:1.
func sharesForAssets(assets, totalShares, totalHoldings *big.Int) (*big.Int, error) {
	if assets == nil || assets.Sign() < 0 {
		return nil, ErrNegativeValue
	}
	if totalShares == nil || totalShares.Sign() == 0 {
		return new(big.Int).Set(assets), nil
	}
	return mulDivDown(assets, totalShares, totalHoldings)
}

// sharesForAssetsCeil converts an asset amount into shares rounding up. It is
// the burn formula for withdrawals: the caller surrenders slightly more
// shares per asset unit, never fewer, so repeated rounding cannot drain the
// pool below the sum of legitimate claims.
func sharesForAssetsCeil(assets, totalShares, totalHoldings *big.Int) (*big.Int, error) {
	if assets == nil || assets.Sign() < 0 {
		return nil, ErrNegativeValue
	}
	if totalShares == nil || totalShares.Sign() == 0 {
		return new(big.Int).Set(assets), nil
	}
	return mulDivUp(assets, totalShares, totalHoldings)
}

// assetsForShares converts shares into their asset value at the current share
// price, rounding down.
func assetsForShares(shares, totalShares, totalHoldings *big.Int) (*big.Int, error) {
	if shares == nil || shares.Sign() < 0 {
		return nil, ErrNegativeValue
	}
	if totalShares == nil || totalShares.Sign() == 0 {
		return new(big.Int).Set(shares), nil
	}
	return mulDivDown(shares, totalHoldings, totalShares)
}
