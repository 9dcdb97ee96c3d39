package pricing

import (
	"errors"
	"math/big"
)

const (
	MinTick = -887272
	MaxTick = 887272
)

var (
	Q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)
	Q192 = new(big.Int).Lsh(big.NewInt(1), 192)

	// MinSqrtRatio is the sqrt price at MinTick.
	MinSqrtRatio = big.NewInt(4295128739)
	// MaxSqrtRatio is the sqrt price at MaxTick.
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	// MaxUint128 is the collect-everything sentinel.
	MaxUint128 = new(big.Int).Sub(Q128, big.NewInt(1))
)

var (
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrPriceOutOfRange    = errors.New("price outside sqrt ratio bounds")
	ErrTickOutOfRange     = errors.New("tick outside bounds")
	ErrInvalidTickSpacing = errors.New("tick spacing must be positive")
)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
