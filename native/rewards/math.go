package rewards

import (
	"math"

	"github.com/holiman/uint256"
)

var ten = uint256.NewInt(10)

// ScaleMinutes converts a minute delta into token base units by multiplying
// with 10^decimals. Results that do not fit in a uint64 saturate at
// math.MaxUint64; the boolean reports whether saturation occurred.
func ScaleMinutes(delta uint64, decimals uint8) (uint64, bool) {
	if delta == 0 {
		return 0, false
	}
	scale := uint256.NewInt(1)
	for i := uint8(0); i < decimals; i++ {
		if _, overflow := scale.MulOverflow(scale, ten); overflow || !scale.IsUint64() {
			return math.MaxUint64, true
		}
	}
	amount := new(uint256.Int)
	if _, overflow := amount.MulOverflow(uint256.NewInt(delta), scale); overflow || !amount.IsUint64() {
		return math.MaxUint64, true
	}
	return amount.Uint64(), false
}
