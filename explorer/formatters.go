package explorer

import "strconv"

// MintLabel returns the explorer label for a minutes reward.
func MintLabel(delta uint64) string {
	if delta == 1 {
		return "Rewarded 1 minute"
	}
	return "Rewarded " + strconv.FormatUint(delta, 10) + " minutes"
}
