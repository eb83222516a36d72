package config

import (
	"strings"

	nativecommon "rewardchain/native/common"
)

// IsPaused implements nativecommon.PauseView.
func (p Pauses) IsPaused(module string) bool {
	switch strings.ToLower(strings.TrimSpace(module)) {
	case "rewards":
		return p.Rewards
	case "bank":
		return p.Bank
	default:
		return false
	}
}

// Native converts the configured quota into the runtime representation.
func (q Quota) Native() nativecommon.Quota {
	return nativecommon.Quota{
		MaxRequestsPerEpoch: q.MaxRequestsPerEpoch,
		MaxUnitsPerEpoch:    q.MaxUnitsPerEpoch,
		EpochSeconds:        q.EpochSeconds,
	}
}
