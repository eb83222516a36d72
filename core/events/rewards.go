package events

import (
	"strconv"

	"rewardchain/core/types"
	"rewardchain/crypto"
)

const (
	// TypeRewardsConfigInitialized is emitted once when the config singleton is created.
	TypeRewardsConfigInitialized = "rewards.config.initialized"
	// TypeRewardsMintInitialized is emitted when the reward token mint is created.
	TypeRewardsMintInitialized = "rewards.mint.initialized"
	// TypeRewardsMinutesRecorded is emitted for every accepted minutes report.
	TypeRewardsMinutesRecorded = "rewards.minutes.recorded"
	TypeRewardsProfileCreated  = "rewards.profile.created"
	TypeRewardsProfileUpdated  = "rewards.profile.updated"
)

type RewardsConfigInitialized struct {
	Config    crypto.DerivedAddress
	Authority [20]byte
}

func (RewardsConfigInitialized) EventType() string { return TypeRewardsConfigInitialized }

func (e RewardsConfigInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsConfigInitialized,
		Attributes: map[string]string{
			"config":    e.Config.String(),
			"authority": crypto.MustNewAddress(crypto.RWDPrefix, e.Authority[:]).String(),
		},
	}
}

type RewardsMintInitialized struct {
	Mint          crypto.DerivedAddress
	MintAuthority crypto.DerivedAddress
	Decimals      uint8
	Payer         [20]byte
}

func (RewardsMintInitialized) EventType() string { return TypeRewardsMintInitialized }

func (e RewardsMintInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsMintInitialized,
		Attributes: map[string]string{
			"mint":          e.Mint.String(),
			"mintAuthority": e.MintAuthority.String(),
			"decimals":      strconv.FormatUint(uint64(e.Decimals), 10),
			"payer":         crypto.MustNewAddress(crypto.RWDPrefix, e.Payer[:]).String(),
		},
	}
}

// RewardsMinutesRecorded captures the counter transition and the resulting mint.
type RewardsMinutesRecorded struct {
	User            [20]byte
	PreviousMinutes uint64
	LifetimeMinutes uint64
	Delta           uint64
	Amount          uint64
	Saturated       bool
	Timestamp       uint64
}

func (RewardsMinutesRecorded) EventType() string { return TypeRewardsMinutesRecorded }

func (e RewardsMinutesRecorded) Event() *types.Event {
	attrs := map[string]string{
		"user":            crypto.MustNewAddress(crypto.RWDPrefix, e.User[:]).String(),
		"previousMinutes": strconv.FormatUint(e.PreviousMinutes, 10),
		"lifetimeMinutes": strconv.FormatUint(e.LifetimeMinutes, 10),
		"delta":           strconv.FormatUint(e.Delta, 10),
		"amount":          strconv.FormatUint(e.Amount, 10),
		"timestamp":       strconv.FormatUint(e.Timestamp, 10),
	}
	if e.Saturated {
		attrs["saturated"] = "true"
	}
	return &types.Event{Type: TypeRewardsMinutesRecorded, Attributes: attrs}
}

type RewardsProfileCreated struct {
	User     [20]byte
	Nickname string
}

func (RewardsProfileCreated) EventType() string { return TypeRewardsProfileCreated }

func (e RewardsProfileCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsProfileCreated,
		Attributes: map[string]string{
			"user":     crypto.MustNewAddress(crypto.RWDPrefix, e.User[:]).String(),
			"nickname": e.Nickname,
		},
	}
}

type RewardsProfileUpdated struct {
	User     [20]byte
	Caller   [20]byte
	Nickname string
}

func (RewardsProfileUpdated) EventType() string { return TypeRewardsProfileUpdated }

func (e RewardsProfileUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsProfileUpdated,
		Attributes: map[string]string{
			"user":     crypto.MustNewAddress(crypto.RWDPrefix, e.User[:]).String(),
			"caller":   crypto.MustNewAddress(crypto.RWDPrefix, e.Caller[:]).String(),
			"nickname": e.Nickname,
		},
	}
}
