package rewards

import (
	"fmt"

	"rewardchain/crypto"
)

// Maximum profile field lengths in bytes.
const (
	MaxNicknameLength  = 32
	MaxTelegramLength  = 64
	MaxXHandleLength   = 64
	MaxAvatarCIDLength = 100
)

// Config is the program-wide singleton. The reward asset fields stay zero
// until the reward mint is initialised and are written exactly once.
type Config struct {
	Authority    [20]byte
	TotalUsers   uint64
	Bump         uint8
	RewardMint   crypto.DerivedAddress
	MintBump     uint8
	MintAuthBump uint8
	Decimals     uint8
}

// MintInitialized reports whether the reward asset has been created.
func (c *Config) MintInitialized() bool {
	return c != nil && !c.RewardMint.IsZero()
}

// UserRecord tracks the cumulative minutes reported for a user.
type UserRecord struct {
	User            [20]byte
	LifetimeMinutes uint64
	LastUpdated     uint64
	Bump            uint8
}

// UserProfile holds the public profile strings of a user.
type UserProfile struct {
	User      [20]byte
	Nickname  string
	Telegram  string
	XHandle   string
	AvatarCID string
	Bump      uint8
}

// ProfileFields is the mutable part of a profile.
type ProfileFields struct {
	Nickname  string
	Telegram  string
	XHandle   string
	AvatarCID string
}

// Validate enforces the per-field byte limits.
func (f ProfileFields) Validate() error {
	checks := []struct {
		name  string
		value string
		max   int
	}{
		{"nickname", f.Nickname, MaxNicknameLength},
		{"tg", f.Telegram, MaxTelegramLength},
		{"x_handle", f.XHandle, MaxXHandleLength},
		{"avatar_cid", f.AvatarCID, MaxAvatarCIDLength},
	}
	for _, c := range checks {
		if len(c.value) > c.max {
			return fmt.Errorf("%w: %s is %d bytes, max %d", ErrFieldTooLong, c.name, len(c.value), c.max)
		}
	}
	return nil
}

func (p *UserProfile) apply(f ProfileFields) {
	p.Nickname = f.Nickname
	p.Telegram = f.Telegram
	p.XHandle = f.XHandle
	p.AvatarCID = f.AvatarCID
}

// MintResult describes the outcome of a minutes submission.
type MintResult struct {
	User            [20]byte
	PreviousMinutes uint64
	LifetimeMinutes uint64
	Delta           uint64
	Amount          uint64
	Saturated       bool
	Balance         uint64
}

// Minted reports whether the submission issued tokens.
func (r *MintResult) Minted() bool {
	return r != nil && r.Amount > 0
}
