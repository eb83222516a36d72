package rewards

import "errors"

var (
	ErrNilState                 = errors.New("rewards: state unavailable")
	ErrInvalidUser              = errors.New("rewards: invalid user")
	ErrAlreadyClaimed           = errors.New("rewards: minutes already claimed, counter cannot move backwards")
	ErrFieldTooLong             = errors.New("rewards: field exceeds maximum length")
	ErrUnauthorized             = errors.New("rewards: unauthorized")
	ErrConfigExists             = errors.New("rewards: config already initialized")
	ErrConfigNotFound           = errors.New("rewards: config not initialized")
	ErrRewardMintExists         = errors.New("rewards: reward mint already initialized")
	ErrRewardMintNotInitialized = errors.New("rewards: reward mint not initialized")
	ErrUserRecordNotFound       = errors.New("rewards: user record not found")
	ErrProfileExists            = errors.New("rewards: profile already exists")
	ErrProfileNotFound          = errors.New("rewards: profile not found")
	ErrQuotaExceeded            = errors.New("rewards: submission quota exceeded")
)
