package rewards

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"rewardchain/crypto"
)

const moduleName = "rewards"

// ProgramID identifies the rewards program in address derivations.
var ProgramID = ethcrypto.Keccak256([]byte("rewardchain/native/rewards"))

var (
	seedConfig        = []byte("config2")
	seedRewardMint    = []byte("reward_mint")
	seedMintAuthority = []byte("reward_mint_auth")
	seedUserData      = []byte("user_data")
	seedUserProfile   = []byte("user_profile")

	accountPrefix = []byte("rewards/account/")
	quotaPrefix   = []byte("rewards/quota/")
)

// Addresses lists the program's singleton derived addresses and their bumps.
type Addresses struct {
	Config        crypto.DerivedAddress `json:"config"`
	ConfigBump    uint8                 `json:"configBump"`
	RewardMint    crypto.DerivedAddress `json:"rewardMint"`
	MintBump      uint8                 `json:"mintBump"`
	MintAuthority crypto.DerivedAddress `json:"mintAuthority"`
	MintAuthBump  uint8                 `json:"mintAuthBump"`
}

// DeriveAddresses computes the config, reward mint and mint authority
// addresses of the program.
func DeriveAddresses() (*Addresses, error) {
	cfg, cfgBump, err := crypto.FindProgramAddress(ProgramID, seedConfig)
	if err != nil {
		return nil, fmt.Errorf("rewards: derive config: %w", err)
	}
	mint, mintBump, err := crypto.FindProgramAddress(ProgramID, seedRewardMint)
	if err != nil {
		return nil, fmt.Errorf("rewards: derive reward mint: %w", err)
	}
	auth, authBump, err := crypto.FindProgramAddress(ProgramID, seedMintAuthority)
	if err != nil {
		return nil, fmt.Errorf("rewards: derive mint authority: %w", err)
	}
	return &Addresses{
		Config:        cfg,
		ConfigBump:    cfgBump,
		RewardMint:    mint,
		MintBump:      mintBump,
		MintAuthority: auth,
		MintAuthBump:  authBump,
	}, nil
}

// UserRecordAddress derives the storage location of a user's minutes record.
func UserRecordAddress(user [20]byte) (crypto.DerivedAddress, uint8, error) {
	return crypto.FindProgramAddress(ProgramID, seedUserData, user[:])
}

// ProfileAddress derives the storage location of a user's profile.
func ProfileAddress(user [20]byte) (crypto.DerivedAddress, uint8, error) {
	return crypto.FindProgramAddress(ProgramID, seedUserProfile, user[:])
}

func accountKey(addr crypto.DerivedAddress) []byte {
	buf := make([]byte, 0, len(accountPrefix)+len(addr))
	buf = append(buf, accountPrefix...)
	return append(buf, addr[:]...)
}

func quotaKey(user [20]byte) []byte {
	buf := make([]byte, 0, len(quotaPrefix)+len(user))
	buf = append(buf, quotaPrefix...)
	return append(buf, user[:]...)
}
