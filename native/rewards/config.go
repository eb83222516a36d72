package rewards

import (
	"errors"
	"fmt"

	"rewardchain/core/events"
	"rewardchain/native/bank"
)

// InitializeConfig creates the program singleton with the caller as authority.
func (p *Program) InitializeConfig(caller [20]byte) (*Config, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	if caller == ([20]byte{}) {
		return nil, ErrInvalidUser
	}
	addrs, err := DeriveAddresses()
	if err != nil {
		return nil, err
	}
	exists, err := p.st.KVHas(accountKey(addrs.Config))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrConfigExists
	}
	cfg := &Config{Authority: caller, Bump: addrs.ConfigBump}
	if err := p.st.KVPut(accountKey(addrs.Config), cfg); err != nil {
		return nil, err
	}
	p.emitter.Emit(events.RewardsConfigInitialized{Config: addrs.Config, Authority: caller})
	return cfg, nil
}

// InitializeRewardMint creates the reward asset with the derived mint
// authority and records it in the config. Any signer may pay for it.
func (p *Program) InitializeRewardMint(payer [20]byte, decimals uint8) (*Config, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	if p.ledger == nil {
		return nil, ErrNilState
	}
	addrs, err := DeriveAddresses()
	if err != nil {
		return nil, err
	}
	cfg, err := p.loadConfig(addrs)
	if err != nil {
		return nil, err
	}
	if cfg.MintInitialized() {
		return nil, ErrRewardMintExists
	}
	if err := p.ledger.CreateMint(addrs.RewardMint, decimals, addrs.MintAuthority); err != nil {
		if errors.Is(err, bank.ErrMintExists) {
			return nil, fmt.Errorf("%w: %v", ErrRewardMintExists, err)
		}
		return nil, err
	}
	cfg.RewardMint = addrs.RewardMint
	cfg.MintBump = addrs.MintBump
	cfg.MintAuthBump = addrs.MintAuthBump
	cfg.Decimals = decimals
	if err := p.st.KVPut(accountKey(addrs.Config), cfg); err != nil {
		return nil, err
	}
	p.emitter.Emit(events.RewardsMintInitialized{
		Mint:          addrs.RewardMint,
		MintAuthority: addrs.MintAuthority,
		Decimals:      decimals,
		Payer:         payer,
	})
	return cfg, nil
}

// Config returns the program singleton.
func (p *Program) Config() (*Config, error) {
	if p == nil || p.st == nil {
		return nil, ErrNilState
	}
	addrs, err := DeriveAddresses()
	if err != nil {
		return nil, err
	}
	return p.loadConfig(addrs)
}

func (p *Program) loadConfig(addrs *Addresses) (*Config, error) {
	cfg := new(Config)
	ok, err := p.st.KVGet(accountKey(addrs.Config), cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}
