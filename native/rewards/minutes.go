package rewards

import (
	"fmt"

	"rewardchain/core/events"
	nativecommon "rewardchain/native/common"
)

// SubscribeMinutes records a cumulative minutes report, creating the user's
// record on first use, and mints the newly accrued delta.
func (p *Program) SubscribeMinutes(user [20]byte, minutes, timestamp uint64) (*MintResult, error) {
	return p.recordMinutes(user, minutes, timestamp, true)
}

// AddMinutes is SubscribeMinutes for users whose record already exists.
func (p *Program) AddMinutes(user [20]byte, minutes, timestamp uint64) (*MintResult, error) {
	return p.recordMinutes(user, minutes, timestamp, false)
}

// UserRecord returns the minutes record of user.
func (p *Program) UserRecord(user [20]byte) (*UserRecord, error) {
	if p == nil || p.st == nil {
		return nil, ErrNilState
	}
	addr, _, err := UserRecordAddress(user)
	if err != nil {
		return nil, err
	}
	record := new(UserRecord)
	ok, err := p.st.KVGet(accountKey(addr), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserRecordNotFound
	}
	return record, nil
}

// recordMinutes validates the submission and performs every read and check
// before the first write, so a rejected submission changes nothing.
func (p *Program) recordMinutes(user [20]byte, minutes, timestamp uint64, create bool) (*MintResult, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	if p.ledger == nil {
		return nil, ErrNilState
	}
	if user == ([20]byte{}) {
		return nil, ErrInvalidUser
	}
	addrs, err := DeriveAddresses()
	if err != nil {
		return nil, err
	}
	cfg, err := p.loadConfig(addrs)
	if err != nil {
		return nil, err
	}
	if !cfg.MintInitialized() {
		return nil, ErrRewardMintNotInitialized
	}

	recordAddr, bump, err := UserRecordAddress(user)
	if err != nil {
		return nil, err
	}
	record := new(UserRecord)
	found, err := p.st.KVGet(accountKey(recordAddr), record)
	if err != nil {
		return nil, err
	}
	if !found {
		if !create {
			return nil, ErrUserRecordNotFound
		}
		record = &UserRecord{User: user, Bump: bump}
	}

	previous := record.LifetimeMinutes
	if previous > 0 && minutes <= previous {
		return nil, fmt.Errorf("%w: submitted %d, recorded %d", ErrAlreadyClaimed, minutes, previous)
	}
	delta := minutes - previous
	amount, saturated := ScaleMinutes(delta, cfg.Decimals)

	var usage nativecommon.QuotaNow
	if p.quota.Enabled() {
		if _, err := p.st.KVGet(quotaKey(user), &usage); err != nil {
			return nil, err
		}
		epoch := p.quota.EpochFor(p.nowFn().Unix())
		usage, err = nativecommon.CheckQuota(p.quota, epoch, usage, 1, amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
	}

	result := &MintResult{
		User:            user,
		PreviousMinutes: previous,
		LifetimeMinutes: minutes,
		Delta:           delta,
		Amount:          amount,
		Saturated:       saturated,
	}
	if amount > 0 {
		balance, err := p.ledger.MintToSigned(cfg.RewardMint, user, amount, seedMintAuthority, []byte{cfg.MintAuthBump})
		if err != nil {
			return nil, fmt.Errorf("rewards: mint %d units: %w", amount, err)
		}
		result.Balance = balance
	}

	record.LifetimeMinutes = minutes
	record.LastUpdated = timestamp
	if err := p.st.KVPut(accountKey(recordAddr), record); err != nil {
		return nil, err
	}
	if p.quota.Enabled() {
		if err := p.st.KVPut(quotaKey(user), &usage); err != nil {
			return nil, err
		}
	}
	p.emitter.Emit(events.RewardsMinutesRecorded{
		User:            user,
		PreviousMinutes: previous,
		LifetimeMinutes: minutes,
		Delta:           delta,
		Amount:          amount,
		Saturated:       saturated,
		Timestamp:       timestamp,
	})
	return result, nil
}
