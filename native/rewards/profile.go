package rewards

import "rewardchain/core/events"

// CreateProfile stores a new profile owned by caller.
func (p *Program) CreateProfile(caller [20]byte, fields ProfileFields) (*UserProfile, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	if caller == ([20]byte{}) {
		return nil, ErrInvalidUser
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	addr, bump, err := ProfileAddress(caller)
	if err != nil {
		return nil, err
	}
	exists, err := p.st.KVHas(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrProfileExists
	}
	profile := &UserProfile{User: caller, Bump: bump}
	profile.apply(fields)
	if err := p.st.KVPut(accountKey(addr), profile); err != nil {
		return nil, err
	}
	p.emitter.Emit(events.RewardsProfileCreated{User: caller, Nickname: profile.Nickname})
	return profile, nil
}

// SetProfile replaces the fields of owner's profile. Only the recorded owner
// may do so.
func (p *Program) SetProfile(caller, owner [20]byte, fields ProfileFields) (*UserProfile, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	addr, _, err := ProfileAddress(owner)
	if err != nil {
		return nil, err
	}
	profile := new(UserProfile)
	ok, err := p.st.KVGet(accountKey(addr), profile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProfileNotFound
	}
	if profile.User != caller {
		return nil, ErrUnauthorized
	}
	profile.apply(fields)
	if err := p.st.KVPut(accountKey(addr), profile); err != nil {
		return nil, err
	}
	p.emitter.Emit(events.RewardsProfileUpdated{User: owner, Caller: caller, Nickname: profile.Nickname})
	return profile, nil
}

// Profile returns the profile of user.
func (p *Program) Profile(user [20]byte) (*UserProfile, error) {
	if p == nil || p.st == nil {
		return nil, ErrNilState
	}
	addr, _, err := ProfileAddress(user)
	if err != nil {
		return nil, err
	}
	profile := new(UserProfile)
	ok, err := p.st.KVGet(accountKey(addr), profile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}
