package state

import (
	"errors"
	"fmt"
	"math"

	"rewardchain/crypto"
)

var (
	ErrTokenExists      = errors.New("state: token already registered")
	ErrTokenNotFound    = errors.New("state: token not registered")
	ErrBalanceOverflow  = errors.New("state: balance overflow")
	ErrSupplyOverflow   = errors.New("state: supply overflow")
	ErrAddressRequired  = errors.New("state: address must not be empty")
	ErrMintAddressEmpty = errors.New("state: mint address must not be zero")
)

// TokenMetadata describes a fungible asset registered with the ledger.
type TokenMetadata struct {
	Mint          crypto.DerivedAddress
	Decimals      uint8
	MintAuthority crypto.DerivedAddress
	Supply        uint64
}

var (
	tokenPrefix   = []byte("token/meta/")
	balancePrefix = []byte("token/balance/")
	noncePrefix   = []byte("account/nonce/")
)

func tokenMetadataKey(mint crypto.DerivedAddress) []byte {
	buf := make([]byte, 0, len(tokenPrefix)+len(mint))
	buf = append(buf, tokenPrefix...)
	return append(buf, mint[:]...)
}

func balanceKey(mint crypto.DerivedAddress, owner []byte) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(mint)+1+len(owner))
	buf = append(buf, balancePrefix...)
	buf = append(buf, mint[:]...)
	buf = append(buf, ':')
	return append(buf, owner...)
}

func nonceKey(addr []byte) []byte {
	buf := make([]byte, 0, len(noncePrefix)+len(addr))
	buf = append(buf, noncePrefix...)
	return append(buf, addr...)
}

// RegisterToken stores the metadata for a new mint. Registering an existing
// mint address fails.
func (m *Manager) RegisterToken(mint crypto.DerivedAddress, decimals uint8, authority crypto.DerivedAddress) error {
	if mint.IsZero() {
		return ErrMintAddressEmpty
	}
	exists, err := m.KVHas(tokenMetadataKey(mint))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrTokenExists, mint)
	}
	meta := &TokenMetadata{Mint: mint, Decimals: decimals, MintAuthority: authority}
	return m.KVPut(tokenMetadataKey(mint), meta)
}

// Token retrieves metadata for a registered mint. A nil result without error
// means the mint does not exist.
func (m *Manager) Token(mint crypto.DerivedAddress) (*TokenMetadata, error) {
	meta := new(TokenMetadata)
	ok, err := m.KVGet(tokenMetadataKey(mint), meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return meta, nil
}

// Balance returns the owner's balance of mint; missing entries are zero.
func (m *Manager) Balance(mint crypto.DerivedAddress, owner []byte) (uint64, error) {
	if len(owner) == 0 {
		return 0, ErrAddressRequired
	}
	var amount uint64
	if _, err := m.KVGet(balanceKey(mint, owner), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Credit adds amount to the owner's balance and to the mint's total supply,
// returning the new balance and supply. Overflow of either fails without
// writing anything.
func (m *Manager) Credit(mint crypto.DerivedAddress, owner []byte, amount uint64) (uint64, uint64, error) {
	meta, err := m.Token(mint)
	if err != nil {
		return 0, 0, err
	}
	if meta == nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrTokenNotFound, mint)
	}
	balance, err := m.Balance(mint, owner)
	if err != nil {
		return 0, 0, err
	}
	if balance > math.MaxUint64-amount {
		return 0, 0, ErrBalanceOverflow
	}
	if meta.Supply > math.MaxUint64-amount {
		return 0, 0, ErrSupplyOverflow
	}
	balance += amount
	meta.Supply += amount
	if err := m.KVPut(balanceKey(mint, owner), balance); err != nil {
		return 0, 0, err
	}
	if err := m.KVPut(tokenMetadataKey(mint), meta); err != nil {
		return 0, 0, err
	}
	return balance, meta.Supply, nil
}

// Nonce returns the next expected transaction nonce for addr.
func (m *Manager) Nonce(addr []byte) (uint64, error) {
	if len(addr) == 0 {
		return 0, ErrAddressRequired
	}
	var nonce uint64
	if _, err := m.KVGet(nonceKey(addr), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// SetNonce stores the next expected nonce for addr.
func (m *Manager) SetNonce(addr []byte, nonce uint64) error {
	if len(addr) == 0 {
		return ErrAddressRequired
	}
	return m.KVPut(nonceKey(addr), nonce)
}
