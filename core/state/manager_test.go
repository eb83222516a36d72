package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"rewardchain/crypto"
	"rewardchain/storage"
)

type sample struct {
	Owner [20]byte
	Count uint64
	Label string
}

func TestManagerBuffersUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	require.NoError(t, mgr.KVPut([]byte("sample"), &sample{Count: 3, Label: "x"}))
	require.Equal(t, 0, db.Len(), "writes must stay buffered")

	var got sample
	ok, err := mgr.KVGet([]byte("sample"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3), got.Count)

	require.NoError(t, mgr.Commit())
	require.Equal(t, 1, db.Len())

	reader := NewManager(db)
	ok, err = reader.KVGet([]byte("sample"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "x", got.Label)
}

func TestManagerDiscardLeavesStoreUntouched(t *testing.T) {
	db := storage.NewMemDB()
	seed := NewManager(db)
	require.NoError(t, seed.KVPut([]byte("counter"), uint64(1)))
	require.NoError(t, seed.Commit())

	mgr := NewManager(db)
	require.NoError(t, mgr.KVPut([]byte("counter"), uint64(2)))
	require.NoError(t, mgr.KVDelete([]byte("other")))
	mgr.Discard()

	_, err := mgr.KVGet([]byte("counter"), new(uint64))
	require.ErrorIs(t, err, ErrManagerClosed)
	require.ErrorIs(t, mgr.Commit(), ErrManagerClosed)

	var counter uint64
	ok, err := NewManager(db).KVGet([]byte("counter"), &counter)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), counter)
}

func TestManagerDeleteShadowsStore(t *testing.T) {
	db := storage.NewMemDB()
	seed := NewManager(db)
	require.NoError(t, seed.KVPut([]byte("k"), uint64(9)))
	require.NoError(t, seed.Commit())

	mgr := NewManager(db)
	require.NoError(t, mgr.KVDelete([]byte("k")))
	ok, err := mgr.KVHas([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mgr.Commit())
	require.Equal(t, 0, db.Len())
}

func TestManagerRejectsEmptyKey(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	require.Error(t, mgr.KVPut(nil, uint64(1)))
	_, err := mgr.KVGet(nil, nil)
	require.Error(t, err)
}

func TestTokenRegistryAndCredit(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	mint, _, err := crypto.FindProgramAddress([]byte("p"), []byte("reward_mint"))
	require.NoError(t, err)
	authority, _, err := crypto.FindProgramAddress([]byte("p"), []byte("reward_mint_auth"))
	require.NoError(t, err)

	require.NoError(t, mgr.RegisterToken(mint, 6, authority))
	require.ErrorIs(t, mgr.RegisterToken(mint, 9, authority), ErrTokenExists)
	require.ErrorIs(t, mgr.RegisterToken(crypto.DerivedAddress{}, 6, authority), ErrMintAddressEmpty)

	meta, err := mgr.Token(mint)
	require.NoError(t, err)
	require.Equal(t, uint8(6), meta.Decimals)
	require.Equal(t, authority, meta.MintAuthority)

	owner := make([]byte, 20)
	owner[0] = 0x01
	balance, supply, err := mgr.Credit(mint, owner, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(100), balance)
	require.Equal(t, uint64(100), supply)

	_, _, err = mgr.Credit(mint, owner, math.MaxUint64)
	require.ErrorIs(t, err, ErrBalanceOverflow)

	got, err := mgr.Balance(mint, owner)
	require.NoError(t, err)
	require.Equal(t, uint64(100), got)

	missing, err := mgr.Token(authority)
	require.NoError(t, err)
	require.Nil(t, missing)
	_, _, err = mgr.Credit(authority, owner, 1)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestNonceDefaultsToZero(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	addr := []byte{0x01, 0x02}
	nonce, err := mgr.Nonce(addr)
	require.NoError(t, err)
	require.Zero(t, nonce)

	require.NoError(t, mgr.SetNonce(addr, 5))
	nonce, err = mgr.Nonce(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(5), nonce)

	_, err = mgr.Nonce(nil)
	require.ErrorIs(t, err, ErrAddressRequired)
}
