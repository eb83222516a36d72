package bank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"rewardchain/core/events"
	chainstate "rewardchain/core/state"
	"rewardchain/crypto"
	nativecommon "rewardchain/native/common"
	"rewardchain/storage"
)

var (
	testProgram = []byte("test-program")
	mintSeed    = []byte("mint")
	authSeed    = []byte("mint_auth")
)

type ledgerFixture struct {
	ledger    *Ledger
	collector *events.Collector
	mint      crypto.DerivedAddress
	authority crypto.DerivedAddress
	authBump  uint8
}

func newFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	mgr := chainstate.NewManager(storage.NewMemDB())
	collector := &events.Collector{}
	ledger := NewLedger(mgr)
	ledger.SetEmitter(collector)

	mint, _, err := crypto.FindProgramAddress(testProgram, mintSeed)
	require.NoError(t, err)
	authority, bump, err := crypto.FindProgramAddress(testProgram, authSeed)
	require.NoError(t, err)
	require.NoError(t, ledger.CreateMint(mint, 6, authority))
	return &ledgerFixture{ledger: ledger, collector: collector, mint: mint, authority: authority, authBump: bump}
}

func recipient(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestCreateMintRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	err := f.ledger.CreateMint(f.mint, 9, f.authority)
	require.ErrorIs(t, err, ErrMintExists)

	meta, err := f.ledger.Token(f.mint)
	require.NoError(t, err)
	require.Equal(t, uint8(6), meta.Decimals)
}

func TestMintToSignedCreditsBalance(t *testing.T) {
	f := newFixture(t)
	f.collector.Reset()
	to := recipient(1)

	balance, err := f.ledger.Invoker(testProgram).MintToSigned(f.mint, to, 150, authSeed, []byte{f.authBump})
	require.NoError(t, err)
	require.Equal(t, uint64(150), balance)

	got, err := f.ledger.Balance(f.mint, to)
	require.NoError(t, err)
	require.Equal(t, uint64(150), got)

	evts := f.collector.Events()
	require.Len(t, evts, 2)
	require.Equal(t, events.TypeTokenMinted, evts[0].Type)
	require.Equal(t, events.TypeTokenSupply, evts[1].Type)
	require.Equal(t, "150", evts[1].Attributes["total"])
}

func TestMintToSignedRejectsForeignProgram(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Invoker([]byte("other-program")).MintToSigned(f.mint, recipient(1), 1, authSeed, []byte{f.authBump})
	require.ErrorIs(t, err, ErrMintUnauthorized)
}

func TestMintToSignedRejectsWrongSeeds(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Invoker(testProgram).MintToSigned(f.mint, recipient(1), 1, mintSeed)
	require.ErrorIs(t, err, ErrMintUnauthorized)
}

func TestMintToSignedUnknownMint(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Invoker(testProgram).MintToSigned(f.authority, recipient(1), 1, authSeed, []byte{f.authBump})
	require.ErrorIs(t, err, ErrMintNotFound)
}

func TestMintToSignedOverflow(t *testing.T) {
	f := newFixture(t)
	inv := f.ledger.Invoker(testProgram)
	to := recipient(2)
	_, err := inv.MintToSigned(f.mint, to, math.MaxUint64, authSeed, []byte{f.authBump})
	require.NoError(t, err)
	_, err = inv.MintToSigned(f.mint, to, 1, authSeed, []byte{f.authBump})
	require.ErrorIs(t, err, ErrBalanceOverflow)

	balance, err := f.ledger.Balance(f.mint, to)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), balance)
}

func TestMintToSignedZeroAmountEmitsNothing(t *testing.T) {
	f := newFixture(t)
	f.collector.Reset()
	balance, err := f.ledger.Invoker(testProgram).MintToSigned(f.mint, recipient(3), 0, authSeed, []byte{f.authBump})
	require.NoError(t, err)
	require.Zero(t, balance)
	require.Empty(t, f.collector.Events())
}

func TestMintToSignedRejectsZeroRecipient(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Invoker(testProgram).MintToSigned(f.mint, [20]byte{}, 1, authSeed, []byte{f.authBump})
	require.ErrorIs(t, err, ErrInvalidRecipient)
}

type pausedBank struct{}

func (pausedBank) IsPaused(module string) bool { return module == "bank" }

func TestLedgerPaused(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetPauses(pausedBank{})
	_, err := f.ledger.Invoker(testProgram).MintToSigned(f.mint, recipient(1), 1, authSeed, []byte{f.authBump})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	require.ErrorIs(t, f.ledger.CreateMint(f.authority, 0, f.authority), nativecommon.ErrModulePaused)
}
