package explorer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rewardchain/core/events"
	"rewardchain/core/types"
	"rewardchain/crypto"
)

func openTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	idx, err := Open("sqlite://"+filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func mintReceipt(hash string, seq uint64, user [20]byte, prev, total uint64) *types.Receipt {
	evt := events.RewardsMinutesRecorded{
		User:            user,
		PreviousMinutes: prev,
		LifetimeMinutes: total,
		Delta:           total - prev,
		Amount:          (total - prev) * 1_000_000,
		Timestamp:       1_700_000_000 + seq,
	}.Event()
	return &types.Receipt{
		TxHash:   hash,
		Type:     "subscribe_minutes",
		Sender:   crypto.MustNewAddress(crypto.RWDPrefix, user[:]).String(),
		Sequence: seq,
		Status:   types.ReceiptStatusSuccess,
		Events:   []types.Event{*evt},
	}
}

func TestIndexerRecordsMintHistoryNewestFirst(t *testing.T) {
	idx := openTestIndexer(t)
	ctx := context.Background()
	alice := [20]byte{0x01}
	bob := [20]byte{0x02}

	require.NoError(t, idx.HandleReceipt(ctx, mintReceipt("0xa1", 1, alice, 0, 100)))
	require.NoError(t, idx.HandleReceipt(ctx, mintReceipt("0xb1", 2, bob, 0, 10)))
	require.NoError(t, idx.HandleReceipt(ctx, mintReceipt("0xa2", 3, alice, 100, 250)))

	history, err := idx.MintHistory(ctx, alice, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "0xa2", history[0].TxHash)
	require.Equal(t, uint64(150), history[0].Delta)
	require.Equal(t, uint64(150_000_000), history[0].Amount)
	require.Equal(t, uint64(250), history[0].LifetimeMinutes)
	require.Equal(t, "Rewarded 150 minutes", history[0].Label)
	require.Equal(t, "0xa1", history[1].TxHash)

	limited, err := idx.MintHistory(ctx, alice, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestIndexerSkipsZeroDeltaAndFailedReceipts(t *testing.T) {
	idx := openTestIndexer(t)
	ctx := context.Background()
	user := [20]byte{0x03}

	require.NoError(t, idx.HandleReceipt(ctx, mintReceipt("0xc1", 1, user, 250, 250)))
	failed := mintReceipt("0xc2", 0, user, 0, 5)
	failed.Status = types.ReceiptStatusFailed
	require.NoError(t, idx.HandleReceipt(ctx, failed))
	require.NoError(t, idx.HandleReceipt(ctx, nil))

	history, err := idx.MintHistory(ctx, user, 10)
	require.NoError(t, err)
	require.Empty(t, history)

	count, err := idx.ReceiptCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestIndexerIgnoresDuplicateReceipts(t *testing.T) {
	idx := openTestIndexer(t)
	ctx := context.Background()
	user := [20]byte{0x04}
	receipt := mintReceipt("0xd1", 1, user, 0, 7)

	require.NoError(t, idx.HandleReceipt(ctx, receipt))
	require.NoError(t, idx.HandleReceipt(ctx, receipt))

	history, err := idx.MintHistory(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open("mysql://localhost/db", nil)
	require.ErrorIs(t, err, ErrUnsupportedDSN)
	_, err = Open("  ", nil)
	require.ErrorIs(t, err, ErrUnsupportedDSN)
}

func TestMintLabel(t *testing.T) {
	require.Equal(t, "Rewarded 1 minute", MintLabel(1))
	require.Equal(t, "Rewarded 42 minutes", MintLabel(42))
}
