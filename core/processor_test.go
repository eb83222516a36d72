package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rewardchain/core/events"
	"rewardchain/core/types"
	"rewardchain/crypto"
	"rewardchain/native/rewards"
	"rewardchain/storage"
)

const testChainID = uint64(7777)

type testAccount struct {
	key   *crypto.PrivateKey
	addr  [20]byte
	nonce uint64
}

func newTestAccount(t *testing.T) *testAccount {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &testAccount{key: key, addr: key.PubKey().Address().Array()}
}

func (a *testAccount) tx(t *testing.T, txType types.TxType, payload interface{}) *types.Transaction {
	t.Helper()
	data, err := types.EncodePayload(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	tx := &types.Transaction{ChainID: testChainID, Type: txType, Nonce: a.nonce, Data: data}
	if err := tx.Sign(a.key.PrivateKey); err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	return tx
}

// submit applies a transaction and advances the local nonce when it commits.
func (a *testAccount) submit(t *testing.T, n *Node, txType types.TxType, payload interface{}) (*types.Receipt, error) {
	t.Helper()
	receipt, err := n.SubmitTransaction(context.Background(), a.tx(t, txType, payload))
	if err == nil {
		a.nonce++
	}
	return receipt, err
}

func newTestNode(t *testing.T) (*Node, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	return NewNode(db, NodeConfig{ChainID: testChainID}), db
}

func bootstrap(t *testing.T, n *Node, operator *testAccount, decimals uint8) {
	t.Helper()
	if _, err := operator.submit(t, n, types.TxTypeInitializeConfig, nil); err != nil {
		t.Fatalf("initialize config: %v", err)
	}
	if _, err := operator.submit(t, n, types.TxTypeInitializeRewardMint, types.RewardMintPayload{Decimals: decimals}); err != nil {
		t.Fatalf("initialize reward mint: %v", err)
	}
}

func TestProcessorMinutesScenario(t *testing.T) {
	node, _ := newTestNode(t)
	operator := newTestAccount(t)
	user := newTestAccount(t)
	bootstrap(t, node, operator, 6)

	receipt, err := user.submit(t, node, types.TxTypeSubscribeMinutes, types.MinutesPayload{Minutes: 100, Timestamp: 1})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !receipt.Succeeded() || receipt.Sequence != 3 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	var sawMint bool
	for _, evt := range receipt.Events {
		if evt.Type == events.TypeTokenMinted && evt.Attributes["amount"] == "100000000" {
			sawMint = true
		}
	}
	if !sawMint {
		t.Fatalf("expected token.minted event, got %+v", receipt.Events)
	}

	if _, err := user.submit(t, node, types.TxTypeAddMinutes, types.MinutesPayload{Minutes: 250, Timestamp: 2}); err != nil {
		t.Fatalf("add minutes: %v", err)
	}
	receipt, err = user.submit(t, node, types.TxTypeAddMinutes, types.MinutesPayload{Minutes: 250, Timestamp: 3})
	if !errors.Is(err, rewards.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	if receipt == nil || receipt.Succeeded() || receipt.Error == "" {
		t.Fatalf("expected failed receipt, got %+v", receipt)
	}

	balance, err := node.RewardBalance(user.addr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 250_000_000 {
		t.Fatalf("unexpected balance %d", balance)
	}
	record, err := node.UserRecord(user.addr)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if record.LifetimeMinutes != 250 || record.LastUpdated != 2 {
		t.Fatalf("unexpected record %+v", record)
	}
	nonce, err := node.Nonce(user.addr)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if nonce != 2 {
		t.Fatalf("failed transaction must not consume a nonce, got %d", nonce)
	}
	supply, err := node.RewardSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Supply != 250_000_000 {
		t.Fatalf("unexpected supply %d", supply.Supply)
	}
}

func TestProcessorFailedTransactionWritesNothing(t *testing.T) {
	node, db := newTestNode(t)
	user := newTestAccount(t)

	mem := db.(*storage.MemDB)
	before := mem.Len()
	_, err := user.submit(t, node, types.TxTypeSubscribeMinutes, types.MinutesPayload{Minutes: 1})
	if !errors.Is(err, rewards.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
	if mem.Len() != before {
		t.Fatalf("failed transaction wrote %d keys", mem.Len()-before)
	}
}

func TestProcessorRejectsReplayAndWrongChain(t *testing.T) {
	node, _ := newTestNode(t)
	operator := newTestAccount(t)

	tx := operator.tx(t, types.TxTypeInitializeConfig, nil)
	if _, err := node.SubmitTransaction(context.Background(), tx); err != nil {
		t.Fatalf("initialize config: %v", err)
	}
	receipt, err := node.SubmitTransaction(context.Background(), tx)
	if !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("expected ErrNonceMismatch, got %v", err)
	}
	if receipt != nil {
		t.Fatalf("rejected transaction must not produce a receipt")
	}

	wrong := &types.Transaction{ChainID: testChainID + 1, Type: types.TxTypeInitializeConfig, Nonce: 1}
	if err := wrong.Sign(operator.key.PrivateKey); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := node.SubmitTransaction(context.Background(), wrong); !errors.Is(err, ErrInvalidChainID) {
		t.Fatalf("expected ErrInvalidChainID, got %v", err)
	}

	unsigned := &types.Transaction{ChainID: testChainID, Type: types.TxTypeInitializeConfig}
	if _, err := node.SubmitTransaction(context.Background(), unsigned); !errors.Is(err, types.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}

func TestProcessorRejectsBadPayloadAndType(t *testing.T) {
	node, _ := newTestNode(t)
	operator := newTestAccount(t)
	bootstrap(t, node, operator, 0)

	tx := operator.tx(t, types.TxTypeSubscribeMinutes, map[string]interface{}{"minutes": 1, "extra": true})
	if _, err := node.SubmitTransaction(context.Background(), tx); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	tx = operator.tx(t, types.TxType(0x7f), nil)
	if _, err := node.SubmitTransaction(context.Background(), tx); !errors.Is(err, ErrUnknownTxType) {
		t.Fatalf("expected ErrUnknownTxType, got %v", err)
	}
}

func TestProcessorProfileOwnership(t *testing.T) {
	node, _ := newTestNode(t)
	owner := newTestAccount(t)
	other := newTestAccount(t)

	if _, err := owner.submit(t, node, types.TxTypeCreateProfile, types.ProfilePayload{Nickname: "owner"}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	ownerAddr := crypto.MustNewAddress(crypto.RWDPrefix, owner.addr[:]).String()
	_, err := other.submit(t, node, types.TxTypeSetProfile, types.ProfilePayload{Owner: ownerAddr, Nickname: "mallory"})
	if !errors.Is(err, rewards.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := owner.submit(t, node, types.TxTypeSetProfile, types.ProfilePayload{Nickname: "renamed"}); err != nil {
		t.Fatalf("set profile: %v", err)
	}
	profile, err := node.Profile(owner.addr)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Nickname != "renamed" {
		t.Fatalf("unexpected nickname %q", profile.Nickname)
	}
}

func TestProcessorStoresReceipts(t *testing.T) {
	node, _ := newTestNode(t)
	operator := newTestAccount(t)
	tx := operator.tx(t, types.TxTypeInitializeConfig, nil)
	receipt, err := node.SubmitTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	hash, err := tx.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	stored, err := node.Receipt(hash)
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if stored == nil || stored.TxHash != receipt.TxHash || stored.Sequence != 1 {
		t.Fatalf("unexpected stored receipt %+v", stored)
	}
	missing, err := node.Receipt([]byte{0x01})
	if err != nil || missing != nil {
		t.Fatalf("expected unknown hash to return nil, got %+v %v", missing, err)
	}
}

type recordingSink struct {
	receipts []*types.Receipt
}

func (s *recordingSink) HandleReceipt(_ context.Context, r *types.Receipt) error {
	s.receipts = append(s.receipts, r)
	return errors.New("sink unavailable")
}

func TestNodePublishesCommittedEvents(t *testing.T) {
	node, _ := newTestNode(t)
	sink := &recordingSink{}
	node.AddReceiptSink(sink)
	operator := newTestAccount(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, unsubscribe, _ := node.Feed().Subscribe(ctx, 0)
	defer unsubscribe()

	if _, err := operator.submit(t, node, types.TxTypeInitializeConfig, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	select {
	case got := <-updates:
		if got.Event.Type != events.TypeRewardsConfigInitialized {
			t.Fatalf("unexpected event %s", got.Event.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected published event")
	}

	if _, err := operator.submit(t, node, types.TxTypeInitializeConfig, nil); !errors.Is(err, rewards.ErrConfigExists) {
		t.Fatalf("expected ErrConfigExists, got %v", err)
	}
	if len(sink.receipts) != 1 {
		t.Fatalf("sink must only see committed receipts, got %d", len(sink.receipts))
	}
	if node.Feed().Sequence() != 1 {
		t.Fatalf("failed transactions must not publish events")
	}
}

type orderedSink struct {
	mu       sync.Mutex
	receipts []*types.Receipt
}

func (s *orderedSink) HandleReceipt(_ context.Context, r *types.Receipt) error {
	s.mu.Lock()
	s.receipts = append(s.receipts, r)
	s.mu.Unlock()
	return nil
}

func TestNodePublishesInCommitOrder(t *testing.T) {
	db := storage.NewMemDB()
	node := NewNode(db, NodeConfig{ChainID: testChainID, FeedHistory: 4096})
	operator := newTestAccount(t)
	bootstrap(t, node, operator, 0)
	sink := &orderedSink{}
	node.AddReceiptSink(sink)

	const users = 64
	txs := make([]*types.Transaction, users)
	for i := range txs {
		txs[i] = newTestAccount(t).tx(t, types.TxTypeSubscribeMinutes, types.MinutesPayload{Minutes: uint64(i + 1), Timestamp: 1})
	}
	var wg sync.WaitGroup
	errs := make(chan error, users)
	for _, tx := range txs {
		wg.Add(1)
		go func(tx *types.Transaction) {
			defer wg.Done()
			if _, err := node.SubmitTransaction(context.Background(), tx); err != nil {
				errs <- err
			}
		}(tx)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("submit: %v", err)
	}

	if len(sink.receipts) != users {
		t.Fatalf("expected %d receipts, got %d", users, len(sink.receipts))
	}
	for i := 1; i < len(sink.receipts); i++ {
		if sink.receipts[i].Sequence <= sink.receipts[i-1].Sequence {
			t.Fatalf("sink saw sequence %d after %d", sink.receipts[i].Sequence, sink.receipts[i-1].Sequence)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, unsubscribe, backlog := node.Feed().Subscribe(ctx, 0)
	defer unsubscribe()
	var feedOrder []string
	for _, entry := range backlog {
		if n := len(feedOrder); n == 0 || feedOrder[n-1] != entry.TxHash {
			feedOrder = append(feedOrder, entry.TxHash)
		}
	}
	// The first two entries belong to the bootstrap transactions.
	feedOrder = feedOrder[2:]
	if len(feedOrder) != users {
		t.Fatalf("expected %d transactions in the feed, got %d", users, len(feedOrder))
	}
	for i, receipt := range sink.receipts {
		if feedOrder[i] != receipt.TxHash {
			t.Fatalf("feed and sink disagree at %d: %s vs %s", i, feedOrder[i], receipt.TxHash)
		}
	}
}

func TestProcessorHonoursPauses(t *testing.T) {
	db := storage.NewMemDB()
	node := NewNode(db, NodeConfig{ChainID: testChainID, Pauses: pauseSet{"rewards": true}})
	operator := newTestAccount(t)
	if _, err := operator.submit(t, node, types.TxTypeInitializeConfig, nil); err == nil {
		t.Fatalf("expected paused module to reject")
	}
}

type pauseSet map[string]bool

func (p pauseSet) IsPaused(module string) bool { return p[module] }
