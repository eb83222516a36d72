package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"rewardchain/core/events"
	chainstate "rewardchain/core/state"
	"rewardchain/core/types"
	"rewardchain/native/bank"
	nativecommon "rewardchain/native/common"
	"rewardchain/native/rewards"
	"rewardchain/storage"
)

// ReceiptSink receives every committed receipt, in commit order.
type ReceiptSink interface {
	HandleReceipt(ctx context.Context, receipt *types.Receipt) error
}

// NodeConfig carries the runtime policy applied to every transaction.
type NodeConfig struct {
	ChainID     uint64
	FeedHistory int
	Pauses      nativecommon.PauseView
	Quota       nativecommon.Quota
	Logger      *slog.Logger
}

// Node is the central controller, wiring storage, the processor, the event
// feed and receipt sinks together.
type Node struct {
	db        storage.Database
	processor *Processor
	feed      *events.Feed
	logger    *slog.Logger

	sinkMu sync.RWMutex
	sinks  []ReceiptSink
}

func NewNode(db storage.Database, cfg NodeConfig) *Node {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	processor := NewProcessor(db, cfg.ChainID)
	processor.SetPauses(cfg.Pauses)
	processor.SetQuota(cfg.Quota)
	processor.SetLogger(logger)
	node := &Node{
		db:        db,
		processor: processor,
		feed:      events.NewFeed(cfg.FeedHistory),
		logger:    logger,
	}
	processor.SetCommitHook(node.publish)
	return node
}

// AddReceiptSink registers a sink notified after each commit.
func (n *Node) AddReceiptSink(sink ReceiptSink) {
	if sink == nil {
		return
	}
	n.sinkMu.Lock()
	n.sinks = append(n.sinks, sink)
	n.sinkMu.Unlock()
}

// SubmitTransaction applies tx. Committed receipts reach the event feed and
// the registered sinks before the next transaction commits.
func (n *Node) SubmitTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return n.processor.Apply(ctx, tx)
}

// publish forwards a committed receipt to the feed and sinks. Sink failures
// are logged; the transaction is already durable at that point.
func (n *Node) publish(ctx context.Context, receipt *types.Receipt) {
	n.feed.Publish(receipt.TxHash, receipt.Events)

	n.sinkMu.RLock()
	sinks := append([]ReceiptSink(nil), n.sinks...)
	n.sinkMu.RUnlock()
	for _, sink := range sinks {
		if err := sink.HandleReceipt(ctx, receipt); err != nil {
			n.logger.Error("receipt sink failed",
				slog.String("txHash", receipt.TxHash),
				slog.String("error", err.Error()))
		}
	}
}

func (n *Node) Processor() *Processor { return n.processor }

func (n *Node) Feed() *events.Feed { return n.feed }

func (n *Node) ChainID() uint64 { return n.processor.ChainID() }

func (n *Node) readProgram() (*rewards.Program, *chainstate.Manager) {
	mgr := chainstate.NewManager(n.db)
	return rewards.New(mgr, nil), mgr
}

// Config returns the rewards config singleton.
func (n *Node) Config() (*rewards.Config, error) {
	program, _ := n.readProgram()
	return program.Config()
}

// UserRecord returns the minutes record of user.
func (n *Node) UserRecord(user [20]byte) (*rewards.UserRecord, error) {
	program, _ := n.readProgram()
	return program.UserRecord(user)
}

// Profile returns the profile of user.
func (n *Node) Profile(user [20]byte) (*rewards.UserProfile, error) {
	program, _ := n.readProgram()
	return program.Profile(user)
}

// RewardBalance returns the user's balance of the reward token.
func (n *Node) RewardBalance(user [20]byte) (uint64, error) {
	program, mgr := n.readProgram()
	cfg, err := program.Config()
	if err != nil {
		return 0, err
	}
	if !cfg.MintInitialized() {
		return 0, rewards.ErrRewardMintNotInitialized
	}
	return bank.NewLedger(mgr).Balance(cfg.RewardMint, user)
}

// RewardSupply returns the reward token metadata including total supply.
func (n *Node) RewardSupply() (*chainstate.TokenMetadata, error) {
	program, mgr := n.readProgram()
	cfg, err := program.Config()
	if err != nil {
		return nil, err
	}
	if !cfg.MintInitialized() {
		return nil, rewards.ErrRewardMintNotInitialized
	}
	return bank.NewLedger(mgr).Token(cfg.RewardMint)
}

// Nonce returns the next nonce expected from addr.
func (n *Node) Nonce(addr [20]byte) (uint64, error) {
	return chainstate.NewManager(n.db).Nonce(addr[:])
}

// Receipt returns a committed receipt by transaction hash.
func (n *Node) Receipt(hash []byte) (*types.Receipt, error) {
	return n.processor.Receipt(hash)
}

// IsNotFound reports whether err denotes a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, rewards.ErrConfigNotFound) ||
		errors.Is(err, rewards.ErrUserRecordNotFound) ||
		errors.Is(err, rewards.ErrProfileNotFound) ||
		errors.Is(err, rewards.ErrRewardMintNotInitialized)
}
