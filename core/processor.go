package core

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rewardchain/core/events"
	chainstate "rewardchain/core/state"
	"rewardchain/core/types"
	"rewardchain/crypto"
	"rewardchain/native/bank"
	nativecommon "rewardchain/native/common"
	"rewardchain/native/rewards"
	"rewardchain/observability/metrics"
	rwdotel "rewardchain/observability/otel"
	"rewardchain/storage"
)

var (
	ErrNilTransaction = errors.New("core: nil transaction")
	ErrInvalidChainID = errors.New("core: chain id mismatch")
	ErrNonceMismatch  = errors.New("core: nonce mismatch")
	ErrUnknownTxType  = errors.New("core: unknown transaction type")
	ErrInvalidPayload = errors.New("core: invalid payload")
)

var receiptSequenceKey = []byte("core/receipt/sequence")

// Processor applies signed transactions to the database one at a time. Every
// transaction executes inside its own state overlay which is committed only
// when the program call and the nonce bump both succeed.
type Processor struct {
	mu      sync.Mutex
	db      storage.Database
	chainID uint64
	pauses  nativecommon.PauseView
	quota   nativecommon.Quota
	nowFn   func() time.Time
	logger  *slog.Logger
	hook    CommitHook
}

// CommitHook observes each committed receipt. It runs while the processor
// still holds its lock, so hooks see receipts in commit order.
type CommitHook func(ctx context.Context, receipt *types.Receipt)

// NewProcessor creates a processor for the given chain id.
func NewProcessor(db storage.Database, chainID uint64) *Processor {
	return &Processor{db: db, chainID: chainID, nowFn: time.Now, logger: slog.Default()}
}

func (p *Processor) SetPauses(view nativecommon.PauseView) { p.pauses = view }

func (p *Processor) SetQuota(q nativecommon.Quota) { p.quota = q }

func (p *Processor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	p.logger = logger
}

func (p *Processor) SetCommitHook(hook CommitHook) {
	p.mu.Lock()
	p.hook = hook
	p.mu.Unlock()
}

// SetNowFunc overrides the clock used for receipt timestamps and quota epochs.
func (p *Processor) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	p.nowFn = now
}

// ChainID returns the chain id transactions must be signed for.
func (p *Processor) ChainID() uint64 { return p.chainID }

// Apply validates and executes tx. Transactions rejected before execution
// (bad signature, wrong chain, stale nonce) return a nil receipt. Program
// failures return a failed receipt together with the error; in both cases no
// state is written.
func (p *Processor) Apply(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	ctx, span := rwdotel.Tracer().Start(ctx, "processor.apply",
		trace.WithAttributes(attribute.String("tx.type", tx.Type.String())))
	defer span.End()
	start := time.Now()

	receipt, err := p.apply(ctx, tx)
	status := types.ReceiptStatusSuccess
	if err != nil {
		status = types.ReceiptStatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.Rewards().RecordRejection(rejectionReason(err))
	}
	metrics.Rewards().ObserveTransaction(tx.Type.String(), status, time.Since(start))
	return receipt, err
}

func (p *Processor) apply(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tx.ChainID != p.chainID {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidChainID, tx.ChainID, p.chainID)
	}
	from, err := tx.From()
	if err != nil {
		return nil, fmt.Errorf("core: recover sender: %w", err)
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	var sender [20]byte
	copy(sender[:], from)

	p.mu.Lock()
	defer p.mu.Unlock()

	mgr := chainstate.NewManager(p.db)
	nonce, err := mgr.Nonce(sender[:])
	if err != nil {
		mgr.Discard()
		return nil, err
	}
	if tx.Nonce != nonce {
		mgr.Discard()
		return nil, fmt.Errorf("%w: got %d, want %d", ErrNonceMismatch, tx.Nonce, nonce)
	}

	receipt := &types.Receipt{
		TxHash:    "0x" + hex.EncodeToString(hash),
		Type:      tx.Type.String(),
		Sender:    crypto.MustNewAddress(crypto.RWDPrefix, sender[:]).String(),
		Nonce:     tx.Nonce,
		Timestamp: p.nowFn().Unix(),
	}
	logger := p.logger.With(slog.String("txHash", receipt.TxHash), slog.String("type", receipt.Type))

	collector := &events.Collector{}
	result, execErr := p.execute(mgr, collector, sender, tx)
	if execErr == nil {
		execErr = mgr.SetNonce(sender[:], nonce+1)
	}
	if execErr == nil {
		receipt.Sequence, execErr = nextSequence(mgr)
	}
	if execErr == nil {
		receipt.Status = types.ReceiptStatusSuccess
		receipt.Events = collector.Events()
		execErr = storeReceipt(mgr, hash, receipt)
	}
	if execErr == nil {
		execErr = mgr.Commit()
	}
	if execErr != nil {
		mgr.Discard()
		receipt.Status = types.ReceiptStatusFailed
		receipt.Sequence = 0
		receipt.Error = execErr.Error()
		receipt.Events = []types.Event{}
		logger.Info("transaction failed", slog.String("error", execErr.Error()))
		return receipt, execErr
	}

	if minted, ok := result.(*rewards.MintResult); ok && minted.Minted() {
		metrics.Rewards().RecordMint(minted.Amount, minted.Saturated)
		if minted.Saturated {
			logger.Warn("mint amount saturated", slog.Uint64("delta", minted.Delta))
		}
	}
	logger.Debug("transaction applied", slog.Uint64("sequence", receipt.Sequence))
	if p.hook != nil {
		p.hook(ctx, receipt)
	}
	return receipt, nil
}

func receiptKey(hash []byte) []byte {
	return append([]byte("core/receipt/"), hash...)
}

func storeReceipt(mgr *chainstate.Manager, hash []byte, receipt *types.Receipt) error {
	encoded, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("core: encode receipt: %w", err)
	}
	return mgr.KVPut(receiptKey(hash), encoded)
}

// Receipt loads the receipt of a committed transaction. A nil receipt without
// error means the hash is unknown.
func (p *Processor) Receipt(hash []byte) (*types.Receipt, error) {
	var encoded []byte
	ok, err := chainstate.NewManager(p.db).KVGet(receiptKey(hash), &encoded)
	if err != nil || !ok {
		return nil, err
	}
	receipt := new(types.Receipt)
	if err := json.Unmarshal(encoded, receipt); err != nil {
		return nil, fmt.Errorf("core: decode receipt: %w", err)
	}
	return receipt, nil
}

func nextSequence(mgr *chainstate.Manager) (uint64, error) {
	var seq uint64
	if _, err := mgr.KVGet(receiptSequenceKey, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := mgr.KVPut(receiptSequenceKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (p *Processor) execute(mgr *chainstate.Manager, emitter events.Emitter, sender [20]byte, tx *types.Transaction) (interface{}, error) {
	ledger := bank.NewLedger(mgr)
	ledger.SetEmitter(emitter)
	ledger.SetPauses(p.pauses)
	program := rewards.New(mgr, ledger.Invoker(rewards.ProgramID))
	program.SetEmitter(emitter)
	program.SetPauses(p.pauses)
	program.SetQuota(p.quota)
	program.SetNowFunc(p.nowFn)

	switch tx.Type {
	case types.TxTypeInitializeConfig:
		return program.InitializeConfig(sender)
	case types.TxTypeInitializeRewardMint:
		var payload types.RewardMintPayload
		if err := types.DecodePayload(tx.Data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return program.InitializeRewardMint(sender, payload.Decimals)
	case types.TxTypeSubscribeMinutes, types.TxTypeAddMinutes:
		var payload types.MinutesPayload
		if err := types.DecodePayload(tx.Data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if tx.Type == types.TxTypeSubscribeMinutes {
			return program.SubscribeMinutes(sender, payload.Minutes, payload.Timestamp)
		}
		return program.AddMinutes(sender, payload.Minutes, payload.Timestamp)
	case types.TxTypeCreateProfile, types.TxTypeSetProfile:
		var payload types.ProfilePayload
		if err := types.DecodePayload(tx.Data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		fields := rewards.ProfileFields{
			Nickname:  payload.Nickname,
			Telegram:  payload.Telegram,
			XHandle:   payload.XHandle,
			AvatarCID: payload.AvatarCID,
		}
		if tx.Type == types.TxTypeCreateProfile {
			return program.CreateProfile(sender, fields)
		}
		owner := sender
		if payload.Owner != "" {
			parsed, err := crypto.ParseAccount(payload.Owner)
			if err != nil {
				return nil, fmt.Errorf("%w: owner: %v", ErrInvalidPayload, err)
			}
			owner = parsed
		}
		return program.SetProfile(sender, owner, fields)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownTxType, byte(tx.Type))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, rewards.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, rewards.ErrUnauthorized), errors.Is(err, bank.ErrMintUnauthorized):
		return "unauthorized"
	case errors.Is(err, rewards.ErrFieldTooLong):
		return "field_too_long"
	case errors.Is(err, rewards.ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	case errors.Is(err, ErrNonceMismatch):
		return "nonce"
	case errors.Is(err, ErrInvalidChainID):
		return "chain_id"
	default:
		return "other"
	}
}
