package rewards

import (
	"time"

	"rewardchain/core/events"
	"rewardchain/crypto"
	nativecommon "rewardchain/native/common"
)

type rewardsState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVHas(key []byte) (bool, error)
}

// MintInvoker is the ledger capability handed to the program by the host.
// Signatures are derived from the rewards program id.
type MintInvoker interface {
	CreateMint(mint crypto.DerivedAddress, decimals uint8, authority crypto.DerivedAddress) error
	MintToSigned(mint crypto.DerivedAddress, to [20]byte, amount uint64, signerSeeds ...[]byte) (uint64, error)
}

// Program executes rewards operations against a single transaction's state.
type Program struct {
	st      rewardsState
	ledger  MintInvoker
	emitter events.Emitter
	pauses  nativecommon.PauseView
	quota   nativecommon.Quota
	nowFn   func() time.Time
}

// New creates a program bound to the provided state and ledger capability.
func New(st rewardsState, ledger MintInvoker) *Program {
	return &Program{st: st, ledger: ledger, emitter: events.NoopEmitter{}, nowFn: time.Now}
}

// SetEmitter configures the event emitter used to broadcast program updates.
// Passing nil resets the emitter to a no-op implementation.
func (p *Program) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

func (p *Program) SetPauses(view nativecommon.PauseView) {
	if p == nil {
		return
	}
	p.pauses = view
}

// SetQuota configures per-user submission limits. The zero value disables
// them.
func (p *Program) SetQuota(q nativecommon.Quota) {
	if p == nil {
		return
	}
	p.quota = q
}

// SetNowFunc overrides the clock used for quota epochs.
func (p *Program) SetNowFunc(now func() time.Time) {
	if p == nil {
		return
	}
	if now == nil {
		now = time.Now
	}
	p.nowFn = now
}

func (p *Program) guard() error {
	if p == nil || p.st == nil {
		return ErrNilState
	}
	return nativecommon.Guard(p.pauses, moduleName)
}
