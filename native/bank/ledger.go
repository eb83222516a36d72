package bank

import (
	"errors"
	"fmt"

	"rewardchain/core/events"
	chainstate "rewardchain/core/state"
	"rewardchain/crypto"
	nativecommon "rewardchain/native/common"
)

const moduleName = "bank"

type ledgerState interface {
	RegisterToken(mint crypto.DerivedAddress, decimals uint8, authority crypto.DerivedAddress) error
	Token(mint crypto.DerivedAddress) (*chainstate.TokenMetadata, error)
	Balance(mint crypto.DerivedAddress, owner []byte) (uint64, error)
	Credit(mint crypto.DerivedAddress, owner []byte, amount uint64) (uint64, uint64, error)
}

// Ledger implements the token primitives available to native programs:
// creating a mint and minting under the authority of a derived signer.
type Ledger struct {
	st      ledgerState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewLedger creates a ledger backed by the provided state manager.
func NewLedger(st ledgerState) *Ledger {
	return &Ledger{st: st, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) SetPauses(p nativecommon.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

// CreateMint registers a new fungible asset at mint, controlled by authority.
func (l *Ledger) CreateMint(mint crypto.DerivedAddress, decimals uint8, authority crypto.DerivedAddress) error {
	if l == nil || l.st == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if err := l.st.RegisterToken(mint, decimals, authority); err != nil {
		if errors.Is(err, chainstate.ErrTokenExists) {
			return fmt.Errorf("%w: %s", ErrMintExists, mint)
		}
		return err
	}
	l.emitter.Emit(events.TokenMintCreated{Mint: mint, Authority: authority, Decimals: decimals})
	return nil
}

// Token returns the metadata of a mint or ErrMintNotFound.
func (l *Ledger) Token(mint crypto.DerivedAddress) (*chainstate.TokenMetadata, error) {
	if l == nil || l.st == nil {
		return nil, ErrNilState
	}
	meta, err := l.st.Token(mint)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}
	return meta, nil
}

// Balance returns the owner's balance of mint.
func (l *Ledger) Balance(mint crypto.DerivedAddress, owner [20]byte) (uint64, error) {
	if l == nil || l.st == nil {
		return 0, ErrNilState
	}
	return l.st.Balance(mint, owner[:])
}

// Invoker returns the capability a host hands to the program identified by
// program. Signatures produced through it are derived from that program id
// only, so a program can never sign for another program's addresses.
func (l *Ledger) Invoker(program []byte) *Invoker {
	return &Invoker{ledger: l, program: append([]byte(nil), program...)}
}

// Invoker performs ledger calls on behalf of a single program.
type Invoker struct {
	ledger  *Ledger
	program []byte
}

// Program returns the id of the program this invoker signs for.
func (inv *Invoker) Program() []byte {
	return append([]byte(nil), inv.program...)
}

// CreateMint forwards to the ledger.
func (inv *Invoker) CreateMint(mint crypto.DerivedAddress, decimals uint8, authority crypto.DerivedAddress) error {
	return inv.ledger.CreateMint(mint, decimals, authority)
}

// MintToSigned mints amount units of mint to the recipient. The signer is the
// address derived from the invoking program and signerSeeds (bump included)
// and must match the mint authority. It returns the recipient's new balance.
func (inv *Invoker) MintToSigned(mint crypto.DerivedAddress, to [20]byte, amount uint64, signerSeeds ...[]byte) (uint64, error) {
	if inv == nil || inv.ledger == nil || inv.ledger.st == nil {
		return 0, ErrNilState
	}
	if err := nativecommon.Guard(inv.ledger.pauses, moduleName); err != nil {
		return 0, err
	}
	if to == ([20]byte{}) {
		return 0, ErrInvalidRecipient
	}
	signer, err := crypto.CreateProgramAddress(inv.program, signerSeeds...)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMintUnauthorized, err)
	}
	meta, err := inv.ledger.Token(mint)
	if err != nil {
		return 0, err
	}
	if meta.MintAuthority != signer {
		return 0, fmt.Errorf("%w: signer %s, authority %s", ErrMintUnauthorized, signer, meta.MintAuthority)
	}
	if amount == 0 {
		return inv.ledger.st.Balance(mint, to[:])
	}
	balance, supply, err := inv.ledger.st.Credit(mint, to[:], amount)
	if err != nil {
		if errors.Is(err, chainstate.ErrBalanceOverflow) || errors.Is(err, chainstate.ErrSupplyOverflow) {
			return 0, fmt.Errorf("%w: %v", ErrBalanceOverflow, err)
		}
		return 0, err
	}
	inv.ledger.emitter.Emit(events.TokenMinted{Mint: mint, Recipient: to, Amount: amount, Balance: balance})
	inv.ledger.emitter.Emit(events.TokenSupply{Mint: mint, Total: supply, Delta: amount, Reason: events.SupplyReasonMint})
	return balance, nil
}
