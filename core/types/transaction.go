package types

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// TxType defines the program operation a transaction invokes.
type TxType byte

const (
	TxTypeInitializeConfig     TxType = 0x01 // Create the singleton rewards config
	TxTypeInitializeRewardMint TxType = 0x02 // Create the reward token mint
	TxTypeSubscribeMinutes     TxType = 0x03 // First-touch minutes report, creates the user record
	TxTypeAddMinutes           TxType = 0x04 // Minutes report against an existing record
	TxTypeCreateProfile        TxType = 0x05
	TxTypeSetProfile           TxType = 0x06
)

var ErrMissingSignature = errors.New("transaction: missing signature")

// String returns the operation name carried by the transaction type.
func (t TxType) String() string {
	switch t {
	case TxTypeInitializeConfig:
		return "initialize_config"
	case TxTypeInitializeRewardMint:
		return "initialize_reward_mint"
	case TxTypeSubscribeMinutes:
		return "subscribe_minutes"
	case TxTypeAddMinutes:
		return "add_minutes"
	case TxTypeCreateProfile:
		return "create_profile"
	case TxTypeSetProfile:
		return "set_profile"
	default:
		return "unknown"
	}
}

// ParseTxType maps an operation name back to its type.
func ParseTxType(name string) (TxType, bool) {
	for _, t := range []TxType{
		TxTypeInitializeConfig,
		TxTypeInitializeRewardMint,
		TxTypeSubscribeMinutes,
		TxTypeAddMinutes,
		TxTypeCreateProfile,
		TxTypeSetProfile,
	} {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

// Transaction carries an operation name (Type) and its JSON encoded arguments.
// The sender is recovered from the secp256k1 signature.
type Transaction struct {
	ChainID uint64          `json:"chainId"`
	Type    TxType          `json:"type"`
	Nonce   uint64          `json:"nonce"`
	Data    json.RawMessage `json:"data,omitempty"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from []byte
}

// Hash covers every field except the signature.
func (tx *Transaction) Hash() ([]byte, error) {
	txData := struct {
		ChainID uint64
		Type    TxType
		Nonce   uint64
		Data    []byte
	}{tx.ChainID, tx.Type, tx.Nonce, []byte(tx.Data)}

	b, err := json.Marshal(txData)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the 20-byte sender address from the signature.
func (tx *Transaction) From() ([]byte, error) {
	if tx.from != nil {
		return tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return nil, ErrMissingSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	rBytes, sBytes := tx.R.Bytes(), tx.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 || tx.V.Uint64() < 27 {
		return nil, errors.New("transaction: malformed signature")
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	tx.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	return tx.from, nil
}
