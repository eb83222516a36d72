package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeeds bounds the number of seeds accepted by CreateProgramAddress,
	// bump included.
	MaxSeeds = 16
	// MaxSeedLength bounds the size of a single seed.
	MaxSeedLength = 32

	derivedAddressMarker = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedsExceeded   = errors.New("crypto: too many derivation seeds")
	ErrSeedTooLong        = errors.New("crypto: derivation seed too long")
	ErrAddressOnCurve     = errors.New("crypto: derived address is a valid public key")
	ErrNoViableBump       = errors.New("crypto: unable to find a viable bump")
	ErrInvalidDerivedAddr = errors.New("crypto: invalid derived address")
)

// DerivedAddress is a 32-byte storage location computed from a program id and
// a list of seeds. The digest is never the x-coordinate of a secp256k1 point,
// so there is no private key that controls it; only the program that owns the
// derivation can act for it.
type DerivedAddress [32]byte

// IsZero reports whether the address is the zero sentinel.
func (a DerivedAddress) IsZero() bool {
	return a == DerivedAddress{}
}

func (a DerivedAddress) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

func (a DerivedAddress) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a DerivedAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *DerivedAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseDerivedAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseDerivedAddress decodes a 0x-prefixed or bare hex string.
func ParseDerivedAddress(s string) (DerivedAddress, error) {
	var out DerivedAddress
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidDerivedAddr, err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidDerivedAddr, len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// CreateProgramAddress hashes the seeds together with the program id. The
// result is rejected when it lies on the secp256k1 curve.
func CreateProgramAddress(program []byte, seeds ...[]byte) (DerivedAddress, error) {
	var out DerivedAddress
	if len(seeds) > MaxSeeds {
		return out, ErrMaxSeedsExceeded
	}
	var buf bytes.Buffer
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return out, fmt.Errorf("%w: %d bytes", ErrSeedTooLong, len(seed))
		}
		buf.Write(seed)
	}
	buf.Write(program)
	buf.WriteString(derivedAddressMarker)
	digest := crypto.Keccak256(buf.Bytes())
	if isOnCurve(digest) {
		return out, ErrAddressOnCurve
	}
	copy(out[:], digest)
	return out, nil
}

// FindProgramAddress searches for the highest bump seed in [0, 255] for which
// CreateProgramAddress succeeds and returns the address together with that
// bump. The bump is appended as the final seed.
func FindProgramAddress(program []byte, seeds ...[]byte) (DerivedAddress, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return DerivedAddress{}, 0, ErrMaxSeedsExceeded
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(program, withBump...)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrAddressOnCurve) {
			return DerivedAddress{}, 0, err
		}
	}
	return DerivedAddress{}, 0, ErrNoViableBump
}

func isOnCurve(x []byte) bool {
	compressed := make([]byte, 0, 33)
	compressed = append(compressed, 0x02)
	compressed = append(compressed, x...)
	_, err := crypto.DecompressPubkey(compressed)
	return err == nil
}
