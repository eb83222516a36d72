package events

import (
	"strconv"

	"rewardchain/core/types"
	"rewardchain/crypto"
)

const (
	// TypeTokenMinted is emitted whenever the token ledger credits newly minted units.
	TypeTokenMinted = "token.minted"
	// TypeTokenMintCreated is emitted when a new mint is registered with the ledger.
	TypeTokenMintCreated = "token.mint.created"
	// TypeTokenSupply is emitted whenever a token supply changes.
	TypeTokenSupply = "token.supply"

	// SupplyReasonMint identifies mint driven supply increases.
	SupplyReasonMint = "mint"
)

type TokenMinted struct {
	Mint      crypto.DerivedAddress
	Recipient [20]byte
	Amount    uint64
	Balance   uint64
}

func (TokenMinted) EventType() string { return TypeTokenMinted }

func (e TokenMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenMinted,
		Attributes: map[string]string{
			"mint":      e.Mint.String(),
			"recipient": crypto.MustNewAddress(crypto.RWDPrefix, e.Recipient[:]).String(),
			"amount":    strconv.FormatUint(e.Amount, 10),
			"balance":   strconv.FormatUint(e.Balance, 10),
		},
	}
}

type TokenMintCreated struct {
	Mint      crypto.DerivedAddress
	Authority crypto.DerivedAddress
	Decimals  uint8
}

func (TokenMintCreated) EventType() string { return TypeTokenMintCreated }

func (e TokenMintCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenMintCreated,
		Attributes: map[string]string{
			"mint":      e.Mint.String(),
			"authority": e.Authority.String(),
			"decimals":  strconv.FormatUint(uint64(e.Decimals), 10),
		},
	}
}

// TokenSupply captures a supply delta for a mint.
type TokenSupply struct {
	Mint   crypto.DerivedAddress
	Total  uint64
	Delta  uint64
	Reason string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{
		"mint":  e.Mint.String(),
		"total": strconv.FormatUint(e.Total, 10),
		"delta": strconv.FormatUint(e.Delta, 10),
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
