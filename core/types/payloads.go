package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RewardMintPayload is the argument of initialize_reward_mint.
type RewardMintPayload struct {
	Decimals uint8 `json:"decimals"`
}

// MinutesPayload is the argument of subscribe_minutes and add_minutes.
// Minutes is the new cumulative total; Timestamp is stored verbatim.
type MinutesPayload struct {
	Minutes   uint64 `json:"minutes"`
	Timestamp uint64 `json:"timestamp"`
}

// ProfilePayload is the argument of create_profile and set_profile. Owner is
// only read by set_profile and defaults to the sender when empty.
type ProfilePayload struct {
	Owner     string `json:"owner,omitempty"`
	Nickname  string `json:"nickname"`
	Telegram  string `json:"tg"`
	XHandle   string `json:"xHandle"`
	AvatarCID string `json:"avatarCid"`
}

// EncodePayload marshals a payload for Transaction.Data.
func EncodePayload(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// DecodePayload unmarshals Transaction.Data into out. Unknown fields are
// rejected so typos in argument names surface as errors.
func DecodePayload(data json.RawMessage, out interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("decode payload: empty data")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
