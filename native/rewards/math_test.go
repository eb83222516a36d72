package rewards

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScaleMinutes(t *testing.T) {
	cases := []struct {
		name      string
		delta     uint64
		decimals  uint8
		amount    uint64
		saturated bool
	}{
		{"zero delta", 0, 9, 0, false},
		{"no decimals", 150, 0, 150, false},
		{"six decimals", 150, 6, 150_000_000, false},
		{"largest exact", 18, 18, 18_000_000_000_000_000_000, false},
		{"product overflow", 19, 18, math.MaxUint64, true},
		{"scale overflow", 1, 20, math.MaxUint64, true},
		{"max decimals", 1, 255, math.MaxUint64, true},
		{"max delta", math.MaxUint64, 0, math.MaxUint64, false},
		{"max delta scaled", math.MaxUint64, 1, math.MaxUint64, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount, saturated := ScaleMinutes(tc.delta, tc.decimals)
			require.Equal(t, tc.amount, amount)
			require.Equal(t, tc.saturated, saturated)
		})
	}
}

func TestDerivedAddressesAreDistinct(t *testing.T) {
	addrs, err := DeriveAddresses()
	require.NoError(t, err)
	require.NotEqual(t, addrs.Config, addrs.RewardMint)
	require.NotEqual(t, addrs.RewardMint, addrs.MintAuthority)

	record, _, err := UserRecordAddress(addr(1))
	require.NoError(t, err)
	profile, _, err := ProfileAddress(addr(1))
	require.NoError(t, err)
	other, _, err := UserRecordAddress(addr(2))
	require.NoError(t, err)
	require.NotEqual(t, record, profile)
	require.NotEqual(t, record, other)
}
