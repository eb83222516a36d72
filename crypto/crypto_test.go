package crypto

import (
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressBech32RoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.PubKey().Address()
	require.Equal(t, RWDPrefix, addr.Prefix())

	decoded, err := DecodeAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr.Bytes(), decoded.Bytes())
	require.Equal(t, addr.Array(), decoded.Array())
}

func TestNewAddressRejectsWrongLength(t *testing.T) {
	_, err := NewAddress(RWDPrefix, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestFindProgramAddressIsDeterministic(t *testing.T) {
	program := []byte("rewards-program")
	user := make([]byte, 20)
	user[19] = 0x01

	first, bump, err := FindProgramAddress(program, []byte("user_data"), user)
	require.NoError(t, err)
	second, bump2, err := FindProgramAddress(program, []byte("user_data"), user)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, bump, bump2)
	require.False(t, first.IsZero())

	recreated, err := CreateProgramAddress(program, []byte("user_data"), user, []byte{bump})
	require.NoError(t, err)
	require.Equal(t, first, recreated)
}

func TestFindProgramAddressSeparatesSeedsAndPrograms(t *testing.T) {
	userA := make([]byte, 20)
	userA[0] = 0xAA
	userB := make([]byte, 20)
	userB[0] = 0xBB

	a, _, err := FindProgramAddress([]byte("p1"), []byte("user_data"), userA)
	require.NoError(t, err)
	b, _, err := FindProgramAddress([]byte("p1"), []byte("user_data"), userB)
	require.NoError(t, err)
	c, _, err := FindProgramAddress([]byte("p2"), []byte("user_data"), userA)
	require.NoError(t, err)
	d, _, err := FindProgramAddress([]byte("p1"), []byte("user_profile"), userA)
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
	require.NotEqual(t, a, d)
}

func TestCreateProgramAddressLimits(t *testing.T) {
	_, err := CreateProgramAddress([]byte("p"), make([]byte, MaxSeedLength+1))
	require.ErrorIs(t, err, ErrSeedTooLong)

	seeds := make([][]byte, MaxSeeds+1)
	for i := range seeds {
		seeds[i] = []byte{byte(i)}
	}
	_, err = CreateProgramAddress([]byte("p"), seeds...)
	require.ErrorIs(t, err, ErrMaxSeedsExceeded)
}

func TestParseDerivedAddress(t *testing.T) {
	addr, _, err := FindProgramAddress([]byte("p"), []byte("config2"))
	require.NoError(t, err)

	parsed, err := ParseDerivedAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)

	_, err = ParseDerivedAddress("0x1234")
	require.ErrorIs(t, err, ErrInvalidDerivedAddr)
}

func TestDerivedAddressJSON(t *testing.T) {
	addr, _, err := FindProgramAddress([]byte("p"), []byte("reward_mint"))
	require.NoError(t, err)

	encoded, err := json.Marshal(struct {
		Mint DerivedAddress `json:"mint"`
	}{addr})
	require.NoError(t, err)
	require.Equal(t, `{"mint":"`+addr.String()+`"}`, string(encoded))

	var decoded struct {
		Mint DerivedAddress `json:"mint"`
	}
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Equal(t, addr, decoded.Mint)
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "authority.keystore")

	require.NoError(t, SaveToKeystore(path, key, "secret"))
	loaded, err := LoadFromKeystore(path, "secret")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}

func TestParseAccount(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.PubKey().Address()

	fromBech, err := ParseAccount(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr.Array(), fromBech)

	fromHex, err := ParseAccount("0x" + hex.EncodeToString(addr.Bytes()))
	require.NoError(t, err)
	require.Equal(t, fromBech, fromHex)

	_, err = ParseAccount("0x1234")
	require.Error(t, err)

	other := MustNewAddress(AddressPrefix("xyz"), addr.Bytes())
	_, err = ParseAccount(other.String())
	require.Error(t, err)
}
