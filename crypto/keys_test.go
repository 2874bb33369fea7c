package crypto

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestAddressRoundTripBech32(t *testing.T) {
	addr := FromArray(testAddr(0x2a))
	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, "land1"))

	parsed, err := ParseAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, testAddr(0x2a), parsed)
}

func TestParseAddressAcceptsHex(t *testing.T) {
	parsed, err := ParseAddress("0x000000000000000000000000000000000000002A")
	require.NoError(t, err)
	require.Equal(t, testAddr(0x2a), parsed)
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "  ", "0x1234", "land1notvalid"} {
		_, err := ParseAddress(input)
		require.Error(t, err, "input %q", input)
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "operator.json")

	require.NoError(t, SaveToKeystore(path, key, "secret"))
	addr, err := KeystoreAddress(path, "secret")
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address().String(), addr.String())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}
