package crypto

import (
	"encoding/hex"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := NewCodec("insecure-test-secret")
	const plaintext = "v1.MRrXiCEnJe0ZZAoaE6ayK0i4w4ZYspRSgDnQee2ccmo"
	token, err := codec.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, token)
	decrypted, err := codec.Decrypt(token)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestEncryptTokenStructure(t *testing.T) {
	codec := NewCodec("insecure-test-secret")
	token, err := codec.Encrypt("foo")
	require.NoError(t, err)
	parts := strings.Split(token, ":")
	require.Len(t, parts, 3)
	iv, err := hex.DecodeString(parts[0])
	require.NoError(t, err)
	require.Len(t, iv, 12) // GCM standard nonce size
	tag, err := hex.DecodeString(parts[1])
	require.NoError(t, err)
	require.Len(t, tag, 16) // GCM tag size
	_, err = hex.DecodeString(parts[2])
	require.NoError(t, err)
}

func TestEncryptProducesDistinctTokens(t *testing.T) {
	codec := NewCodec("insecure-test-secret")
	token1, err := codec.Encrypt("foo")
	require.NoError(t, err)
	token2, err := codec.Encrypt("foo")
	require.NoError(t, err)
	// A fresh iv per call means identical plaintexts never produce
	// identical tokens.
	require.NotEqual(t, token1, token2)
}

func TestDecryptMalformedToken(t *testing.T) {
	codec := NewCodec("insecure-test-secret")
	testCases := []struct {
		name  string
		token string
	}{
		{
			name:  "empty",
			token: "",
		},
		{
			name:  "too few parts",
			token: "deadbeef:deadbeef",
		},
		{
			name:  "too many parts",
			token: "deadbeef:deadbeef:deadbeef:deadbeef",
		},
		{
			name:  "iv not hex",
			token: "zzzz:deadbeef:deadbeef",
		},
		{
			name:  "tag not hex",
			token: "deadbeef:zzzz:deadbeef",
		},
		{
			name:  "ciphertext not hex",
			token: "deadbeef:deadbeef:zzzz",
		},
		{
			name:  "iv wrong length",
			token: "deadbeef:deadbeef:deadbeef",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := codec.Decrypt(testCase.token)
			require.Error(t, err)
			require.IsType(t, &ErrCiphertextMalformed{}, err)
		})
	}
}

func TestDecryptTamperedToken(t *testing.T) {
	codec := NewCodec("insecure-test-secret")
	token, err := codec.Encrypt("the plaintext that must not leak corrupted")
	require.NoError(t, err)
	parts := strings.Split(token, ":")
	require.Len(t, parts, 3)
	// Flip a single bit of the ciphertext
	ciphertext, err := hex.DecodeString(parts[2])
	require.NoError(t, err)
	ciphertext[0] ^= 0x01
	parts[2] = hex.EncodeToString(ciphertext)
	_, err = codec.Decrypt(strings.Join(parts, ":"))
	require.Error(t, err)
	require.IsType(t, &ErrCiphertextAuthentication{}, err)
}

func TestDecryptWithWrongKey(t *testing.T) {
	token, err := NewCodec("insecure-test-secret").Encrypt("foo")
	require.NoError(t, err)
	_, err = NewCodec("a-different-secret").Decrypt(token)
	require.Error(t, err)
	require.IsType(t, &ErrCiphertextAuthentication{}, err)
}

func TestNewCodecIsDeterministic(t *testing.T) {
	// Two codecs built from the same secret must be able to unseal one
	// another's tokens.
	token, err := NewCodec("insecure-test-secret").Encrypt("foo")
	require.NoError(t, err)
	decrypted, err := NewCodec("insecure-test-secret").Decrypt(token)
	require.NoError(t, err)
	require.Equal(t, "foo", decrypted)
}

func TestNewToken(t *testing.T) {
	token := NewToken(32)
	b, err := hex.DecodeString(token)
	require.NoError(t, err)
	require.Len(t, b, 32)
	require.NotEqual(t, token, NewToken(32))
}

func TestNewUUID(t *testing.T) {
	uuidRegex := regexp.MustCompile(
		`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`,
	)
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		id := NewUUID()
		require.Regexp(t, uuidRegex, id)
		seen[id] = struct{}{}
	}
	require.Len(t, seen, 100)
}
