package solana

import (
	"bytes"
	"crypto/ed25519"
	"strings"
	"testing"

	sol "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	pk, err := ParseAddress(wsolMint)
	require.NoError(t, err)
	assert.Equal(t, wsolMint, pk.String())

	for _, bad := range []string{"", "not-base58-0OIl", "abc"} {
		_, err := ParseAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, "input %q", bad)
	}
}

func TestIsOnCurve(t *testing.T) {
	// The system program key (all zeros) decodes to a valid point.
	zero, err := ParseAddress("11111111111111111111111111111111")
	require.NoError(t, err)
	assert.True(t, IsOnCurve(zero))

	pub := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{9}, ed25519.SeedSize)).Public().(ed25519.PublicKey)
	assert.True(t, IsOnCurve(sol.PublicKeyFromBytes(pub)))

	// Program derived addresses are searched until they fall off the curve.
	pda, _, err := sol.FindProgramAddress([][]byte{[]byte("metadata")}, sol.TokenProgramID)
	require.NoError(t, err)
	assert.False(t, IsOnCurve(pda))
}

func TestNewSignature(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 64)

	a, err := NewSignature(bytes.NewReader(seed))
	require.NoError(t, err)
	b, err := NewSignature(bytes.NewReader(seed))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, ValidSignature(a))
	assert.True(t, strings.HasPrefix(ExplorerTxURL(a), "https://solscan.io/tx/"))

	_, err = NewSignature(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
	assert.False(t, ValidSignature("short"))
}
