package oracle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProofRoundTrip(t *testing.T) {
	p := NewProver("secret")
	plaintext := EncodePlaintext(12)
	proof := p.Sign("handle-1", plaintext)
	require.True(t, p.Verify("handle-1", plaintext, proof))
}

func TestProofBindsHandleAndPayload(t *testing.T) {
	p := NewProver("secret")
	plaintext := EncodePlaintext(12)
	proof := p.Sign("handle-1", plaintext)

	require.False(t, p.Verify("handle-2", plaintext, proof), "proof must not transfer to another handle")
	require.False(t, p.Verify("handle-1", EncodePlaintext(13), proof), "proof must not cover another payload")

	tampered := append([]byte(nil), proof...)
	tampered[0] ^= 0x01
	require.False(t, p.Verify("handle-1", plaintext, tampered))
}

func TestProofKeyedBySecret(t *testing.T) {
	plaintext := EncodePlaintext(7)
	proof := NewProver("a").Sign("h", plaintext)
	require.False(t, NewProver("b").Verify("h", plaintext, proof))
}

func TestPlaintextEncoding(t *testing.T) {
	for _, v := range []uint64{0, 1, 12, 1 << 40, ^uint64(0)} {
		require.Equal(t, v, DecodePlaintext(EncodePlaintext(v)))
	}
	require.Len(t, EncodePlaintext(0), 8)

	// total on irregular lengths
	require.Equal(t, uint64(0x0102), DecodePlaintext([]byte{1, 2}))
	require.Equal(t, uint64(0), DecodePlaintext(nil))
	long := append([]byte{0xFF, 0xFF}, EncodePlaintext(42)...)
	require.Equal(t, uint64(42), DecodePlaintext(long))
}
