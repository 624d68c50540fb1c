// Package oracle implements the asynchronous decryption side: an embedded
// worker that holds the secret key, and the proof primitive that
// authenticates every callback before the coordinator trusts its payload.
package oracle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// Prover signs and verifies callback payloads. Proof = HMAC-SHA256 over
// handle || plaintext, keyed with the oracle secret shared between the
// oracle deployment and the coordinator.
type Prover struct {
	secret []byte
}

func NewProver(secret string) *Prover {
	return &Prover{secret: []byte(secret)}
}

func (p *Prover) Sign(handle string, plaintext []byte) []byte {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(handle))
	mac.Write(plaintext)
	return mac.Sum(nil)
}

// Verify must pass before any decoded value is used.
func (p *Prover) Verify(handle string, plaintext, proof []byte) bool {
	return hmac.Equal(p.Sign(handle, plaintext), proof)
}

// EncodePlaintext is the callback wire form of a revealed config: 8 bytes,
// big endian.
func EncodePlaintext(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// DecodePlaintext is total: shorter inputs are treated as left-padded,
// longer inputs keep their low 8 bytes.
func DecodePlaintext(b []byte) uint64 {
	if len(b) > 8 {
		b = b[len(b)-8:]
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
