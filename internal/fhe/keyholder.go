package fhe

import (
	"fmt"
	"math"
	"sync"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// KeyHolder is the secret-key side of the capability. It belongs to the
// decryption oracle, never to the compute path.
type KeyHolder struct {
	mu sync.Mutex

	params    ckks.Parameters
	slots     int
	encoder   *ckks.Encoder
	decryptor *rlwe.Decryptor
	encryptor *rlwe.Encryptor
}

func NewKeyHolder(m *Material) (*KeyHolder, error) {
	if m.SK == nil {
		return nil, fmt.Errorf("key material has no secret key")
	}
	return &KeyHolder{
		params:    m.Params,
		slots:     m.Params.MaxSlots(),
		encoder:   ckks.NewEncoder(m.Params, encoderPrec),
		decryptor: ckks.NewDecryptor(m.Params, m.SK),
		encryptor: ckks.NewEncryptor(m.Params, m.PK),
	}, nil
}

// DecryptUint decrypts a ciphertext blob and rounds slot 0 to the nearest
// unsigned integer. CKKS is approximate, so 12 comes back as 11.999...;
// rounding recovers the exact value for integer payloads.
func (k *KeyHolder) DecryptUint(b []byte) (uint64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, err := k.decryptScalar(b)
	if err != nil {
		return 0, err
	}
	r := math.Round(v)
	if r < 0 {
		return 0, nil
	}
	return uint64(r), nil
}

// Refresh re-encrypts a ciphertext at the top level. This is the
// pseudo-bootstrap that keeps the ever-growing weight accumulator from
// exhausting its levels after repeated normalization rounds.
func (k *KeyHolder) Refresh(b []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, err := k.decryptScalar(b)
	if err != nil {
		return nil, err
	}
	values := make([]float64, k.slots)
	for i := range values {
		values[i] = v
	}
	pt := ckks.NewPlaintext(k.params, k.params.MaxLevel())
	if err := k.encoder.Encode(values, pt); err != nil {
		return nil, err
	}
	ct := ckks.NewCiphertext(k.params, 1, k.params.MaxLevel())
	if err := k.encryptor.Encrypt(pt, ct); err != nil {
		return nil, err
	}
	return ct.MarshalBinary()
}

func (k *KeyHolder) decryptScalar(b []byte) (float64, error) {
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(b); err != nil {
		return 0, fmt.Errorf("ciphertext decode: %w", err)
	}
	pt := ckks.NewPlaintext(k.params, ct.Level())
	k.decryptor.Decrypt(ct, pt)
	values := make([]float64, k.slots)
	if err := k.encoder.Decode(pt, values); err != nil {
		return 0, err
	}
	return values[0], nil
}
