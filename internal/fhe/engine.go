package fhe

import (
	"fmt"
	"sync"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// Engine evaluates on ciphertext blobs using public material only. All
// methods are safe for concurrent use; lattigo evaluators are not, so one
// mutex serializes them.
type Engine struct {
	mu sync.Mutex

	params ckks.Parameters
	slots  int

	encoder   *ckks.Encoder
	encryptor *rlwe.Encryptor
	evaluator *ckks.Evaluator

	// division domain: denominators are assumed to lie in (0, bound]
	bound float64
	iters int
}

// NewEngine builds an evaluator over public key material. bound is the
// largest denominator Div must handle; iters is the Goldschmidt iteration
// count (accuracy improves quadratically, each iteration costs two levels).
func NewEngine(m *Material, bound float64, iters int) *Engine {
	if bound <= 0 {
		bound = 1 << 16
	}
	if iters <= 0 {
		iters = 5
	}
	return &Engine{
		params:    m.Params,
		slots:     m.Params.MaxSlots(),
		encoder:   ckks.NewEncoder(m.Params, encoderPrec),
		encryptor: ckks.NewEncryptor(m.Params, m.PK),
		evaluator: ckks.NewEvaluator(m.Params, rlwe.NewMemEvaluationKeySet(m.RLK)),
		bound:     bound,
		iters:     iters,
	}
}

// EncryptUint lifts a plaintext integer into a fresh top-level ciphertext.
func (e *Engine) EncryptUint(v uint64) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ct, err := e.encryptScalar(float64(v))
	if err != nil {
		return nil, err
	}
	return ct.MarshalBinary()
}

// Validate reports whether b parses as a ciphertext for this context.
func (e *Engine) Validate(b []byte) error {
	_, err := e.unmarshal(b)
	return err
}

// Add returns a + b.
func (e *Engine) Add(a, b []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cta, ctb, err := e.unmarshal2(a, b)
	if err != nil {
		return nil, err
	}
	out, err := e.add(cta, ctb)
	if err != nil {
		return nil, err
	}
	return out.MarshalBinary()
}

// MulIndex returns a * k for a small plaintext integer k. Integer-scalar
// multiplication leaves scale and level untouched.
func (e *Engine) MulIndex(a []byte, k int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ct, err := e.unmarshal(a)
	if err != nil {
		return nil, err
	}
	out, err := e.evaluator.MulNew(ct, k)
	if err != nil {
		return nil, fmt.Errorf("mul index: %w", err)
	}
	return out.MarshalBinary()
}

// Mul returns a * b, relinearized and rescaled.
func (e *Engine) Mul(a, b []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cta, ctb, err := e.unmarshal2(a, b)
	if err != nil {
		return nil, err
	}
	out, err := e.mulRelin(cta, ctb)
	if err != nil {
		return nil, err
	}
	return out.MarshalBinary()
}

// Div returns num / den. CKKS has no native ciphertext division; this is
// the Goldschmidt product expansion of 1/d. With d' = den/bound and
// y = 1-d', 1/d' = prod_i (1 + y^(2^i)), so the result converges for any
// denominator in (0, bound] and is accurate once den >= bound/8 or so.
func (e *Engine) Div(num, den []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctn, ctd, err := e.unmarshal2(num, den)
	if err != nil {
		return nil, err
	}

	inv, err := e.inverse(ctd)
	if err != nil {
		return nil, fmt.Errorf("inverse: %w", err)
	}
	out, err := e.mulRelin(ctn, inv)
	if err != nil {
		return nil, err
	}
	return out.MarshalBinary()
}

// --- internal ciphertext arithmetic (mutex held) ---

func (e *Engine) encryptScalar(v float64) (*rlwe.Ciphertext, error) {
	values := make([]float64, e.slots)
	for i := range values {
		values[i] = v
	}
	pt := ckks.NewPlaintext(e.params, e.params.MaxLevel())
	if err := e.encoder.Encode(values, pt); err != nil {
		return nil, err
	}
	ct := ckks.NewCiphertext(e.params, 1, e.params.MaxLevel())
	if err := e.encryptor.Encrypt(pt, ct); err != nil {
		return nil, err
	}
	return ct, nil
}

func (e *Engine) add(a, b *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	// rescaled operands carry scales that differ by a rounding hair;
	// align metadata before adding, SEAL style
	b.Scale = a.Scale
	return e.evaluator.AddNew(a, b)
}

func (e *Engine) mulRelin(a, b *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	out, err := e.evaluator.MulRelinNew(a, b)
	if err != nil {
		return nil, err
	}
	if err := e.evaluator.Rescale(out, out); err != nil {
		return nil, err
	}
	return out, nil
}

// mulConst multiplies by an arbitrary real constant (consumes one level).
func (e *Engine) mulConst(a *rlwe.Ciphertext, c float64) (*rlwe.Ciphertext, error) {
	out, err := e.evaluator.MulNew(a, c)
	if err != nil {
		return nil, err
	}
	if err := e.evaluator.Rescale(out, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) addConst(a *rlwe.Ciphertext, c float64) (*rlwe.Ciphertext, error) {
	return e.evaluator.AddNew(a, c)
}

// inverse approximates 1/d for d in (0, bound].
func (e *Engine) inverse(d *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	// d' = d / bound, in (0, 1]
	dn, err := e.mulConst(d, 1/e.bound)
	if err != nil {
		return nil, err
	}
	// y = 1 - d'
	neg, err := e.evaluator.MulNew(dn, -1)
	if err != nil {
		return nil, err
	}
	y, err := e.addConst(neg, 1)
	if err != nil {
		return nil, err
	}
	// acc = 1 + y; cur = y
	acc, err := e.addConst(y, 1)
	if err != nil {
		return nil, err
	}
	cur := y
	for i := 1; i < e.iters; i++ {
		if cur, err = e.mulRelin(cur, cur); err != nil {
			return nil, err
		}
		term, err := e.addConst(cur, 1)
		if err != nil {
			return nil, err
		}
		if acc, err = e.mulRelin(acc, term); err != nil {
			return nil, err
		}
	}
	// 1/d = (1/d') / bound
	return e.mulConst(acc, 1/e.bound)
}

func (e *Engine) unmarshal(b []byte) (*rlwe.Ciphertext, error) {
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("ciphertext decode: %w", err)
	}
	return ct, nil
}

func (e *Engine) unmarshal2(a, b []byte) (*rlwe.Ciphertext, *rlwe.Ciphertext, error) {
	cta, err := e.unmarshal(a)
	if err != nil {
		return nil, nil, err
	}
	ctb, err := e.unmarshal(b)
	if err != nil {
		return nil, nil, err
	}
	return cta, ctb, nil
}
