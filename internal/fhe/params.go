// Package fhe wraps lattigo v6 CKKS behind the small arithmetic surface the
// layout engine needs. Ciphertexts cross package boundaries as opaque byte
// blobs (rlwe.Ciphertext binary encoding).
//
// Key material is split: Engine carries only public material (pk, rlk) and
// can evaluate; KeyHolder carries the secret key and lives on the oracle
// side only.
package fhe

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// key material files inside the key directory
const (
	fParams = "params.lattigo"
	fPub    = "pub.lattigo"
	fRelin  = "relin.lattigo"
	fSec    = "sec.lattigo"
)

const encoderPrec = uint(53)

// Options selects the CKKS parameter set. Levels must leave enough depth for
// one Div (2*GoldschmidtIters+1 multiplications); DefaultOptions does.
type Options struct {
	LogN     int
	Levels   int
	LogScale int
}

func DefaultOptions() Options {
	return Options{LogN: 14, Levels: 13, LogScale: 45}
}

func (o Options) literal() ckks.ParametersLiteral {
	logQ := make([]int, 0, o.Levels+1)
	logQ = append(logQ, 55)
	for i := 0; i < o.Levels; i++ {
		logQ = append(logQ, o.LogScale)
	}
	return ckks.ParametersLiteral{
		LogN:            o.LogN,
		LogQ:            logQ,
		LogP:            []int{61, 61},
		LogDefaultScale: o.LogScale,
	}
}

type paramDesc struct {
	ParamsLit ckks.ParametersLiteral
}

// Material bundles one generated CKKS context. SK is nil when loaded from a
// directory that holds only public material.
type Material struct {
	Params ckks.Parameters
	PK     *rlwe.PublicKey
	RLK    *rlwe.RelinearizationKey
	SK     *rlwe.SecretKey
}

// Generate creates a fresh CKKS context.
func Generate(o Options) (*Material, error) {
	params, err := ckks.NewParametersFromLiteral(o.literal())
	if err != nil {
		return nil, fmt.Errorf("ckks params: %w", err)
	}
	kgen := ckks.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)
	return &Material{Params: params, PK: pk, RLK: rlk, SK: sk}, nil
}

// Save writes the context to dir. withSecret controls whether sec.lattigo is
// written; the compute deployment gets a directory without it.
func (m *Material) Save(dir string, withSecret bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(paramDesc{ParamsLit: m.Params.ParametersLiteral()}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, fParams), buf.Bytes()); err != nil {
		return err
	}
	if err := writeMarshaled(filepath.Join(dir, fPub), m.PK); err != nil {
		return err
	}
	if err := writeMarshaled(filepath.Join(dir, fRelin), m.RLK); err != nil {
		return err
	}
	if withSecret {
		if m.SK == nil {
			return fmt.Errorf("no secret key to save")
		}
		if err := writeMarshaled(filepath.Join(dir, fSec), m.SK); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a context from dir. The secret key is loaded when present.
func Load(dir string) (*Material, error) {
	b, err := os.ReadFile(filepath.Join(dir, fParams))
	if err != nil {
		return nil, fmt.Errorf("read params: %w", err)
	}
	var desc paramDesc
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&desc); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	params, err := ckks.NewParametersFromLiteral(desc.ParamsLit)
	if err != nil {
		return nil, err
	}
	m := &Material{Params: params, PK: &rlwe.PublicKey{}, RLK: &rlwe.RelinearizationKey{}}
	if err := readMarshaled(filepath.Join(dir, fPub), m.PK); err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	if err := readMarshaled(filepath.Join(dir, fRelin), m.RLK); err != nil {
		return nil, fmt.Errorf("read relin key: %w", err)
	}
	if _, err := os.Stat(filepath.Join(dir, fSec)); err == nil {
		sk := &rlwe.SecretKey{}
		if err := readMarshaled(filepath.Join(dir, fSec), sk); err != nil {
			return nil, fmt.Errorf("read secret key: %w", err)
		}
		m.SK = sk
	}
	return m, nil
}

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

type binaryUnmarshaler interface {
	UnmarshalBinary([]byte) error
}

func writeMarshaled(path string, v binaryMarshaler) error {
	b, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	return writeFile(path, b)
}

func readMarshaled(path string, v binaryUnmarshaler) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return v.UnmarshalBinary(b)
}

// write via tmp+rename so a crashed keygen never leaves a torn key file
func writeFile(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
