package fhe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// shared small context: keygen dominates test time
var (
	testOnce   sync.Once
	testMat    *Material
	testEng    *Engine
	testHolder *KeyHolder
)

func testContext(t *testing.T) (*Engine, *KeyHolder) {
	t.Helper()
	testOnce.Do(func() {
		m, err := Generate(Options{LogN: 12, Levels: 8, LogScale: 45})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		testMat = m
		testEng = NewEngine(m, 256, 3)
		testHolder, err = NewKeyHolder(m)
		if err != nil {
			t.Fatalf("key holder: %v", err)
		}
	})
	require.NotNil(t, testEng)
	return testEng, testHolder
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e, kh := testContext(t)
	ct, err := e.EncryptUint(42)
	require.NoError(t, err)
	v, err := kh.DecryptUint(ct)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)
}

func TestHomomorphicAdd(t *testing.T) {
	e, kh := testContext(t)
	a, err := e.EncryptUint(5)
	require.NoError(t, err)
	b, err := e.EncryptUint(7)
	require.NoError(t, err)

	sum, err := e.Add(a, b)
	require.NoError(t, err)
	v, err := kh.DecryptUint(sum)
	require.NoError(t, err)
	require.Equal(t, uint64(12), v)
}

func TestHomomorphicMulIndex(t *testing.T) {
	e, kh := testContext(t)
	a, err := e.EncryptUint(5)
	require.NoError(t, err)

	out, err := e.MulIndex(a, 3)
	require.NoError(t, err)
	v, err := kh.DecryptUint(out)
	require.NoError(t, err)
	require.Equal(t, uint64(15), v)
}

func TestHomomorphicMul(t *testing.T) {
	e, kh := testContext(t)
	a, err := e.EncryptUint(6)
	require.NoError(t, err)
	b, err := e.EncryptUint(7)
	require.NoError(t, err)

	out, err := e.Mul(a, b)
	require.NoError(t, err)
	v, err := kh.DecryptUint(out)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)
}

func TestHomomorphicDiv(t *testing.T) {
	e, kh := testContext(t)
	cases := []struct{ num, den, want uint64 }{
		{600, 200, 3},
		{1000, 250, 4},
		{200, 200, 1},
	}
	for _, tc := range cases {
		num, err := e.EncryptUint(tc.num)
		require.NoError(t, err)
		den, err := e.EncryptUint(tc.den)
		require.NoError(t, err)

		out, err := e.Div(num, den)
		require.NoError(t, err)
		v, err := kh.DecryptUint(out)
		require.NoError(t, err)
		require.Equal(t, tc.want, v, "%d / %d", tc.num, tc.den)
	}
}

func TestRefreshRestoresLevel(t *testing.T) {
	e, kh := testContext(t)
	num, err := e.EncryptUint(600)
	require.NoError(t, err)
	den, err := e.EncryptUint(200)
	require.NoError(t, err)
	low, err := e.Div(num, den)
	require.NoError(t, err)

	refreshed, err := kh.Refresh(low)
	require.NoError(t, err)

	ct := new(rlwe.Ciphertext)
	require.NoError(t, ct.UnmarshalBinary(refreshed))
	require.Equal(t, testMat.Params.MaxLevel(), ct.Level())

	v, err := kh.DecryptUint(refreshed)
	require.NoError(t, err)
	require.Equal(t, uint64(3), v)
}

func TestValidateRejectsGarbage(t *testing.T) {
	e, _ := testContext(t)
	require.Error(t, e.Validate([]byte("not a ciphertext")))
	require.Error(t, e.Validate(nil))

	ct, err := e.EncryptUint(1)
	require.NoError(t, err)
	require.NoError(t, e.Validate(ct))
}

func TestSaveLoadPublicMaterial(t *testing.T) {
	_, _ = testContext(t)
	dir := t.TempDir()
	require.NoError(t, testMat.Save(dir, false))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Nil(t, loaded.SK, "public-only directory must not yield a secret key")

	_, err = NewKeyHolder(loaded)
	require.Error(t, err)

	// a public-only context can still encrypt and evaluate
	e2 := NewEngine(loaded, 256, 3)
	ct, err := e2.EncryptUint(9)
	require.NoError(t, err)

	_, kh := testContext(t)
	v, err := kh.DecryptUint(ct)
	require.NoError(t, err)
	require.Equal(t, uint64(9), v)
}
