package oracle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDecryptor struct{ v uint64 }

func (d stubDecryptor) DecryptUint([]byte) (uint64, error) { return d.v, nil }

type recordingCallback struct {
	mu    sync.Mutex
	calls []struct {
		handle    string
		plaintext []byte
		proof     []byte
	}
}

func (c *recordingCallback) DecryptLayoutCallback(_ context.Context, handle string, plaintext, proof []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, struct {
		handle    string
		plaintext []byte
		proof     []byte
	}{handle, plaintext, proof})
	return nil
}

func (c *recordingCallback) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestWorkerDeliversSignedCallback(t *testing.T) {
	prover := NewProver("s")
	w := NewWorker(stubDecryptor{v: 12}, prover, 4, zap.NewNop())
	cb := &recordingCallback{}
	w.Bind(cb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, w.Submit(ctx, Job{Handle: "h1", UserID: "u1", Descriptor: []byte("ct")}))
	require.Eventually(t, func() bool { return cb.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cb.mu.Lock()
	call := cb.calls[0]
	cb.mu.Unlock()
	require.Equal(t, "h1", call.handle)
	require.Equal(t, uint64(12), DecodePlaintext(call.plaintext))
	require.True(t, prover.Verify(call.handle, call.plaintext, call.proof))
}

func TestSubmitDoesNotBlockOnFullQueue(t *testing.T) {
	w := NewWorker(stubDecryptor{}, NewProver("s"), 1, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, w.Submit(ctx, Job{Handle: "h1"}))
	require.ErrorIs(t, w.Submit(ctx, Job{Handle: "h2"}), ErrQueueFull)
}
