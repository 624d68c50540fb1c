package oracle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Decryptor is the secret-key capability the worker needs (fhe.KeyHolder in
// production).
type Decryptor interface {
	DecryptUint(ct []byte) (uint64, error)
}

// Callback is implemented by the decryption coordinator.
type Callback interface {
	DecryptLayoutCallback(ctx context.Context, handle string, plaintext, proof []byte) error
}

// Job is one outstanding decryption request.
type Job struct {
	Handle     string
	UserID     string
	Descriptor []byte
}

var ErrQueueFull = errors.New("oracle queue full")

// Worker consumes decryption jobs and delivers proof-carrying callbacks at
// some later time. Delivery is asynchronous by design: the coordinator's
// correlation table and phase guard do not depend on timing.
type Worker struct {
	jobs   chan Job
	dec    Decryptor
	prover *Prover
	cb     Callback
	log    *zap.Logger
}

func NewWorker(dec Decryptor, prover *Prover, queueSize int, log *zap.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Worker{
		jobs:   make(chan Job, queueSize),
		dec:    dec,
		prover: prover,
		log:    log,
	}
}

// Bind wires the coordinator in after construction (the coordinator needs
// the worker as its submitter, so the two cannot be built in one shot).
func (w *Worker) Bind(cb Callback) { w.cb = cb }

// Submit enqueues a job without blocking. A full queue is surfaced to the
// caller; a submitted job cannot be withdrawn.
func (w *Worker) Submit(ctx context.Context, job Job) error {
	select {
	case w.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	start := time.Now()
	config, err := w.dec.DecryptUint(job.Descriptor)
	if err != nil {
		w.log.Error("oracle decrypt failed",
			zap.String("handle", job.Handle), zap.Error(err))
		return
	}
	plaintext := EncodePlaintext(config)
	proof := w.prover.Sign(job.Handle, plaintext)

	if w.cb == nil {
		w.log.Error("oracle has no callback bound", zap.String("handle", job.Handle))
		return
	}
	if err := w.cb.DecryptLayoutCallback(ctx, job.Handle, plaintext, proof); err != nil {
		// duplicate requests for an already revealed layout land here; that
		// is the idempotency guard doing its job, not a delivery failure
		w.log.Warn("oracle callback rejected",
			zap.String("handle", job.Handle), zap.Error(err))
		return
	}
	w.log.Info("layout decrypted",
		zap.String("handle", job.Handle),
		zap.String("user_id", job.UserID),
		zap.Duration("took", time.Since(start)))
}
