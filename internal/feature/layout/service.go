package layout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cipherpanel/internal/core/cache"
	"cipherpanel/internal/core/events"
	"cipherpanel/internal/domain"
	"cipherpanel/internal/oracle"
)

// Evaluator is the public-material slice of the ciphertext capability the
// service needs (fhe.Engine in production, plaintext double in tests).
type Evaluator interface {
	EncryptUint(v uint64) ([]byte, error)
	Add(a, b []byte) ([]byte, error)
	MulIndex(a []byte, k int) ([]byte, error)
	Div(num, den []byte) ([]byte, error)
	Validate(b []byte) error
}

// Refresher re-encrypts a ciphertext at full level. Optional: only the
// embedded oracle deployment can offer it.
type Refresher interface {
	Refresh(ct []byte) ([]byte, error)
}

// Submitter hands a descriptor to the decryption oracle.
type Submitter interface {
	Submit(ctx context.Context, job oracle.Job) error
}

// Verifier authenticates oracle callbacks.
type Verifier interface {
	Verify(handle string, plaintext, proof []byte) bool
}

// ErrInvalidCiphertext is a transport-boundary failure: the submitted blob
// does not parse as a ciphertext for the configured context.
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

type Options struct {
	DB        *gorm.DB
	Eval      Evaluator
	Oracle    Submitter
	Verifier  Verifier
	Notifier  events.Notifier
	Cache     *cache.Cache // optional
	Refresher Refresher    // optional
	Log       *zap.Logger
}

// Service is the encrypted-state lifecycle and decryption-coordination
// engine: per-user phase machine, shared weight accumulator, and the
// request/callback correlation protocol.
type Service struct {
	db        *gorm.DB
	repo      Repo
	eval      Evaluator
	oracle    Submitter
	verifier  Verifier
	notifier  events.Notifier
	cache     *cache.Cache
	refresher Refresher
	log       *zap.Logger

	// accumMu serializes the full two-pass accumulate-then-normalize
	// sequence; pass two must divide by pass one's fresh total.
	accumMu sync.Mutex
}

func NewService(o Options) *Service {
	n := o.Notifier
	if n == nil {
		n = events.Noop{}
	}
	return &Service{
		db:        o.DB,
		eval:      o.Eval,
		oracle:    o.Oracle,
		verifier:  o.Verifier,
		notifier:  n,
		cache:     o.Cache,
		refresher: o.Refresher,
		log:       o.Log,
	}
}

// InitWeights seeds the shared accumulator with unit weights. Runs once at
// system start; existing entries are never reset.
func (s *Service) InitWeights(ctx context.Context) error {
	weights, err := s.repo.GetWeights(ctx, s.db)
	if err != nil {
		return err
	}
	for _, name := range domain.Components {
		if _, ok := weights[name]; ok {
			continue
		}
		unit, err := s.eval.EncryptUint(1)
		if err != nil {
			return fmt.Errorf("seed weight %s: %w", name, err)
		}
		if err := s.repo.SaveWeight(ctx, s.db, name, unit); err != nil {
			return err
		}
	}
	return nil
}

// UpdateProfile replaces the caller's profile wholesale and resets the
// layout lifecycle to uncomputed. Idempotent overwrite; no failure modes
// beyond a malformed ciphertext.
func (s *Service) UpdateProfile(ctx context.Context, uid string, activity, preference []byte) error {
	if err := s.eval.Validate(activity); err != nil {
		return fmt.Errorf("%w: activity: %w", ErrInvalidCiphertext, err)
	}
	if err := s.eval.Validate(preference); err != nil {
		return fmt.Errorf("%w: preference: %w", ErrInvalidCiphertext, err)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.SaveProfile(ctx, tx, &domain.Profile{
			UserID: uid, Activity: activity, Preference: preference, UpdatedAt: time.Now(),
		}); err != nil {
			return err
		}
		if err := s.repo.SaveLayoutState(ctx, tx, &domain.LayoutState{
			UserID: uid, Phase: domain.PhaseUncomputed, Descriptor: nil,
		}); err != nil {
			return err
		}
		// outstanding handles correlate to the replaced descriptor; without
		// this, a late callback would reveal the old generation into the new
		if err := s.repo.DeletePendingRequests(ctx, tx, uid); err != nil {
			return err
		}
		return s.repo.DeleteRevealed(ctx, tx, uid)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, renderedKey(uid))
	}
	profileUpdates.Inc()
	s.notifier.Publish(ctx, events.ProfileUpdated, uid)
	return nil
}

// ComputeUILayout runs the two-pass weight accumulation against the global
// accumulator and derives the caller's encrypted layout descriptor. Strictly
// one-shot per profile generation.
func (s *Service) ComputeUILayout(ctx context.Context, uid string) ([]byte, error) {
	s.accumMu.Lock()
	defer s.accumMu.Unlock()

	start := time.Now()
	var descriptor []byte

	err := s.db.Transaction(func(tx *gorm.DB) error {
		profile, err := s.repo.GetProfile(ctx, tx, uid)
		if err != nil {
			return err
		}
		state, err := s.repo.GetLayoutState(ctx, tx, uid)
		if err != nil {
			return err
		}
		if state.Phase.Computed() {
			return domain.ErrAlreadyComputed
		}

		weights, err := s.repo.GetWeights(ctx, tx)
		if err != nil {
			return err
		}

		// pass one: weight[name] += activity * index, totalling as we go
		var total []byte
		for i, name := range domain.Components {
			w, ok := weights[name]
			if !ok {
				return fmt.Errorf("accumulator not seeded for %q", name)
			}
			scaled, err := s.eval.MulIndex(profile.Activity, i+1)
			if err != nil {
				return err
			}
			if w, err = s.eval.Add(w, scaled); err != nil {
				return err
			}
			weights[name] = w
			if total == nil {
				total = w
			} else if total, err = s.eval.Add(total, w); err != nil {
				return err
			}
		}

		// pass two: normalize every weight by the global total
		for _, name := range domain.Components {
			w, err := s.eval.Div(weights[name], total)
			if err != nil {
				return err
			}
			if s.refresher != nil {
				if w, err = s.refresher.Refresh(w); err != nil {
					return err
				}
			}
			if err := s.repo.SaveWeight(ctx, tx, name, w); err != nil {
				return err
			}
		}

		// the descriptor deliberately ignores the normalized weights
		if descriptor, err = s.eval.Add(profile.Activity, profile.Preference); err != nil {
			return err
		}
		return s.repo.SaveLayoutState(ctx, tx, &domain.LayoutState{
			UserID: uid, Phase: domain.PhaseComputed, Descriptor: descriptor,
		})
	})
	if err != nil {
		return nil, err
	}

	computeDuration.Observe(time.Since(start).Seconds())
	layoutsComputed.Inc()
	s.notifier.Publish(ctx, events.LayoutComputed, uid)
	return descriptor, nil
}

// RequestLayoutDecryption submits the caller's descriptor to the oracle and
// returns the correlation handle. Duplicate outstanding requests are
// allowed; only the first verified callback reveals.
func (s *Service) RequestLayoutDecryption(ctx context.Context, uid string) (string, error) {
	handle := uuid.NewString()
	var descriptor []byte

	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.repo.GetLayoutState(ctx, tx, uid)
		if err != nil {
			return err
		}
		if !state.Phase.Computed() {
			return domain.ErrNotComputed
		}
		if state.Phase.Revealed() {
			return domain.ErrAlreadyRevealed
		}
		descriptor = state.Descriptor

		if err := s.repo.CreateRequest(ctx, tx, &domain.DecryptionRequest{
			Handle: handle, UserID: uid, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		state.Phase = domain.PhaseRequestPending
		return s.repo.SaveLayoutState(ctx, tx, state)
	})
	if err != nil {
		return "", err
	}

	// a request cannot be withdrawn once recorded; if the queue is full the
	// handle stays pending and the caller may simply request again
	if err := s.oracle.Submit(ctx, oracle.Job{Handle: handle, UserID: uid, Descriptor: descriptor}); err != nil {
		s.log.Warn("oracle submit failed, request left pending",
			zap.String("handle", handle), zap.Error(err))
	}

	decryptRequests.Inc()
	s.notifier.Publish(ctx, events.DecryptionRequested, uid)
	return handle, nil
}

// DecryptLayoutCallback finalizes a reveal. Invoked by the oracle, not by
// users. Verification order is fixed: correlate, re-check the reveal guard,
// authenticate the payload, and only then decode it.
func (s *Service) DecryptLayoutCallback(ctx context.Context, handle string, plaintext, proof []byte) error {
	var uid string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		req, err := s.repo.GetRequest(ctx, tx, handle)
		if err != nil {
			return err
		}
		uid = req.UserID

		state, err := s.repo.GetLayoutState(ctx, tx, uid)
		if err != nil {
			return err
		}
		if state.Phase.Revealed() {
			return domain.ErrAlreadyRevealed
		}
		// a resolved handle whose reveal is gone is spent: a later profile
		// update reset the lifecycle, and replaying it must not reveal again
		if req.ResolvedAt != nil {
			return domain.ErrUnknownHandle
		}

		if !s.verifier.Verify(handle, plaintext, proof) {
			return domain.ErrInvalidProof
		}

		now := time.Now()
		config := oracle.DecodePlaintext(plaintext)
		if err := s.repo.SaveRevealed(ctx, tx, &domain.RevealedLayout{
			UserID: uid, Config: config, Rendered: Render(config), RevealedAt: now,
		}); err != nil {
			return err
		}
		state.Phase = domain.PhaseRevealed
		if err := s.repo.SaveLayoutState(ctx, tx, state); err != nil {
			return err
		}
		return s.repo.ResolveRequest(ctx, tx, handle, now)
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownHandle):
			callbackRejected.WithLabelValues("unknown_handle").Inc()
		case errors.Is(err, domain.ErrAlreadyRevealed):
			callbackRejected.WithLabelValues("already_revealed").Inc()
		case errors.Is(err, domain.ErrInvalidProof):
			callbackRejected.WithLabelValues("invalid_proof").Inc()
		}
		return err
	}

	layoutsRevealed.Inc()
	s.notifier.Publish(ctx, events.LayoutRevealed, uid)
	return nil
}

// GetEncryptedLayout returns the caller's encrypted descriptor.
func (s *Service) GetEncryptedLayout(ctx context.Context, uid string) ([]byte, error) {
	state, err := s.repo.GetLayoutState(ctx, s.db, uid)
	if err != nil {
		return nil, err
	}
	if !state.Phase.Computed() {
		return nil, domain.ErrNotComputed
	}
	return state.Descriptor, nil
}

// GetDecryptedLayout returns the caller's rendered layout, read through the
// cache when one is configured.
func (s *Service) GetDecryptedLayout(ctx context.Context, uid string) (string, error) {
	load := func(ctx context.Context) (*domain.RevealedLayout, error) {
		return s.repo.GetRevealed(ctx, s.db, uid)
	}
	if s.cache == nil {
		r, err := load(ctx)
		if err != nil {
			return "", err
		}
		return r.Rendered, nil
	}
	r, err := cache.GetOrLoadJSON(s.cache, ctx, renderedKey(uid), 10*time.Minute, load)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", domain.ErrNotRevealed
	}
	return r.Rendered, nil
}

func renderedKey(uid string) string { return "cipherpanel:rendered:" + uid }
