// Package domain holds the encrypted-personalization entities shared by the
// service, storage and transport layers. Ciphertexts are opaque byte blobs
// here; only internal/fhe knows how to operate on them.
package domain

import "time"

// Components is the fixed, ordered UI component list. Order matters: the
// accumulator index and the 3-bit priority fields of a revealed config are
// both positional.
var Components = []string{"clock", "notifications", "activity", "weather", "calendar"}

// PriorityBits is the width of one component's priority field in a revealed
// layout config.
const PriorityBits = 3

// Phase is the per-identity layout lifecycle. Transitions are monotonic
// within one profile generation; UpdateProfile resets to PhaseUncomputed.
type Phase uint8

const (
	PhaseUncomputed Phase = iota
	PhaseComputed
	PhaseRequestPending
	PhaseRevealed
)

func (p Phase) String() string {
	switch p {
	case PhaseUncomputed:
		return "uncomputed"
	case PhaseComputed:
		return "computed"
	case PhaseRequestPending:
		return "request_pending"
	case PhaseRevealed:
		return "revealed"
	default:
		return "unknown"
	}
}

// Computed reports whether the layout descriptor exists for this phase.
func (p Phase) Computed() bool { return p >= PhaseComputed }

// Revealed reports whether the plaintext layout has been finalized.
func (p Phase) Revealed() bool { return p == PhaseRevealed }

// Profile is one identity's encrypted behavioral profile. It is replaced
// wholesale on every update and never deleted.
type Profile struct {
	UserID     string
	Activity   []byte // encrypted activity-pattern value
	Preference []byte // encrypted notification-preference value
	UpdatedAt  time.Time
}

// LayoutState carries the phase and, once computed, the encrypted layout
// descriptor for one identity.
type LayoutState struct {
	UserID     string
	Phase      Phase
	Descriptor []byte
}

// RevealedLayout is the finalized plaintext rendering for one identity.
type RevealedLayout struct {
	UserID     string
	Config     uint64
	Rendered   string
	RevealedAt time.Time
}

// ComponentWeight is one entry of the process-wide accumulator. The weight
// table is shared across all identities and only ever grows.
type ComponentWeight struct {
	Component string
	Weight    []byte
}

// DecryptionRequest correlates an outstanding oracle request back to the
// identity that issued it.
type DecryptionRequest struct {
	Handle     string
	UserID     string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}
