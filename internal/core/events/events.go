// Package events publishes the observable lifecycle notifications display
// clients subscribe to for reactive refresh. One emit per successful
// transition; no delivery guarantee beyond that.
package events

import "context"

const (
	ProfileUpdated      = "profile.updated"
	LayoutComputed      = "layout.computed"
	DecryptionRequested = "decryption.requested"
	LayoutRevealed      = "layout.revealed"
)

type Notifier interface {
	Publish(ctx context.Context, event, userID string)
}

// Noop drops everything; used when redis is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, string, string) {}
