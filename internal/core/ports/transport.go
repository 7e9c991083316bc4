package ports

import (
	"context"
	"errors"

	"github.com/ironbelly/walletd/pkg/slate"
)

// ErrTransport wraps failures delivering a slate to its destination.
var ErrTransport = errors.New("failed to deliver slate")

// SlateSender delivers a slate to a remote wallet and returns its response.
type SlateSender interface {
	SendSlate(ctx context.Context, dest string, s slate.Slate) (slate.Slate, error)
}

// SlateReceiver processes an inbound slate and returns the response to
// give back to the sender.
type SlateReceiver interface {
	ReceiveSlate(ctx context.Context, s slate.Slate) (slate.Slate, error)
}

// Listener accepts inbound slates until its context is done.
type Listener interface {
	Listen(ctx context.Context, receiver SlateReceiver) error
	Address() string
}
