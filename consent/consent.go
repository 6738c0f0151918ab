// Package consent runs the user-facing approval round-trip: one pending
// request per consent surface, resolved exactly once by approval, rejection
// or timeout.
package consent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
)

// DefaultTimeout bounds how long a consent request may stay unanswered.
// A timeout is indistinguishable from a rejection to the requesting page.
const DefaultTimeout = 2 * time.Minute

// Opener is the UI surface that presents a consent prompt. Open is called
// once per request; Close is called on every resolution path, including
// timeout, so the surface is always released.
type Opener interface {
	Open(requestID, origin string)
	Close(requestID string)
}

// Request is a pending consent round-trip.
type Request struct {
	ID        string    `json:"id"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}

// Config tunes the bridge.
type Config struct {
	Timeout time.Duration
}

// Bridge owns the pending-request registry.
type Bridge struct {
	cfg    Config
	clk    clock.Clock
	opener Opener
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

type pendingRequest struct {
	request  Request
	decision chan bool
}

// NewBridge creates a consent bridge over the given UI opener.
func NewBridge(cfg Config, clk clock.Clock, opener Opener, logger *slog.Logger) *Bridge {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:     cfg,
		clk:     clk,
		opener:  opener,
		logger:  logger,
		pending: make(map[string]*pendingRequest),
	}
}

// RequestApproval opens the consent surface for origin and blocks until the
// user decides, the timeout passes, or ctx ends. Timeout and context
// cancellation report as a rejection; the error is reserved for internal
// faults.
func (b *Bridge) RequestApproval(ctx context.Context, origin string) (bool, error) {
	req := Request{
		ID:        uuid.NewString(),
		Origin:    origin,
		CreatedAt: b.clk.Now(),
	}
	pending := &pendingRequest{request: req, decision: make(chan bool, 1)}

	b.mu.Lock()
	b.pending[req.ID] = pending
	b.mu.Unlock()

	b.opener.Open(req.ID, origin)
	defer b.opener.Close(req.ID)
	// The entry may already be gone if Resolve won; removal is idempotent.
	defer b.remove(req.ID)

	select {
	case approved := <-pending.decision:
		b.logger.Info("consent resolved", "origin", origin, "approved", approved)
		return approved, nil
	case <-b.clk.TickAfter(b.cfg.Timeout):
		b.logger.Info("consent timed out", "origin", origin)
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Resolve delivers the user's decision for a pending request. The first
// signal for a request wins; any later signal, including a timeout that
// already fired, is a no-op. Returns whether the signal was consumed.
func (b *Bridge) Resolve(requestID string, approved bool) bool {
	b.mu.Lock()
	pending, ok := b.pending[requestID]
	if ok {
		delete(b.pending, requestID)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	pending.decision <- approved
	return true
}

// Pending lists requests awaiting a decision, for the approval UI.
func (b *Bridge) Pending() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	requests := make([]Request, 0, len(b.pending))
	for _, pending := range b.pending {
		requests = append(requests, pending.request)
	}
	return requests
}

func (b *Bridge) remove(requestID string) {
	b.mu.Lock()
	delete(b.pending, requestID)
	b.mu.Unlock()
}
