package api

import (
	"log/slog"
	"sync"
)

// Notifier is the daemon-side stand-in for opening extension popup windows.
// It satisfies both the consent opener and the dispatcher UI contracts by
// recording which surface the user should be shown; the popup discovers the
// prompt by polling /wallet/status and /consent/pending.
type Notifier struct {
	logger *slog.Logger

	mu      sync.Mutex
	surface string
}

// Surface names for the pending-prompt record.
const (
	SurfaceSetup  = "setup"
	SurfaceUnlock = "unlock"
)

// NewNotifier creates a notifier logging through logger.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger}
}

// ShowSetup records that the wallet-creation surface is needed.
func (n *Notifier) ShowSetup() {
	n.record(SurfaceSetup)
}

// ShowUnlock records that the unlock surface is needed.
func (n *Notifier) ShowUnlock() {
	n.record(SurfaceUnlock)
}

// Open announces a consent prompt for origin.
func (n *Notifier) Open(requestID, origin string) {
	n.logger.Info("consent prompt requested", "request_id", requestID, "origin", origin)
}

// Close announces that the consent prompt is no longer needed.
func (n *Notifier) Close(requestID string) {
	n.logger.Info("consent prompt released", "request_id", requestID)
}

// PendingSurface reports the most recently requested privileged surface and
// clears it.
func (n *Notifier) PendingSurface() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.surface == "" {
		return "", false
	}
	surface := n.surface
	n.surface = ""
	return surface, true
}

func (n *Notifier) record(surface string) {
	n.mu.Lock()
	n.surface = surface
	n.mu.Unlock()
	n.logger.Info("wallet surface requested", "surface", surface)
}
