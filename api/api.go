// Package api is the loopback HTTP surface: the /rpc relay that stands in
// for the content-script transport, and the privileged endpoints the wallet
// popup uses.
package api

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/zihandong029/firstwallet/authz"
	"github.com/zihandong029/firstwallet/consent"
	"github.com/zihandong029/firstwallet/dispatcher"
	"github.com/zihandong029/firstwallet/wallet"
)

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	dispatcher *dispatcher.Dispatcher
	wallet     *wallet.Service
	consent    *consent.Bridge
	gate       *authz.Gate
	notifier   *Notifier
	logger     *slog.Logger
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithNotifier lets /wallet/status report which privileged surface the
// dispatcher asked for.
func WithNotifier(n *Notifier) Option {
	return func(a *API) {
		a.notifier = n
	}
}

// New creates a new API instance.
func New(d *dispatcher.Dispatcher, w *wallet.Service, c *consent.Bridge, gate *authz.Gate, opts ...Option) *API {
	a := &API{
		dispatcher: d,
		wallet:     w,
		consent:    c,
		gate:       gate,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return a
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	// Page-originated relay.
	r.Post("/rpc", a.Relay)

	r.Route("/wallet", func(r chi.Router) {
		r.Get("/status", a.Status)
		r.Post("/create", a.Create)
		r.Post("/restore", a.Restore)
		r.Post("/import", a.Import)
		r.Post("/unlock", a.Unlock)
		r.Post("/lock", a.Lock)

		r.Get("/accounts", a.ListAccounts)
		r.Post("/accounts", a.AddAccount)
		r.Post("/accounts/current", a.SwitchAccount)
		r.Get("/balance", a.Balance)
		r.Post("/sign-message", a.SignMessage)
		r.Post("/transactions", a.SendTransaction)

		r.Get("/networks", a.ListNetworks)
		r.Post("/networks", a.AddNetwork)
		r.Post("/networks/current", a.SwitchNetwork)
		r.Delete("/networks/{chainID}", a.RemoveNetwork)
		r.Get("/networks/{chainID}/test", a.TestNetwork)
	})

	r.Route("/consent", func(r chi.Router) {
		r.Get("/pending", a.PendingConsents)
		r.Post("/{requestID}/approve", a.ApproveConsent)
		r.Post("/{requestID}/reject", a.RejectConsent)
	})

	r.Get("/authorizations", a.ListAuthorizations)
	r.Delete("/authorizations", a.RevokeAuthorization)

	return r
}
