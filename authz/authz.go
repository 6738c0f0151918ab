// Package authz tracks which web origins may request account access. Grants
// are per-origin, time-bounded, and deliberately independent of the unlock
// session: authorization gates account visibility, not signing.
package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/zihandong029/firstwallet/storage"
)

const (
	// DefaultTTL is how long a grant stays valid. A policy constant, not a
	// protocol requirement.
	DefaultTTL = time.Hour
	// DefaultSweepInterval is how often the background sweep removes
	// expired grants that were never re-queried.
	DefaultSweepInterval = time.Hour

	bucketAuthz = "authorizations"
)

// Record is a stored per-origin grant.
type Record struct {
	Origin    string        `json:"origin"`
	GrantedAt time.Time     `json:"granted_at"`
	TTL       time.Duration `json:"ttl"`
}

// Config tunes the gate.
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// Gate is the per-origin authorization store.
type Gate struct {
	cfg    Config
	clk    clock.Clock
	store  storage.Store
	logger *slog.Logger
}

// NewGate creates an authorization gate over the given storage.
func NewGate(cfg Config, clk clock.Clock, st storage.Store, logger *slog.Logger) *Gate {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{cfg: cfg, clk: clk, store: st, logger: logger}
}

// Authorize inserts or overwrites the grant for origin with a fresh
// grantedAt timestamp.
func (g *Gate) Authorize(origin string) error {
	record, err := json.Marshal(Record{
		Origin:    origin,
		GrantedAt: g.clk.Now(),
		TTL:       g.cfg.TTL,
	})
	if err != nil {
		return fmt.Errorf("encoding authorization: %w", err)
	}
	if err := g.store.Put(bucketAuthz, origin, record); err != nil {
		return fmt.Errorf("writing authorization: %w", err)
	}
	g.logger.Info("origin authorized", "origin", origin, "ttl", g.cfg.TTL)
	return nil
}

// IsAuthorized reports whether origin holds an unexpired grant. An expired
// grant is deleted as a side effect of the check.
func (g *Gate) IsAuthorized(origin string) bool {
	data, err := g.store.Get(bucketAuthz, origin)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		g.logger.Error("reading authorization", "origin", origin, "err", err)
		return false
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		_ = g.store.Delete(bucketAuthz, origin)
		return false
	}
	if g.expired(record) {
		_ = g.store.Delete(bucketAuthz, origin)
		return false
	}
	return true
}

// Revoke deletes the grant for origin, expired or not.
func (g *Gate) Revoke(origin string) error {
	return g.store.Delete(bucketAuthz, origin)
}

// RevokeAll deletes every grant.
func (g *Gate) RevokeAll() error {
	origins, err := g.store.List(bucketAuthz)
	if err != nil {
		return fmt.Errorf("listing authorizations: %w", err)
	}
	for _, origin := range origins {
		if err := g.store.Delete(bucketAuthz, origin); err != nil {
			return fmt.Errorf("revoking %s: %w", origin, err)
		}
	}
	return nil
}

// List returns all unexpired grants.
func (g *Gate) List() ([]Record, error) {
	origins, err := g.store.List(bucketAuthz)
	if err != nil {
		return nil, fmt.Errorf("listing authorizations: %w", err)
	}
	var records []Record
	for _, origin := range origins {
		data, err := g.store.Get(bucketAuthz, origin)
		if err != nil {
			continue
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		if g.expired(record) {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Sweep deletes all expired grants. Redundant with the lazy expiry in
// IsAuthorized, but bounds storage growth for origins never re-queried.
func (g *Gate) Sweep() {
	origins, err := g.store.List(bucketAuthz)
	if err != nil {
		g.logger.Error("authorization sweep failed", "err", err)
		return
	}
	removed := 0
	for _, origin := range origins {
		data, err := g.store.Get(bucketAuthz, origin)
		if err != nil {
			continue
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil || g.expired(record) {
			if delErr := g.store.Delete(bucketAuthz, origin); delErr == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		g.logger.Info("swept expired authorizations", "removed", removed)
	}
}

// StartSweeper sweeps once immediately, then on every sweep interval until
// ctx ends.
func (g *Gate) StartSweeper(ctx context.Context) {
	go func() {
		g.Sweep()
		for {
			select {
			case <-g.clk.TickAfter(g.cfg.SweepInterval):
				g.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (g *Gate) expired(record Record) bool {
	return g.clk.Now().Sub(record.GrantedAt) >= record.TTL
}
