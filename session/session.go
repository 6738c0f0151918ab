// Package session holds the wallet decryption passphrase in volatile memory
// while a bounded unlock session is active. Expiry is a sliding window:
// every successful wallet-state access pushes the deadline forward.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/zihandong029/firstwallet/storage"
)

const (
	// DefaultTimeout is the inactivity window before an unlocked session
	// locks itself.
	DefaultTimeout = 30 * time.Minute

	bucketSession = "session"
	keyCurrent    = "current"
)

// Config tunes a session manager.
type Config struct {
	// Timeout is the sliding inactivity window. Zero means DefaultTimeout.
	Timeout time.Duration
	// Persist writes the session record (passphrase and deadline, in the
	// clear) to local storage so the session survives a process restart.
	// Off by default; see DESIGN.md for the tradeoff.
	Persist bool
}

// persistedSession is the durable session record used when Config.Persist
// is enabled. Its mere presence in storage is sensitive.
type persistedSession struct {
	Password  string    `json:"password"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager is the session state machine: Locked or Unlocked(passphrase,
// expiresAt). All methods are safe for concurrent use.
type Manager struct {
	cfg   Config
	clk   clock.Clock
	store storage.Store

	mu        sync.Mutex
	enclave   *memguard.Enclave
	expiresAt time.Time
	gen       uint64
	unlockCh  chan struct{}
	onLock    []func()
}

// NewManager creates a locked session manager. If cfg.Persist is set and an
// unexpired session record exists in st, the session resumes unlocked.
func NewManager(cfg Config, clk clock.Clock, st storage.Store) *Manager {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	m := &Manager{
		cfg:      cfg,
		clk:      clk,
		store:    st,
		unlockCh: make(chan struct{}),
	}
	if cfg.Persist && st != nil {
		m.restore()
	}
	return m
}

// OnLock registers fn to run after every Unlocked -> Locked transition,
// explicit or by expiry. Must be called before the session is shared.
func (m *Manager) OnLock(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLock = append(m.onLock, fn)
}

// Activate transitions to Unlocked with the given passphrase and schedules
// expiry. The passphrase must already have been verified against the key
// store by the caller.
func (m *Manager) Activate(passphrase string) {
	m.mu.Lock()
	m.enclave = memguard.NewEnclave([]byte(passphrase))
	m.expiresAt = m.clk.Now().Add(m.cfg.Timeout)
	m.gen++
	close(m.unlockCh)
	m.unlockCh = make(chan struct{})
	gen := m.gen
	deadline := m.expiresAt
	m.mu.Unlock()

	m.persist(passphrase, deadline)
	go m.expireAt(gen, deadline)
}

// Touch slides the expiry window forward. No-op while locked.
func (m *Manager) Touch() {
	m.mu.Lock()
	if m.enclave == nil {
		m.mu.Unlock()
		return
	}
	m.expiresAt = m.clk.Now().Add(m.cfg.Timeout)
	m.gen++
	gen := m.gen
	deadline := m.expiresAt
	m.mu.Unlock()

	if passphrase, ok := m.Passphrase(); ok {
		m.persist(passphrase, deadline)
	}
	go m.expireAt(gen, deadline)
}

// Lock transitions to Locked and wipes the passphrase. Idempotent.
func (m *Manager) Lock() {
	m.lock(0)
}

// lock performs the transition. gen 0 means an explicit lock; a nonzero gen
// is an expiry attempt that only applies if no newer unlock or touch has
// happened since it was scheduled.
func (m *Manager) lock(gen uint64) {
	m.mu.Lock()
	if m.enclave == nil {
		m.mu.Unlock()
		return
	}
	if gen != 0 && gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.enclave = nil
	m.expiresAt = time.Time{}
	hooks := append([]func(){}, m.onLock...)
	m.mu.Unlock()

	m.clearPersisted()
	for _, fn := range hooks {
		fn()
	}
}

func (m *Manager) expireAt(gen uint64, deadline time.Time) {
	wait := deadline.Sub(m.clk.Now())
	if wait > 0 {
		<-m.clk.TickAfter(wait)
	}
	m.lock(gen)
}

// Unlocked reports whether a session is active. An expired deadline counts
// as locked even if the deferred expiry has not fired yet.
func (m *Manager) Unlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enclave != nil && m.clk.Now().Before(m.expiresAt)
}

// Passphrase returns the session passphrase if unlocked.
func (m *Manager) Passphrase() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enclave == nil || !m.clk.Now().Before(m.expiresAt) {
		return "", false
	}
	buf, err := m.enclave.Open()
	if err != nil {
		return "", false
	}
	defer buf.Destroy()
	return string(buf.Bytes()), true
}

// ExpiresAt returns the current session deadline, or the zero time if
// locked.
func (m *Manager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}

// WaitUnlock blocks until the session transitions to Unlocked or ctx ends.
// Returns immediately if already unlocked.
func (m *Manager) WaitUnlock(ctx context.Context) error {
	m.mu.Lock()
	if m.enclave != nil && m.clk.Now().Before(m.expiresAt) {
		m.mu.Unlock()
		return nil
	}
	ch := m.unlockCh
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) persist(passphrase string, deadline time.Time) {
	if !m.cfg.Persist || m.store == nil {
		return
	}
	record, err := json.Marshal(persistedSession{Password: passphrase, ExpiresAt: deadline})
	if err != nil {
		return
	}
	_ = m.store.Put(bucketSession, keyCurrent, record)
}

func (m *Manager) clearPersisted() {
	if !m.cfg.Persist || m.store == nil {
		return
	}
	_ = m.store.Delete(bucketSession, keyCurrent)
}

// restore resumes a persisted session if its deadline has not passed.
func (m *Manager) restore() {
	data, err := m.store.Get(bucketSession, keyCurrent)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		return
	}
	var record persistedSession
	if err := json.Unmarshal(data, &record); err != nil {
		_ = m.store.Delete(bucketSession, keyCurrent)
		return
	}
	if !m.clk.Now().Before(record.ExpiresAt) {
		_ = m.store.Delete(bucketSession, keyCurrent)
		return
	}

	m.enclave = memguard.NewEnclave([]byte(record.Password))
	m.expiresAt = record.ExpiresAt
	m.gen++
	close(m.unlockCh)
	m.unlockCh = make(chan struct{})
	go m.expireAt(m.gen, m.expiresAt)
}
