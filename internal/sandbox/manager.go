package sandbox

import (
	"context"
	"errors"
	"sync"

	"github.com/zpdzap/katarunner/internal/identity"
)

// Manager enforces the existence preconditions around a Backend and
// serializes create and destroy for the same kata within this process.
type Manager struct {
	backend Backend
}

// NewManager wraps backend.
func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend}
}

// Backend returns the wrapped backend.
func (m *Manager) Backend() Backend {
	return m.backend
}

// Exists reports whether the kata's sandbox exists.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	return m.backend.Exists(ctx)
}

// AssertExists fails with kata_id:!exists unless the sandbox exists.
func (m *Manager) AssertExists(ctx context.Context) error {
	ok, err := m.backend.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return identity.Bad(identity.FieldKataID, identity.NotExists)
	}
	return nil
}

// Create makes the sandbox. It fails with kata_id:exists if it is already
// there. A sandbox this call started but could not finish is removed
// again; one it never started is left alone.
func (m *Manager) Create(ctx context.Context) error {
	unlock := locks.lock(m.backend.Name())
	defer unlock()

	ok, err := m.backend.Exists(ctx)
	if err != nil {
		return err
	}
	if ok {
		return identity.Bad(identity.FieldKataID, identity.Exists)
	}
	if err := m.backend.Create(ctx); err != nil {
		var notStarted *NotStartedError
		if !errors.As(err, &notStarted) {
			_ = m.backend.Destroy(context.WithoutCancel(ctx))
		}
		return err
	}
	return nil
}

// Destroy removes the sandbox. It fails with kata_id:!exists if it is not
// there.
func (m *Manager) Destroy(ctx context.Context) error {
	unlock := locks.lock(m.backend.Name())
	defer unlock()

	if err := m.AssertExists(ctx); err != nil {
		return err
	}
	return m.backend.Destroy(ctx)
}

// keyedMutex hands out one mutex per key and forgets it when no one holds
// or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

var locks = &keyedMutex{locks: make(map[string]*refMutex)}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
