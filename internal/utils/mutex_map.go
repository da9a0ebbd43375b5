package utils

import (
	"fmt"
	"sync"
)

// MutexMap serializes work per key. Entries are dropped once nobody holds or
// waits for a key, and at most maxSize keys may be tracked at once.
type MutexMap struct {
	edit         sync.Mutex
	queueLengths map[string]int
	mutexes      map[string]*sync.Mutex
	maxSize      int
}

func NewMutexMap(maxSize int) *MutexMap {
	return &MutexMap{
		queueLengths: make(map[string]int),
		mutexes:      make(map[string]*sync.Mutex),
		maxSize:      maxSize,
	}
}

var ErrMutexMapFull = fmt.Errorf("mutex map is full")

func (m *MutexMap) Lock(key string) error {
	m.edit.Lock()

	mu := m.mutexes[key]
	if mu == nil {
		if len(m.mutexes) >= m.maxSize {
			m.edit.Unlock()
			return ErrMutexMapFull
		}

		mu = &sync.Mutex{}
		m.mutexes[key] = mu
	}

	m.queueLengths[key]++
	m.edit.Unlock()

	mu.Lock()
	return nil
}

func (m *MutexMap) Unlock(key string) error {
	m.edit.Lock()
	defer m.edit.Unlock()

	mu := m.mutexes[key]
	if mu == nil {
		return fmt.Errorf("key %s not found", key)
	}

	mu.Unlock()
	m.queueLengths[key]--

	if m.queueLengths[key] == 0 {
		delete(m.mutexes, key)
		delete(m.queueLengths, key)
	}
	return nil
}

// WithLock runs fn while holding key.
func (m *MutexMap) WithLock(key string, fn func() error) error {
	if err := m.Lock(key); err != nil {
		return err
	}
	defer func() { _ = m.Unlock(key) }()
	return fn()
}

// Len reports how many keys are currently held or awaited.
func (m *MutexMap) Len() int {
	m.edit.Lock()
	defer m.edit.Unlock()
	return len(m.mutexes)
}
