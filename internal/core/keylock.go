package core

import (
	"context"
	"sync"
)

// KeyLock serializes work per key. Runs against the same sheet key wait
// for each other; runs against different keys proceed independently.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	ch      chan struct{}
	waiters int
}

// NewKeyLock returns an empty KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyEntry)}
}

// Lock blocks until key is free or ctx ends. On success the returned
// function releases the key and must be called exactly once.
func (k *KeyLock) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.waiters++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() { k.unlock(key, e) }, nil
	case <-ctx.Done():
		k.mu.Lock()
		e.waiters--
		k.gc(key, e)
		k.mu.Unlock()
		return nil, ctx.Err()
	}
}

// TryLock takes key only if it is free right now.
func (k *KeyLock) TryLock(key string) (func(), bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.locks[key]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	select {
	case e.ch <- struct{}{}:
		e.waiters++
		return func() { k.unlock(key, e) }, true
	default:
		k.gc(key, e)
		return nil, false
	}
}

// Held reports whether key is currently locked.
func (k *KeyLock) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[key]
	return ok && len(e.ch) > 0
}

func (k *KeyLock) unlock(key string, e *keyEntry) {
	<-e.ch
	k.mu.Lock()
	e.waiters--
	k.gc(key, e)
	k.mu.Unlock()
}

// gc drops the entry once nobody holds or waits for it. Callers hold k.mu.
func (k *KeyLock) gc(key string, e *keyEntry) {
	if e.waiters == 0 && k.locks[key] == e {
		delete(k.locks, key)
	}
}
