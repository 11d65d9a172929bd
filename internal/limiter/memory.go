package limiter

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type attempt struct {
	fails        int
	firstFail    time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter for dev mode. Entries expire after the
// longer of window and blockFor, so idle keys are forgotten.
type Memory struct {
	mu       sync.Mutex
	entries  *expirable.LRU[string, attempt]
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

// NewMemory constructs an in-process limiter tracking at most size keys.
func NewMemory(size int, window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	ttl := max(window, blockFor)
	return &Memory{
		entries:  expirable.NewLRU[string, attempt](size, nil, ttl),
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

func key(account string, ipHash []byte) string { return account + "|" + hex.EncodeToString(ipHash) }

// Allow reports whether login is currently allowed and a retry-after duration.
func (m *Memory) Allow(_ context.Context, account string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.entries.Get(key(account, ipHash))
	if ok && a.blockedUntil.After(m.now()) {
		return false, a.blockedUntil.Sub(m.now()), nil
	}
	return true, 0, nil
}

// Success resets counters for (account, ip).
func (m *Memory) Success(_ context.Context, account string, ipHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Remove(key(account, ipHash))
	return nil
}

// Failure records a failed attempt; may set a block until a future time.
func (m *Memory) Failure(_ context.Context, account string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := key(account, ipHash)
	a, _ := m.entries.Get(k)
	if a.fails == 0 || now.Sub(a.firstFail) > m.window {
		a = attempt{firstFail: now}
	}
	a.fails++
	blocked := a.fails >= m.maxFails
	if blocked {
		a.blockedUntil = now.Add(m.blockFor)
	}
	m.entries.Add(k, a)
	if blocked {
		return true, m.blockFor, nil
	}
	return false, 0, nil
}
