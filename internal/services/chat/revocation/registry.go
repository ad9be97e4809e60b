package revocation

import (
	"context"
	"hash/maphash"
	"log"
	"sync"
	"time"
)

const (
	// DefaultSweepInterval is how often Run purges expired entries.
	DefaultSweepInterval = 60 * time.Second
	// DefaultMaxEntries is the soft bound on recorded revocations.
	DefaultMaxEntries = 100_000

	shardCount = 32
)

// Registry answers whether a token has been revoked.
type Registry interface {
	// Revoke records token as invalid until expiresAt. It is idempotent and
	// never fails from the caller's point of view.
	Revoke(ctx context.Context, token string, expiresAt time.Time)
	// IsRevoked reports whether Revoke completed for token.
	IsRevoked(ctx context.Context, token string) bool
}

// MemoryConfig tunes the in-process registry.
type MemoryConfig struct {
	SweepInterval time.Duration
	MaxEntries    int
	Now           func() time.Time
}

// Memory is the in-process Registry.
//
// Entries are spread over independently locked shards so concurrent auth
// checks for unrelated tokens only contend for the duration of one map
// operation, and a sweep never holds more than one shard at a time.
type Memory struct {
	seed          maphash.Seed
	shards        [shardCount]shard
	sweepInterval time.Duration
	maxPerShard   int
	now           func() time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]int64 // token -> expiry, epoch seconds
}

var _ Registry = (*Memory)(nil)

// NewMemory builds an empty registry.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	perShard := cfg.MaxEntries / shardCount
	if perShard < 1 {
		perShard = 1
	}
	m := &Memory{
		seed:          maphash.MakeSeed(),
		sweepInterval: cfg.SweepInterval,
		maxPerShard:   perShard,
		now:           cfg.Now,
	}
	for i := range m.shards {
		m.shards[i].entries = make(map[string]int64)
	}
	return m
}

func (m *Memory) shardFor(token string) *shard {
	return &m.shards[maphash.String(m.seed, token)%shardCount]
}

// Revoke records token with its expiry. Re-revoking keeps the later expiry.
//
// When the target shard is full, expired entries in that shard are purged
// first; the revocation is recorded even if the shard stays over its bound,
// since dropping it would make a logged-out token usable again.
func (m *Memory) Revoke(_ context.Context, token string, expiresAt time.Time) {
	exp := expiresAt.Unix()
	s := m.shardFor(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.entries[token]; ok {
		if exp > current {
			s.entries[token] = exp
		}
		return
	}
	if len(s.entries) >= m.maxPerShard {
		now := m.now().Unix()
		for key, keyExp := range s.entries {
			if keyExp < now {
				delete(s.entries, key)
			}
		}
		if len(s.entries) >= m.maxPerShard {
			log.Printf("revocation: shard over capacity entries=%d max=%d", len(s.entries), m.maxPerShard)
		}
	}
	s.entries[token] = exp
}

// IsRevoked reports whether token has been revoked. Lookups never mutate.
func (m *Memory) IsRevoked(_ context.Context, token string) bool {
	s := m.shardFor(token)
	s.mu.RLock()
	_, ok := s.entries[token]
	s.mu.RUnlock()
	return ok
}

// Len returns the number of recorded revocations.
func (m *Memory) Len() int {
	total := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Sweep removes every entry whose expiry is strictly before now and returns
// the number removed. Entries expiring exactly at now survive.
func (m *Memory) Sweep(now time.Time) int {
	cutoff := now.Unix()
	removed := 0
	for i := range m.shards {
		removed += m.shards[i].sweep(cutoff)
	}
	return removed
}

func (s *shard) sweep(cutoff int64) int {
	s.mu.RLock()
	var expired []string
	for token, exp := range s.entries {
		if exp < cutoff {
			expired = append(expired, token)
		}
	}
	s.mu.RUnlock()
	if len(expired) == 0 {
		return 0
	}

	removed := 0
	s.mu.Lock()
	for _, token := range expired {
		// A concurrent Revoke may have extended the entry since the scan.
		if exp, ok := s.entries[token]; ok && exp < cutoff {
			delete(s.entries, token)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

// Run sweeps on the configured interval until ctx is done.
func (m *Memory) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(m.now()); removed > 0 {
				log.Printf("revocation: swept %d expired entries", removed)
			}
		}
	}
}
