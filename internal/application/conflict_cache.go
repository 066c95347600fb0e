package application

import (
	"strings"
	"sync"
	"time"

	"github.com/example/fieldservice-scheduler/internal/scheduler"
	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// conflictCache stores recently computed conflict lists so repeated probes
// for the same technician/date/window (a drag hovering over one slot fires
// many) skip the detector while the schedule is unchanged. Any appointment
// mutation invalidates the whole cache.
type conflictCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]conflictCacheEntry
}

type conflictCacheEntry struct {
	conflicts []scheduler.Conflict
	expiresAt time.Time
}

func newConflictCache(ttl time.Duration, maxEntries int, now func() time.Time) *conflictCache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &conflictCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]conflictCacheEntry),
	}
}

func (c *conflictCache) Get(key string) ([]scheduler.Conflict, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return cloneConflicts(entry.conflicts), true
}

func (c *conflictCache) Store(key string, conflicts []scheduler.Conflict) {
	if c == nil {
		return
	}
	cloned := cloneConflicts(conflicts)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = conflictCacheEntry{conflicts: cloned, expiresAt: expiry}
}

func (c *conflictCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]conflictCacheEntry)
	c.mu.Unlock()
}

func (c *conflictCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *conflictCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneConflicts(conflicts []scheduler.Conflict) []scheduler.Conflict {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]scheduler.Conflict, len(conflicts))
	copy(out, conflicts)
	return out
}

func buildConflictCacheKey(technicianID string, date timeutil.Date, start, end timeutil.Clock, excludeID string) string {
	builder := strings.Builder{}
	builder.WriteString(technicianID)
	builder.WriteString("|")
	builder.WriteString(date.String())
	builder.WriteString("|")
	builder.WriteString(start.String())
	builder.WriteString("|")
	builder.WriteString(end.String())
	builder.WriteString("|")
	builder.WriteString(excludeID)
	return builder.String()
}
