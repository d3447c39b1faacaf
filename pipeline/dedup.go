package pipeline

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

// DedupWindow is how long a message identity suppresses repeat deliveries.
const DedupWindow = 10 * time.Second

// identityTextLen caps how much of the message text feeds the identity.
// Together with second-granularity timestamps this means two different
// messages from the same user in the same second sharing 100 leading
// characters collapse into one. That false positive is accepted.
const identityTextLen = 100

// Identity is the dedup key derived from a message.
type Identity uint64

// MessageIdentity hashes (channel, user, truncated text, second-rounded
// receive time) into a dedup key.
func MessageIdentity(channel, userID, text string, receivedAt time.Time) Identity {
	runes := []rune(text)
	if len(runes) > identityTextLen {
		runes = runes[:identityTextLen]
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(channel))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(string(runes)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.FormatInt(receivedAt.Round(time.Second).Unix(), 10)))
	return Identity(h.Sum64())
}

// DedupFilter suppresses re-delivery of the same logical message inside the
// dedup window. Callers must MarkProcessed immediately after a positive
// ShouldProcess, before any further work, to close the window between two
// near-simultaneous deliveries.
type DedupFilter struct {
	mu     sync.Mutex
	seen   map[Identity]time.Time
	window time.Duration
	now    func() time.Time
}

// NewDedupFilter builds a filter with the standard window.
func NewDedupFilter() *DedupFilter {
	return &DedupFilter{
		seen:   make(map[Identity]time.Time),
		window: DedupWindow,
		now:    time.Now,
	}
}

// ShouldProcess reports whether the identity is unseen (or expired).
func (d *DedupFilter) ShouldProcess(id Identity) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.seen[id]
	return !ok || d.now().Sub(last) >= d.window
}

// MarkProcessed records the identity as seen now.
func (d *DedupFilter) MarkProcessed(id Identity) {
	d.mu.Lock()
	d.seen[id] = d.now()
	d.mu.Unlock()
}

// Sweep purges identities older than the window.
func (d *DedupFilter) Sweep() {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, last := range d.seen {
		if now.Sub(last) >= d.window {
			delete(d.seen, id)
		}
	}
}

// Len reports tracked identities.
func (d *DedupFilter) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
