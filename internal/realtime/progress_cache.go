package realtime

import (
	"strings"
	"sync"
	"time"
)

const progressChannelPrefix = "progress:"

// ProgressCache keeps the last progress payload seen on the bus for each
// file, so an instance that is not running an upload can still report it.
// Terminal entries are dropped after ttl.
type ProgressCache struct {
	mu   sync.Mutex
	last map[string]cachedProgress
	seq  uint64
	ttl  time.Duration
}

type cachedProgress struct {
	data any
	gen  uint64
}

func NewProgressCache(ttl time.Duration) *ProgressCache {
	return &ProgressCache{last: make(map[string]cachedProgress), ttl: ttl}
}

// Observe records msg if it is a progress event. Other messages are ignored.
func (c *ProgressCache) Observe(msg SSEMessage) {
	if c == nil || msg.Event != SSEEventProgress || !strings.HasPrefix(msg.Channel, progressChannelPrefix) {
		return
	}
	fileID := strings.TrimPrefix(msg.Channel, progressChannelPrefix)
	if fileID == "" {
		return
	}
	c.mu.Lock()
	c.seq++
	gen := c.seq
	c.last[fileID] = cachedProgress{data: msg.Data, gen: gen}
	c.mu.Unlock()

	if IsTerminalProgress(msg) {
		time.AfterFunc(c.ttl, func() { c.expire(fileID, gen) })
	}
}

// LastProgress returns the most recent payload for fileID.
func (c *ProgressCache) LastProgress(fileID string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.last[fileID]
	return e.data, ok
}

func (c *ProgressCache) expire(fileID string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.last[fileID]; ok && e.gen == gen {
		delete(c.last, fileID)
	}
}

// Forward records msg and hands it to next. It is the bus forwarder callback
// on every instance.
func (c *ProgressCache) Forward(next func(SSEMessage)) func(SSEMessage) {
	return func(m SSEMessage) {
		c.Observe(m)
		next(m)
	}
}
