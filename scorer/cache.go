package scorer

import "sync"

// ScoreCache memoizes scores obtained from successful endpoint calls. It has
// no eviction, capacity bound or TTL and is safe for concurrent use.
//
// A cache only spans the process it lives in. With the process backend every
// worker process starts from an empty cache, so identical lines in different
// chunks may each be sent to the endpoint.
type ScoreCache struct {
	mu     sync.RWMutex
	scores map[string]int64
}

// NewScoreCache creates an empty cache
func NewScoreCache() *ScoreCache {
	return &ScoreCache{scores: make(map[string]int64)}
}

// Get returns the cached score for line, if any
func (c *ScoreCache) Get(line string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	score, ok := c.scores[line]
	return score, ok
}

// Put stores score for line, overwriting any previous value
func (c *ScoreCache) Put(line string, score int64) {
	c.mu.Lock()
	c.scores[line] = score
	c.mu.Unlock()
}

// Len returns the number of cached lines
func (c *ScoreCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scores)
}
