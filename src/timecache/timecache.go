package timecache

import (
	"context"
	"fmt"
	"sync"

	"umap-replay/src/interfaces"
	"umap-replay/src/logger"
)

// -----------------------------------------------------------------------------
// TimeCache
// -----------------------------------------------------------------------------

// TimeCache memoizes time-step -> display-label lookups and de-duplicates
// concurrent lookups for the same step. Entries are never evicted; the step
// space is bounded by the trading calendar. The cache lives for the whole
// process: construction is init, Clear is teardown.
type TimeCache struct {
	Backend interfaces.IBackendClient
	Logger  *logger.Logger

	mu       sync.Mutex
	cache    map[int]string
	inflight map[int]*pendingLookup
}

// pendingLookup is one outstanding backend call; concurrent callers for the
// same step block on done and share the eventual label.
type pendingLookup struct {
	done  chan struct{}
	label string
}

// Bound for LookupMany fan-out.
const maxConcurrentLookups = 8

// -----------------------------------------------------------------------------

func NewTimeCache(backend interfaces.IBackendClient, log *logger.Logger) *TimeCache {
	return &TimeCache{
		Backend:  backend,
		Logger:   log,
		cache:    make(map[int]string),
		inflight: make(map[int]*pendingLookup),
	}
}

// -----------------------------------------------------------------------------

// FallbackLabel is what a step renders as when the backend cannot be asked.
func FallbackLabel(timeStep int) string {
	return fmt.Sprintf("time step %d", timeStep)
}

// -----------------------------------------------------------------------------

// Lookup returns the display label for a step. Cached steps return
// immediately; a step with an outstanding call shares that call's result;
// otherwise exactly one backend call is issued. On failure the fallback
// label is returned and NOT cached, so a later call may retry.
func (c *TimeCache) Lookup(ctx context.Context, timeStep int) string {
	c.mu.Lock()
	if label, ok := c.cache[timeStep]; ok {
		c.mu.Unlock()
		return label
	}
	if p, ok := c.inflight[timeStep]; ok {
		c.mu.Unlock()
		<-p.done
		return p.label
	}

	p := &pendingLookup{done: make(chan struct{})}
	c.inflight[timeStep] = p
	c.mu.Unlock()

	label, err := c.Backend.LookupTime(ctx, timeStep)
	if err != nil {
		c.Logger.Debug("time lookup for step %d failed, using fallback: %v", timeStep, err)
		p.label = FallbackLabel(timeStep)
	} else {
		p.label = label
	}

	c.mu.Lock()
	// Identity check: if Clear ran while the call was out, this entry is no
	// longer ours and the result must not be stored.
	if cur, ok := c.inflight[timeStep]; ok && cur == p {
		delete(c.inflight, timeStep)
		if err == nil {
			c.cache[timeStep] = label
		}
	}
	c.mu.Unlock()

	close(p.done)
	return p.label
}

// -----------------------------------------------------------------------------

// LookupMany fans out Lookup for each distinct step concurrently and collects
// the results keyed by step.
func (c *TimeCache) LookupMany(ctx context.Context, timeSteps []int) map[int]string {
	distinct := make(map[int]struct{}, len(timeSteps))
	for _, step := range timeSteps {
		distinct[step] = struct{}{}
	}

	results := make(map[int]string, len(distinct))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentLookups)

	for step := range distinct {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			label := c.Lookup(ctx, s)
			mu.Lock()
			results[s] = label
			mu.Unlock()
		}(step)
	}

	wg.Wait()
	return results
}

// -----------------------------------------------------------------------------

// Clear drops all cached entries and the in-flight table. Already-issued
// backend calls are not cancelled; their results are simply not stored.
func (c *TimeCache) Clear() {
	c.mu.Lock()
	c.cache = make(map[int]string)
	c.inflight = make(map[int]*pendingLookup)
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Size reports the number of cached labels (health endpoint).
func (c *TimeCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}
