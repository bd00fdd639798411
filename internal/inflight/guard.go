// Package inflight provides a keyed single-flight latch: while a key is held,
// further attempts on the same key are refused rather than queued.
package inflight

import "sync"

type Guard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func New() *Guard { return &Guard{keys: map[string]struct{}{}} }

// TryAcquire returns ok=false if key is already held. release is idempotent.
func (g *Guard) TryAcquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys == nil {
		g.keys = map[string]struct{}{}
	}
	if _, busy := g.keys[key]; busy {
		return func() {}, false
	}
	g.keys[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.keys, key)
			g.mu.Unlock()
		})
	}, true
}

func (g *Guard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.keys[key]
	return busy
}
