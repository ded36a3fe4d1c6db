package assignment

import "sync"

// clientGuard admits one in-flight operation per client.
type clientGuard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func newClientGuard() *clientGuard {
	return &clientGuard{busy: make(map[string]struct{})}
}

// acquire returns a release func, or false when the client is busy.
func (g *clientGuard) acquire(clinicID, clientID string) (func(), bool) {
	k := clinicID + "/" + clientID

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[k]; ok {
		return nil, false
	}
	g.busy[k] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, k)
			g.mu.Unlock()
		})
	}, true
}
