package relay

import (
	"crypto/rand"
	"sync"
)

const (
	// CodeLength is the fixed length of a room code.
	CodeLength = 5

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Registry is the process-wide code → room store. It is constructed once
// in main and injected into the dispatcher; rooms register themselves on
// creation and release their code when the last member leaves.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Allocate assigns a fresh code to the room. Insert-if-absent under the
// registry lock is the atomic primitive; on the rare collision a new
// code is generated and the insert retried, so concurrent allocations
// always end up with distinct codes.
func (g *Registry) Allocate(r *Room) string {
	for {
		code := randomCode()
		g.mu.Lock()
		if _, taken := g.rooms[code]; !taken {
			g.rooms[code] = r
			g.mu.Unlock()
			return code
		}
		g.mu.Unlock()
	}
}

// Lookup returns the room registered under code, if any.
func (g *Registry) Lookup(code string) (*Room, bool) {
	g.mu.RLock()
	r, ok := g.rooms[code]
	g.mu.RUnlock()
	return r, ok
}

// Release removes the code from the registry, making it available for a
// subsequent Allocate. Releasing an absent code is a no-op.
func (g *Registry) Release(code string) {
	g.mu.Lock()
	delete(g.rooms, code)
	g.mu.Unlock()
}

// Len reports the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Clear empties the registry. Called once at process shutdown.
func (g *Registry) Clear() {
	g.mu.Lock()
	g.rooms = make(map[string]*Room)
	g.mu.Unlock()
}

func randomCode() string {
	b := make([]byte, CodeLength)
	if _, err := rand.Read(b); err != nil {
		panic("relay: reading random bytes: " + err.Error())
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
