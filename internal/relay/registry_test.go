package relay

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{5}$`)

func TestAllocateConcurrentCodesDistinct(t *testing.T) {
	g := NewRegistry()

	const n = 100
	codes := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- g.Allocate(&Room{})
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool, n)
	for code := range codes {
		assert.Regexp(t, codePattern, code)
		assert.False(t, seen[code], "code %s allocated twice", code)
		seen[code] = true
	}
	assert.Equal(t, n, g.Len())
}

func TestLookupAndRelease(t *testing.T) {
	g := NewRegistry()
	room := &Room{}
	code := g.Allocate(room)

	got, ok := g.Lookup(code)
	require.True(t, ok)
	assert.Same(t, room, got)

	g.Release(code)
	_, ok = g.Lookup(code)
	assert.False(t, ok)
	assert.Equal(t, 0, g.Len())

	// Releasing an absent code is a no-op.
	g.Release(code)
	assert.Equal(t, 0, g.Len())
}

func TestReleasedCodeImmediatelyReusable(t *testing.T) {
	g := NewRegistry()
	code := g.Allocate(&Room{})
	g.Release(code)

	// The insert-if-absent primitive accepts the code again right away.
	other := &Room{}
	g.mu.Lock()
	_, taken := g.rooms[code]
	if !taken {
		g.rooms[code] = other
	}
	g.mu.Unlock()

	require.False(t, taken)
	got, ok := g.Lookup(code)
	require.True(t, ok)
	assert.Same(t, other, got)
}

func TestClearEmptiesRegistry(t *testing.T) {
	g := NewRegistry()
	for i := 0; i < 10; i++ {
		g.Allocate(&Room{})
	}
	require.Equal(t, 10, g.Len())

	g.Clear()
	assert.Equal(t, 0, g.Len())
}
