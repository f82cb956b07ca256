package events

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	updates []string
	infos   []string
}

func (c *captureSink) Info(_, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infos = append(c.infos, message)
}

func (c *captureSink) Update(_, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, message)
}

func (c *captureSink) Error(string, string) {}
func (c *captureSink) Finish(string, bool)  {}
func (c *captureSink) Apps(interface{})     {}

func TestProgressThrottlesKnownTotal(t *testing.T) {
	sink := &captureSink{}
	p := NewProgress(sink, "demo", "downloading", 1_000_000)

	for i := 0; i < 1000; i++ {
		p.Add(1000)
	}

	// One byte per call would be one event per 0.1%; chunked writes still may
	// not exceed that.
	assert.LessOrEqual(t, len(sink.updates), 1001)
	require.NotEmpty(t, sink.updates)
	assert.Contains(t, sink.updates[len(sink.updates)-1], "100.0%")

	// Percentages never repeat and never go backwards.
	seen := map[string]bool{}
	for _, u := range sink.updates {
		assert.False(t, seen[u], "duplicate update %q", u)
		seen[u] = true
	}
}

func TestProgressUnknownTotalIsRateLimited(t *testing.T) {
	sink := &captureSink{}
	p := NewProgress(sink, "demo", "downloading", 0)

	for i := 0; i < 10_000; i++ {
		p.Add(100)
	}

	// The limiter admits one burst token; a tight loop cannot emit more than a
	// couple of events.
	assert.LessOrEqual(t, len(sink.updates), 3)
	for _, u := range sink.updates {
		assert.True(t, strings.HasPrefix(u, "downloading: "))
	}
}

func TestProgressDoneReportsTotal(t *testing.T) {
	sink := &captureSink{}
	p := NewProgress(sink, "demo", "downloading", 2048)

	n, err := p.Write(make([]byte, 2048))
	require.NoError(t, err)
	assert.Equal(t, 2048, n)

	p.Done()
	require.Len(t, sink.infos, 1)
	assert.Contains(t, sink.infos[0], "2.0 KB")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "1.5 MB", formatBytes(3<<19))
	assert.Equal(t, "2.0 GB", formatBytes(2<<30))
}
