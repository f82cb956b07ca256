package events

import (
	"fmt"
	"math"

	"golang.org/x/time/rate"
)

// Progress throttles transfer notifications so long downloads do not saturate
// the sink. When the total size is known, an event is published roughly every
// 0.1% of it; when unknown, events are rate-limited instead.
type Progress struct {
	sink        Sink
	app         string
	prefix      string
	total       int64
	done        int64
	lastPercent float64
	limiter     *rate.Limiter
}

// NewProgress creates a progress reporter for one transfer. A total of 0 or
// less means the size is unknown.
func NewProgress(sink Sink, app, prefix string, total int64) *Progress {
	return &Progress{
		sink:        sink,
		app:         app,
		prefix:      prefix,
		total:       total,
		lastPercent: -1,
		limiter:     rate.NewLimiter(rate.Limit(4), 1),
	}
}

// Add records n more transferred bytes and publishes a throttled update.
func (p *Progress) Add(n int) {
	p.done += int64(n)

	if p.total > 0 {
		percent := float64(p.done) * 100 / float64(p.total)
		rounded := math.Round(percent*10) / 10
		if rounded-p.lastPercent >= 0.1 || p.done == p.total {
			p.sink.Update(p.app, fmt.Sprintf("%s: %.1f%% (%s / %s)",
				p.prefix, rounded, formatBytes(p.done), formatBytes(p.total)))
			p.lastPercent = rounded
		}
		return
	}

	if p.limiter.Allow() {
		p.sink.Update(p.app, fmt.Sprintf("%s: %s received...", p.prefix, formatBytes(p.done)))
	}
}

// Done publishes the final line for the transfer.
func (p *Progress) Done() {
	p.sink.Info(p.app, fmt.Sprintf("%s: complete (%s)", p.prefix, formatBytes(p.done)))
}

// Write implements io.Writer so a Progress can count a stream directly.
func (p *Progress) Write(b []byte) (int, error) {
	p.Add(len(b))
	return len(b), nil
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/float64(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
