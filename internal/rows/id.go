package rows

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// millisDigits is the width of a Unix millisecond timestamp until 2286.
const millisDigits = 13

// IDGenerator issues RowIDs for one section: the prefix, the clock in
// Unix milliseconds, and a three-digit counter that starts at 1 and only
// grows. Two rows added in the same millisecond still get distinct IDs.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter int
	now     func() time.Time
}

// NewIDGenerator returns a generator for prefix using the wall clock.
func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix, now: time.Now}
}

// WithClock replaces the clock. Used by tests.
func (g *IDGenerator) WithClock(now func() time.Time) *IDGenerator {
	g.now = now
	return g
}

// Next returns a fresh RowID.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s%d%03d", g.prefix, g.now().UnixMilli(), g.counter)
}

// Observe raises the counter to the suffix of an existing RowID so later
// IDs continue past it. IDs from another prefix or in another shape are
// ignored.
func (g *IDGenerator) Observe(id string) {
	rest, ok := strings.CutPrefix(id, g.prefix)
	if !ok || len(rest) < millisDigits+3 {
		return
	}
	if _, err := strconv.ParseUint(rest, 10, 64); err != nil {
		return
	}
	n, err := strconv.Atoi(rest[millisDigits:])
	if err != nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if n > g.counter {
		g.counter = n
	}
}
