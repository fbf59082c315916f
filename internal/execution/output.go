package execution

import (
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// TruncatedMarker is appended to a stream that exceeded the output limit.
const TruncatedMarker = "\noutput truncated by katarunner"

// DefaultMaxOutput bounds each captured stream.
const DefaultMaxOutput = 10 * 1024

var cleaner = transform.Chain(
	runes.ReplaceIllFormed(),
	runes.Remove(runes.Predicate(func(r rune) bool {
		return unicode.IsControl(r) && r != '\n' && r != '\t'
	})),
)

// Sanitize replaces invalid UTF-8 and strips control characters other than
// newline and tab.
func Sanitize(s string) string {
	out, _, err := transform.String(cleaner, s)
	if err != nil {
		return ""
	}
	return out
}

// capture keeps at most limit bytes of a stream and remembers whether more
// arrived. It is written by a pipe reader and read after the run.
type capture struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func newCapture(limit int) *capture {
	return &capture{limit: limit}
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.limit - len(c.buf)
	if room <= 0 {
		if len(p) > 0 {
			c.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		c.buf = append(c.buf, p[:room]...)
		c.truncated = true
		return len(p), nil
	}
	c.buf = append(c.buf, p...)
	return len(p), nil
}

// String returns the sanitized, bounded contents.
func (c *capture) String() string {
	c.mu.Lock()
	raw, truncated := string(c.buf), c.truncated
	c.mu.Unlock()

	out := Sanitize(raw)
	if truncated {
		out += TruncatedMarker
	}
	return out
}
