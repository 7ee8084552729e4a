// Package diag collects diagnostic lines emitted by the page (console
// warnings and errors) and scans them, and rendered error banners, for the
// known failure signatures of the target application.
package diag

import (
	"strings"
	"sync"
)

// Line is one captured diagnostic message.
type Line struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Queue is an append-only buffer fed by the browser's console listener and
// drained by the capture engine. It is safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	lines []Line
	max   int
}

// DefaultQueueSize caps the number of buffered lines; older lines are
// dropped first.
const DefaultQueueSize = 512

// NewQueue returns a queue holding at most max lines. max <= 0 selects
// DefaultQueueSize.
func NewQueue(max int) *Queue {
	if max <= 0 {
		max = DefaultQueueSize
	}
	return &Queue{max: max}
}

// Push appends a line.
func (q *Queue) Push(level, text string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.max <= 0 {
		q.max = DefaultQueueSize
	}
	q.lines = append(q.lines, Line{Level: level, Text: text})
	if over := len(q.lines) - q.max; over > 0 {
		q.lines = append(q.lines[:0], q.lines[over:]...)
	}
}

// Drain returns and removes every buffered line.
func (q *Queue) Drain() []Line {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.lines
	q.lines = nil
	return out
}

// Len reports the number of buffered lines.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines)
}

// DefaultSignatures are substrings the target application is known to emit
// when a page failed to render.
var DefaultSignatures = []string{
	"Failed to mount component",
	"ChunkLoadError",
	"Loading chunk",
	"Cannot read properties of undefined",
	"Cannot read properties of null",
	"is not a function",
	"Uncaught (in promise)",
	"Internal Server Error",
}

// DefaultLevels are the console levels scanned for signatures.
var DefaultLevels = []string{"error", "warning", "warn"}

// Scanner matches text against failure signatures. The zero value matches
// nothing.
type Scanner struct {
	Signatures []string
	Levels     []string
}

// NewScanner returns a scanner for the given signatures, or the defaults
// when none are given.
func NewScanner(signatures ...string) Scanner {
	if len(signatures) == 0 {
		signatures = DefaultSignatures
	}
	return Scanner{Signatures: signatures, Levels: DefaultLevels}
}

// Match returns the first signature contained in text, case-insensitively.
func (s Scanner) Match(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, sig := range s.Signatures {
		if sig != "" && strings.Contains(lower, strings.ToLower(sig)) {
			return sig, true
		}
	}
	return "", false
}

// Scan returns the first line at a scanned level that carries a signature.
func (s Scanner) Scan(lines []Line) (Line, string, bool) {
	for _, l := range lines {
		if !s.scansLevel(l.Level) {
			continue
		}
		if sig, ok := s.Match(l.Text); ok {
			return l, sig, true
		}
	}
	return Line{}, "", false
}

func (s Scanner) scansLevel(level string) bool {
	if len(s.Levels) == 0 {
		return true
	}
	for _, l := range s.Levels {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}
