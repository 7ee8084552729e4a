package diag_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/navshot/internal/diag"
)

func TestQueueDrain(t *testing.T) {
	q := diag.NewQueue(0)
	q.Push("error", "boom")
	q.Push("log", "hello")
	assert.Equal(t, 2, q.Len())

	lines := q.Drain()
	assert.Equal(t, []diag.Line{{Level: "error", Text: "boom"}, {Level: "log", Text: "hello"}}, lines)
	assert.Empty(t, q.Drain())
}

func TestQueueBounded(t *testing.T) {
	q := diag.NewQueue(3)
	for i := 0; i < 5; i++ {
		q.Push("log", fmt.Sprint(i))
	}
	lines := q.Drain()
	require.Len(t, lines, 3)
	assert.Equal(t, "2", lines[0].Text)
	assert.Equal(t, "4", lines[2].Text)
}

func TestQueueConcurrentPush(t *testing.T) {
	q := diag.NewQueue(1000)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Push("warning", "x")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, q.Len())
}

func TestScannerMatch(t *testing.T) {
	s := diag.NewScanner()
	sig, ok := s.Match("[Vue warn]: failed to mount component: template or render function not defined")
	assert.True(t, ok)
	assert.Equal(t, "Failed to mount component", sig)

	_, ok = s.Match("Download the devtools extension")
	assert.False(t, ok)

	_, ok = diag.Scanner{}.Match("ChunkLoadError")
	assert.False(t, ok, "zero scanner matches nothing")
}

func TestScannerScanHonoursLevels(t *testing.T) {
	s := diag.NewScanner()
	lines := []diag.Line{
		{Level: "log", Text: "ChunkLoadError mentioned in a debug log"},
		{Level: "error", Text: "TypeError: Cannot read properties of undefined (reading 'id')"},
	}
	line, sig, ok := s.Scan(lines)
	require.True(t, ok)
	assert.Equal(t, "error", line.Level)
	assert.Equal(t, "Cannot read properties of undefined", sig)

	custom := diag.NewScanner("quota exceeded")
	custom.Levels = nil
	_, sig, ok = custom.Scan([]diag.Line{{Level: "info", Text: "Storage QUOTA EXCEEDED"}})
	assert.True(t, ok)
	assert.Equal(t, "quota exceeded", sig)
}
