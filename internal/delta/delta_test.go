package delta

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitter_SuffixDeltas(t *testing.T) {
	e := New()

	d, ok := e.Push("Hel")
	assert.True(t, ok)
	assert.Equal(t, "Hel", d)

	d, ok = e.Push("Hello")
	assert.True(t, ok)
	assert.Equal(t, "lo", d)

	d, ok = e.Push("Hello world")
	assert.True(t, ok)
	assert.Equal(t, " world", d)

	assert.Equal(t, "Hello world", e.Final())
}

func TestEmitter_SkipsUnchangedSnapshot(t *testing.T) {
	e := New()

	_, ok := e.Push("abc")
	assert.True(t, ok)

	d, ok := e.Push("abc")
	assert.False(t, ok)
	assert.Empty(t, d)
	assert.Equal(t, "abc", e.Final())
}

func TestEmitter_ResetOnPrefixBreak(t *testing.T) {
	e := New()

	_, ok := e.Push("partial answer")
	assert.True(t, ok)

	// Snapshot no longer extends the last one: full reset.
	d, ok := e.Push("different text")
	assert.True(t, ok)
	assert.Equal(t, "different text", d)

	// Final stays concatenation-consistent with what clients received.
	assert.Equal(t, "partial answerdifferent text", e.Final())
}

func TestEmitter_EmptyStream(t *testing.T) {
	e := New()

	d, ok := e.Push("")
	assert.False(t, ok)
	assert.Empty(t, d)
	assert.Empty(t, e.Final())
}

func TestEmitter_ConcatenationMatchesFinal(t *testing.T) {
	cases := [][]string{
		{"a", "ab", "abc"},
		{"a", "ab", "xy", "xyz"}, // a reset mid-stream
		{"", "hi", "hi", "hi there"},
		{"one", "one", "two", "two four"},
	}

	for _, snapshots := range cases {
		e := New()
		var sb strings.Builder
		for _, snap := range snapshots {
			if d, ok := e.Push(snap); ok {
				sb.WriteString(d)
			}
		}
		assert.Equal(t, e.Final(), sb.String(), "snapshots %v", snapshots)
	}
}
