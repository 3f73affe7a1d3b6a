package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedAll pushes chunks through a splitter and returns the concatenated
// visible output, including the Close remainder.
func feedAll(sp *Splitter, chunks ...string) string {
	var out strings.Builder
	for _, chunk := range chunks {
		out.WriteString(sp.Feed(chunk))
	}
	out.WriteString(sp.Close())
	return out.String()
}

func TestSplitterPassThrough(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
	}{
		{"single chunk", []string{"hello world, nothing hidden here at all"}},
		{"many small chunks", []string{"he", "llo ", "wor", "ld and ", "more text after the lookahead"}},
		{"short stream", []string{"hi"}},
		{"empty chunks", []string{"", "hello", "", " world"}},
		{"angle brackets but no marker", []string{"a < b and <other> tags ", "pass through untouched"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := NewSplitter("", "", DefaultLookahead)
			got := feedAll(sp, tt.chunks...)
			assert.Equal(t, strings.Join(tt.chunks, ""), got)
			assert.Empty(t, sp.Hidden())
		})
	}
}

func TestSplitterNoDuplication(t *testing.T) {
	// Once the lookahead decision is made, later chunks must come back
	// verbatim exactly once.
	sp := NewSplitter("", "", 10)
	var outputs []string
	for _, chunk := range []string{"0123456789", "abc", "def"} {
		outputs = append(outputs, sp.Feed(chunk))
	}
	assert.Equal(t, []string{"0123456789", "abc", "def"}, outputs)
}

func TestSplitterSinglePair(t *testing.T) {
	sp := NewSplitter("", "", DefaultLookahead)
	got := feedAll(sp, "Hello <thinking>secret reasoning</thinking>World")
	assert.Equal(t, "Hello World", got)
	assert.Equal(t, "secret reasoning", sp.Hidden())
}

func TestSplitterChunkBoundaryIndependence(t *testing.T) {
	const input = "A<thinking>B</thinking>C tail text"

	splits := [][]string{
		{input},
		{"A<", "thinking>B</thin", "king>C tail text"},
		{"A", "<thinking>", "B", "</thinking>", "C tail text"},
		{"A<thinking>B</t", "h", "i", "nking>C", " tail text"},
	}

	// Every one-byte split as well.
	var bytewise []string
	for i := 0; i < len(input); i++ {
		bytewise = append(bytewise, input[i:i+1])
	}
	splits = append(splits, bytewise)

	for _, chunks := range splits {
		sp := NewSplitter("", "", DefaultLookahead)
		assert.Equal(t, "AC tail text", feedAll(sp, chunks...), "chunks=%q", chunks)
		assert.Equal(t, "B", sp.Hidden())
	}
}

func TestSplitterMarkerScenario(t *testing.T) {
	// Lookahead shorter than the first chunk: "Hello " must flush before the
	// marker chunk arrives.
	sp := NewSplitter("<think>", "</think>", 5)

	var out strings.Builder
	out.WriteString(sp.Feed("Hello "))
	out.WriteString(sp.Feed("<think>reasoning here</think>"))
	out.WriteString(sp.Feed("World"))
	out.WriteString(sp.Close())

	assert.Equal(t, "Hello World", out.String())
	assert.Equal(t, "reasoning here", sp.Hidden())
}

func TestSplitterUnterminatedMarkerDropped(t *testing.T) {
	sp := NewSplitter("", "", DefaultLookahead)
	got := feedAll(sp, "visible start <thinking>never closed and still going on")
	assert.Equal(t, "visible start ", got)
	assert.Empty(t, sp.Hidden(), "unterminated hidden text must never surface")
}

func TestSplitterLastCompletePairWins(t *testing.T) {
	sp := NewSplitter("", "", DefaultLookahead)
	got := feedAll(sp, "x<thinking>first<thinking>second</thinking>rest")
	assert.Equal(t, "xrest", got)
	assert.Equal(t, "second", sp.Hidden())
}

func TestSplitterShortStreamFlushedOnClose(t *testing.T) {
	// Stream ends before the lookahead fills: Close must flush the buffer.
	sp := NewSplitter("", "", DefaultLookahead)
	require.Empty(t, sp.Feed("hi"))
	assert.Equal(t, "hi", sp.Close())
}

func TestSplitterMarkerInsideShortStream(t *testing.T) {
	sp := NewSplitter("<t>", "</t>", 50)
	require.Empty(t, sp.Feed("a<t>b</t>c"))
	assert.Equal(t, "ac", sp.Close())
	assert.Equal(t, "b", sp.Hidden())
}

func TestSplitterReset(t *testing.T) {
	sp := NewSplitter("", "", DefaultLookahead)
	feedAll(sp, "one <thinking>hidden</thinking> two")
	require.Equal(t, "hidden", sp.Hidden())

	sp.Reset()
	assert.Empty(t, sp.Hidden())
	assert.Equal(t, "fresh stream with no markers at all", feedAll(sp, "fresh stream with no markers at all"))
}

func TestSplitterLookaheadRaisedToDelimiter(t *testing.T) {
	// A lookahead smaller than the open delimiter could never match it.
	sp := NewSplitter("<thinking>", "</thinking>", 3)
	got := feedAll(sp, "<thinking>h</thinking>after")
	assert.Equal(t, "after", got)
	assert.Equal(t, "h", sp.Hidden())
}
