package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 5 (spec.md §8): "XYZ@@PROGRESS:2+3:100\nTRAIL" decodes
// PROGRESS(2,3,100); "TRAIL" stays buffered until newline or EOF.
func TestFramerMalformedFrameScenario5(t *testing.T) {
	var f Framer
	recs := f.Feed([]byte("XYZ@@PROGRESS:2+3:100\nTRAIL"))
	require.Len(t, recs, 1)
	assert.Equal(t, KindProgress, recs[0].Kind)
	assert.Equal(t, "2+3:100", recs[0].Body)

	// Nothing yet for "TRAIL": no newline seen.
	more := f.Feed(nil)
	assert.Empty(t, more)

	rec, ok := f.Flush()
	require.True(t, ok)
	assert.Equal(t, KindUnknown, rec.Kind)
	assert.Equal(t, "TRAIL", rec.Opaque)
}

func TestFramerSplitAcrossReads(t *testing.T) {
	var f Framer
	recs := f.Feed([]byte("@@REA"))
	assert.Empty(t, recs)
	recs = f.Feed([]byte("DY\n@@FINISHED\n"))
	require.Len(t, recs, 2)
	assert.Equal(t, KindReady, recs[0].Kind)
	assert.Equal(t, KindFinished, recs[1].Kind)
}

func TestFramerStripsCarriageReturn(t *testing.T) {
	var f Framer
	recs := f.Feed([]byte("@@READY\r\n"))
	require.Len(t, recs, 1)
	assert.Equal(t, KindReady, recs[0].Kind)
}

// B3: an oversize (>=8KiB) line is still delivered, truncated, with no
// hang (Feed never blocks; it's pure buffering).
func TestFramerOversizeLineTruncated(t *testing.T) {
	var f Framer
	huge := strings.Repeat("x", MaxLineBytes+500)
	recs := f.Feed([]byte(huge))
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Truncated)
	assert.Equal(t, KindUnknown, recs[0].Kind)

	// Remaining 500 bytes stay buffered until a newline arrives.
	more := f.Feed([]byte("\n"))
	require.Len(t, more, 1)
	assert.False(t, more[0].Truncated)
}

func TestFramerFlushEmpty(t *testing.T) {
	var f Framer
	_, ok := f.Flush()
	assert.False(t, ok)
}

func TestFramerMultipleFramesOneRead(t *testing.T) {
	var f Framer
	recs := f.Feed([]byte("@@PROGRESS:1+0:3\n@@PROGRESS:1+1:7\n@@FINISHED\n"))
	require.Len(t, recs, 3)
	assert.Equal(t, KindProgress, recs[0].Kind)
	assert.Equal(t, KindProgress, recs[1].Kind)
	assert.Equal(t, KindFinished, recs[2].Kind)
}
