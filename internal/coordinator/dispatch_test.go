package coordinator

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/popeye-parallel/internal/protocol"
)

func newTestCoordinator(out *bytes.Buffer, showMoveNumbers bool, workers ...*workerRecord) *Coordinator {
	return &Coordinator{
		cfg:              Config{ShowMoveNumbers: showMoveNumbers},
		workers:          workers,
		lastPrintedDepth: -1,
		out:              out,
		startTime:        time.Now(),
	}
}

// Scenario 1 (spec.md §8): order kpc, N=2, no heavy combos. Each worker
// emits PROGRESS 1+0:3 and 1+1:7, then FINISHED. Expected: one aggregated
// line for 1+0 summing to 6, one for 1+1 summing to 14.
func TestScenario1TrivialPartitionRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w1 := newWorkerRecord("1/2", nil, nil)
	w2 := newWorkerRecord("2/2", nil, nil)
	c := newTestCoordinator(&buf, true, w1, w2)

	c.dispatch(w1, protocol.Record{Kind: protocol.KindProgress, Body: "1+0:3"})
	c.dispatch(w2, protocol.Record{Kind: protocol.KindProgress, Body: "1+0:3"})
	c.dispatch(w1, protocol.Record{Kind: protocol.KindProgress, Body: "1+1:7"})
	c.dispatch(w2, protocol.Record{Kind: protocol.KindProgress, Body: "1+1:7"})

	out := buf.String()
	assert.Contains(t, out, "@@PROGRESS:1+0:6")
	assert.Contains(t, out, "@@PROGRESS:1+1:14")
	// Exactly two aggregated lines: no zero-total filler lines for the
	// gap between depth encodings.
	assert.Equal(t, 2, bytes.Count([]byte(out), []byte("@@PROGRESS:")))
}

// Scenario 2 (spec.md §8): N=4, solution cap 1. A TEXT solution header
// reaches the cap; dispatch reports capReached so the caller SIGTERMs.
func TestScenario2CapStopsWorkers(t *testing.T) {
	var buf bytes.Buffer
	c := newTestCoordinator(&buf, false)
	c.cfg.SolutionCap = 1

	capReached := c.dispatch(nil, protocol.Record{Kind: protocol.KindText, Body: "  1.e2-e4 e7-e5 #"})
	require.True(t, capReached)
	assert.Equal(t, 1, c.solutionsFound)
	assert.Contains(t, buf.String(), "1.e2-e4 e7-e5 #")
}

func TestDispatchTextBelowCapDoesNotTerminate(t *testing.T) {
	var buf bytes.Buffer
	c := newTestCoordinator(&buf, false)
	c.cfg.SolutionCap = 2

	capReached := c.dispatch(nil, protocol.Record{Kind: protocol.KindText, Body: "1.d2-d4 d7-d5 #"})
	assert.False(t, capReached)
	assert.Equal(t, 1, c.solutionsFound)
}

func TestDispatchTextNonSolutionIgnoredForCap(t *testing.T) {
	var buf bytes.Buffer
	c := newTestCoordinator(&buf, false)
	c.cfg.SolutionCap = 1

	capReached := c.dispatch(nil, protocol.Record{Kind: protocol.KindText, Body: "not a solution header"})
	assert.False(t, capReached)
	assert.Equal(t, 0, c.solutionsFound)
	assert.Contains(t, buf.String(), "not a solution header")
}

func TestDispatchComboStoresLabel(t *testing.T) {
	var buf bytes.Buffer
	w := newWorkerRecord("1/1", nil, nil)
	c := newTestCoordinator(&buf, false, w)
	c.dispatch(w, protocol.Record{Kind: protocol.KindCombo, Body: "30212"})
	assert.Equal(t, "30212", w.currentCombo)
}

func TestDispatchOpaqueSuppressesNoise(t *testing.T) {
	var buf bytes.Buffer
	c := newTestCoordinator(&buf, false)
	c.dispatch(nil, protocol.Record{Kind: protocol.KindUnknown, Opaque: "   "})
	c.dispatch(nil, protocol.Record{Kind: protocol.KindUnknown, Opaque: "ser-H#2"})
	c.dispatch(nil, protocol.Record{Kind: protocol.KindUnknown, Opaque: "  ser-H#2"})
	c.dispatch(nil, protocol.Record{Kind: protocol.KindUnknown, Opaque: "solution finished"})
	assert.Empty(t, buf.String())

	c.dispatch(nil, protocol.Record{Kind: protocol.KindUnknown, Opaque: "some real output"})
	assert.Contains(t, buf.String(), "some real output")
}

// P3/P4: lastPrintedDepth and each worker's lastDepth only advance.
func TestFrontierMonotonicity(t *testing.T) {
	var buf bytes.Buffer
	w1 := newWorkerRecord("1/1", nil, nil)
	c := newTestCoordinator(&buf, true, w1)

	depths := []string{"1+0:1", "1+1:2", "2+0:3"}
	var lastPrinted int
	for _, d := range depths {
		c.dispatch(w1, protocol.Record{Kind: protocol.KindProgress, Body: d})
		assert.GreaterOrEqual(t, c.lastPrintedDepth, lastPrinted)
		lastPrinted = c.lastPrintedDepth
	}
}

func TestFrontierGatedByShowMoveNumbers(t *testing.T) {
	var buf bytes.Buffer
	w1 := newWorkerRecord("1/1", nil, nil)
	c := newTestCoordinator(&buf, false, w1)

	c.dispatch(w1, protocol.Record{Kind: protocol.KindProgress, Body: "1+0:3"})
	assert.Empty(t, buf.String())
	// State is still retained even though nothing was printed.
	assert.Equal(t, 100, w1.lastDepth)
}

func TestMalformedProgressIgnored(t *testing.T) {
	var buf bytes.Buffer
	w1 := newWorkerRecord("1/1", nil, nil)
	c := newTestCoordinator(&buf, true, w1)
	c.dispatch(w1, protocol.Record{Kind: protocol.KindProgress, Body: "garbage"})
	assert.Equal(t, -1, w1.lastDepth)
}
