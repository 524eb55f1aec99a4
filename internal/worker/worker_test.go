package worker_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/popeye-parallel/internal/combospace"
	"github.com/joeycumines/popeye-parallel/internal/engine"
	"github.com/joeycumines/popeye-parallel/internal/partition"
	"github.com/joeycumines/popeye-parallel/internal/worker"
)

func TestRunEmitsProtocolSequence(t *testing.T) {
	// N/M = 1/TotalCombos: exactly one combo (index 0) matches, keeping
	// the assertions below exact instead of scanning 61440 combos' worth
	// of output.
	assignment, err := partition.AssignSimpleOneIndexed(1, combospace.TotalCombos)
	require.NoError(t, err)

	var buf bytes.Buffer
	cfg := worker.Config{
		Order:      combospace.DefaultOrder,
		Assignment: assignment,
	}
	err = worker.Run(context.Background(), cfg, engine.DemoSolver{Order: combospace.DefaultOrder}, &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "@@READY", lines[0])
	assert.Equal(t, "@@SOLVING", lines[1])
	assert.Equal(t, "@@FINISHED", lines[len(lines)-1])

	joined := buf.String()
	assert.Contains(t, joined, "@@COMBO:0(k=0,p=0,c=0)")
	assert.Contains(t, joined, "@@PROGRESS:1+0:1")
	assert.Contains(t, joined, "@@TEXT:  1.e2-e4 e7-e5 #")
}

func TestRunSingleCombo(t *testing.T) {
	var buf bytes.Buffer
	cfg := worker.Config{
		Order:          combospace.DefaultOrder,
		HasSingleCombo: true,
		SingleCombo:    engine.Combo{King: 3, Checker: 2, CheckSq: 5},
	}
	err := worker.Run(context.Background(), cfg, engine.DemoSolver{Order: combospace.DefaultOrder}, &buf)
	require.NoError(t, err)

	wantIndex := combospace.DefaultOrder.Index(3, 2, 5)
	assert.Contains(t, buf.String(), "@@COMBO:")
	assert.Contains(t, buf.String(), "k=3,p=2,c=5")
	_ = wantIndex
}

func TestRunAppliesStaticFirstMoveFilter(t *testing.T) {
	var buf bytes.Buffer
	assignment, err := partition.AssignSimpleOneIndexed(1, combospace.TotalCombos)
	require.NoError(t, err)
	cfg := worker.Config{
		Order:      combospace.DefaultOrder,
		Assignment: assignment,
		FirstMove:  partition.SetFirstMove(1, 4), // keeps only moveIdx%4==1; DemoSolver's {0,1,2,3} yields {1}
	}
	err = worker.Run(context.Background(), cfg, engine.DemoSolver{Order: combospace.DefaultOrder}, &buf)
	require.NoError(t, err)
	// Filter never empties every combo's move list entirely (moveIdx=1
	// survives), so the run still produces progress and a solution.
	assert.Contains(t, buf.String(), "@@PROGRESS:")
}

func TestRunWorkQueueIOFailureFallsBackUnfiltered(t *testing.T) {
	var buf bytes.Buffer
	assignment, err := partition.AssignSimpleOneIndexed(1, combospace.TotalCombos)
	require.NoError(t, err)
	cfg := worker.Config{
		Order:      combospace.DefaultOrder,
		Assignment: assignment,
		QueuePath:  "/nonexistent/path/to/queue.bin",
	}
	err = worker.Run(context.Background(), cfg, engine.DemoSolver{Order: combospace.DefaultOrder}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "@@DEBUG:work queue unavailable, proceeding unfiltered")
	assert.Contains(t, buf.String(), "@@FINISHED")
}

func TestRunEmptyAssignmentFinishesWithNoProgress(t *testing.T) {
	var buf bytes.Buffer
	// Start is beyond the full combo space: InPartitionIndex is false for
	// every reachable combo, so the solver is driven to completion with
	// nothing to process.
	cfg := worker.Config{
		Order:      combospace.DefaultOrder,
		Assignment: partition.Assignment{Start: combospace.TotalCombos, Stride: 1, Max: combospace.TotalCombos},
	}
	err := worker.Run(context.Background(), cfg, engine.DemoSolver{Order: combospace.DefaultOrder}, &buf)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "@@COMBO:")
	assert.Contains(t, buf.String(), "@@FINISHED")
}
