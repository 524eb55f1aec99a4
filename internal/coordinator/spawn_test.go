package coordinator

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joeycumines/popeye-parallel/internal/combospace"
	"github.com/joeycumines/popeye-parallel/internal/partition"
)

func TestBuildWorkerArgsAssignment(t *testing.T) {
	a, err := partition.AssignStrided(2, 4, 61440)
	assert.NoError(t, err)
	spec := workerSpec{
		order:         combospace.DefaultOrder,
		hasAssignment: true,
		assignment:    a,
	}
	args := buildWorkerArgs(spec)
	assert.Contains(t, args, "-worker")
	assert.Contains(t, args, "-partition-order")
	assert.Contains(t, args, "kpc")
	assert.Contains(t, args, "-partition-range")
	assert.Contains(t, args, "2/4/61440")
}

func TestBuildWorkerArgsSingleCombo(t *testing.T) {
	spec := workerSpec{
		order:          combospace.DefaultOrder,
		hasSingleCombo: true,
		singleCombo:    [3]int{3, 2, 5},
	}
	args := buildWorkerArgs(spec)
	wantIdx := combospace.DefaultOrder.Index(3, 2, 5)
	assert.Contains(t, args, "-single-combo")
	found := false
	for i, a := range args {
		if a == "-single-combo" {
			assert.Equal(t, strconv.Itoa(wantIdx), args[i+1])
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildWorkerArgsQueuePathTakesPrecedenceOverFirstMove(t *testing.T) {
	spec := workerSpec{
		order:     combospace.DefaultOrder,
		queuePath: "/tmp/queue.bin",
		firstMove: partition.SetFirstMove(1, 4),
	}
	args := buildWorkerArgs(spec)
	assert.Contains(t, args, "-first-move-queue")
	assert.Contains(t, args, "/tmp/queue.bin")
	assert.NotContains(t, args, "-first-move-partition")
}

func TestBuildWorkerArgsFirstMovePartition(t *testing.T) {
	spec := workerSpec{
		order:     combospace.DefaultOrder,
		firstMove: partition.SetFirstMove(1, 4),
	}
	args := buildWorkerArgs(spec)
	assert.Contains(t, args, "-first-move-partition")
	assert.Contains(t, args, "1/4")
}

