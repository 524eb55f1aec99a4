package coordinator

import (
	"os"
	"os/exec"

	"github.com/joeycumines/popeye-parallel/internal/protocol"
)

// depthSlots bounds the per-worker positions-at-depth table: 100 values of
// m times 100 values of k (spec.md §5's "10 000 slots per worker",
// assuming m, k < 100 — an accepted simplification per spec.md §9).
const depthSlots = 10000

// workerRecord is the coordinator-side bookkeeping for one spawned child
// (spec.md §3's "Worker record").
type workerRecord struct {
	pid    int
	cmd    *exec.Cmd
	readFD *os.File

	partitionID string

	framer *protocol.Framer

	finished bool

	lastDepth        int
	positionsAtDepth [depthSlots]uint64
	haveDepth        [depthSlots]bool

	currentCombo string
}

// newWorkerRecord constructs a record with lastDepth initialized to -1, a
// sentinel advanceFrontier's "< 0" checks rely on to mean "no progress
// reported yet" (depth 0 is itself a valid reported depth).
func newWorkerRecord(partitionID string, cmd *exec.Cmd, readFD *os.File) *workerRecord {
	return &workerRecord{
		partitionID: partitionID,
		cmd:         cmd,
		readFD:      readFD,
		framer:      &protocol.Framer{},
		lastDepth:   -1,
	}
}
