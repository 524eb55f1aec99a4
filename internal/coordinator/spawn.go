package coordinator

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/joeycumines/popeye-parallel/internal/combospace"
	"github.com/joeycumines/popeye-parallel/internal/logging"
	"github.com/joeycumines/popeye-parallel/internal/partition"
)

// workerSpec is everything needed to launch one child via the re-exec
// pattern: the coordinator's own binary, invoked with -worker plus flags
// that reproduce a worker.Config. Go has no portable raw fork(); re-exec of
// argv[0] under a fresh command is the idiomatic stand-in (spec.md §9).
type workerSpec struct {
	order          combospace.Order
	assignment     partition.Assignment
	hasAssignment  bool
	hasSingleCombo bool
	singleCombo    [3]int // king, checker, checkSq
	firstMove      partition.FirstMoveRule
	queuePath      string
	label          string // diagnostic partition id, e.g. "1/4" or "queue#2"
}

// spawnedWorker bundles the process handle with its record.
type spawnedWorker struct {
	record *workerRecord
}

// spawn forks (re-execs) one worker, wiring its stdout+stderr to a pipe the
// coordinator reads from. Returns nil and logs (does not error the whole
// phase) on fork/pipe failure, per spec.md §4.7: "Tolerate per-worker
// fork/pipe failures (log, continue; count only successful workers as
// active)".
func spawn(selfPath string, spec workerSpec) *spawnedWorker {
	r, w, err := os.Pipe()
	if err != nil {
		logging.WarnOnce(logging.CatCoordinator, "pipe_failure", "failed to create worker pipe", logging.Fields{"error": err.Error()})
		return nil
	}

	args := buildWorkerArgs(spec)
	cmd := exec.Command(selfPath, args...)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		logging.WarnOnce(logging.CatCoordinator, "fork_failure", "failed to start worker process", logging.Fields{"error": err.Error()})
		return nil
	}
	// Parent closes its copy of the write end; only the child writes.
	w.Close()

	if err := setNonblocking(r); err != nil {
		logging.WarnOnce(logging.CatCoordinator, "nonblock_failure", "failed to set worker pipe non-blocking", logging.Fields{"error": err.Error()})
	}

	rec := newWorkerRecord(spec.label, cmd, r)
	logging.Info(logging.CatWorker, "worker started", logging.Fields{"pid": cmd.Process.Pid, "partition": spec.label})
	return &spawnedWorker{record: rec}
}

// buildWorkerArgs renders spec as the CLI flags worker.Config parsing
// expects (spec.md §6). This is the re-exec argv; cmd/popeye-parallel's
// flag parsing is the inverse of this function.
func buildWorkerArgs(spec workerSpec) []string {
	args := []string{"-worker"}
	args = append(args, "-partition-order", spec.order.String())

	if spec.hasSingleCombo {
		idx := spec.order.Index(spec.singleCombo[0], spec.singleCombo[1], spec.singleCombo[2])
		args = append(args, "-single-combo", strconv.Itoa(idx))
	} else if spec.hasAssignment {
		a := spec.assignment
		args = append(args, "-partition-range", fmt.Sprintf("%d/%d/%d", a.Start, a.Stride, a.Max))
	}

	if spec.queuePath != "" {
		args = append(args, "-first-move-queue", spec.queuePath)
	} else if !spec.firstMove.Zero() {
		n, m := spec.firstMove.Params()
		args = append(args, "-first-move-partition", fmt.Sprintf("%d/%d", n, m))
	}

	return args
}
