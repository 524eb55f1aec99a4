// Package worker implements the post-fork child process behavior
// (spec.md §4.4): install a partition predicate and first-move filter,
// wrap the solver's output in @@READY/@@SOLVING/@@FINISHED records, drive
// the search to completion, and react to SIGINT/SIGTERM by dying
// immediately. Run sets no forked-worker mode on the solver; the solver
// only receives the emitter it writes to.
package worker

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joeycumines/popeye-parallel/internal/combospace"
	"github.com/joeycumines/popeye-parallel/internal/engine"
	"github.com/joeycumines/popeye-parallel/internal/logging"
	"github.com/joeycumines/popeye-parallel/internal/partition"
	"github.com/joeycumines/popeye-parallel/internal/workqueue"
)

// Config configures a single worker process. Exactly one of Assignment or
// SingleCombo should be meaningful; QueuePath selects first-move-queue mode.
type Config struct {
	Order      combospace.Order
	Assignment partition.Assignment

	// SingleCombo restricts the search to one combo (-single-combo), used
	// together with a first-move partition or queue.
	HasSingleCombo bool
	SingleCombo    engine.Combo

	// FirstMove is the static ply-1 filter (-first-move-partition), used
	// when QueuePath == "".
	FirstMove partition.FirstMoveRule

	// QueuePath, when non-empty, selects first-move-queue mode: the
	// worker acquires an index from the shared file at QueuePath and uses
	// the rotation rule instead of FirstMove.
	QueuePath string
}

// Run drives solver to completion under cfg, writing protocol output to
// out. It installs default signal disposition for SIGINT/SIGTERM (step 1
// of spec.md §4.4: immediate death, no solver-state cleanup — process exit
// reclaims it) and returns only when the solve completes or the process is
// killed.
//
// ctx is accepted for symmetry with Coordinator.Run's signature and to
// leave room for a future cancellable engine.Solver; the current
// engine.Solver interface has no cancellation point, so ctx is not yet
// consulted. Callers must still pass a non-nil context (context.Background()
// is fine) rather than a literal nil.
func Run(ctx context.Context, cfg Config, solver engine.Solver, out engine.ProtocolEmitter) error {
	// Step 1: reset inherited signal handlers to default disposition, so
	// SIGINT/SIGTERM kill this process immediately rather than being
	// caught by a handler inherited from the coordinator's fork point.
	signal.Reset(syscall.SIGINT, syscall.SIGTERM)

	// Step 2 (conceptual only in a multi-process model: this process has
	// its own address space, so there is no coordinator-owned worker
	// array reference to release here).

	filter, err := resolveFirstMoveFilter(cfg)
	if err != nil {
		// Work-queue I/O failure: fall back to unfiltered search rather
		// than fail the worker (spec.md §4.3, §4.7).
		logging.WarnOnce(logging.CatQueue, "io_failure", "work queue unavailable, proceeding unfiltered", logging.Fields{
			"error": err.Error(),
		})
		fmt.Fprintln(out, "@@DEBUG:work queue unavailable, proceeding unfiltered")
		filter = nil
	}

	pred := func(c engine.Combo) bool {
		if cfg.HasSingleCombo {
			return c == cfg.SingleCombo
		}
		return cfg.Assignment.InPartition(cfg.Order, c.King, c.Checker, c.CheckSq)
	}

	fmt.Fprintln(out, "@@READY")
	fmt.Fprintln(out, "@@SOLVING")

	if cfg.HasSingleCombo {
		err = solver.SolveSingleCombo(cfg.SingleCombo, filter, out)
	} else {
		err = solver.Solve(&identityIterator{}, pred, filter, out)
	}
	if err != nil {
		fmt.Fprintf(out, "@@ERROR:%s\n", err.Error())
		return err
	}
	fmt.Fprintln(out, "@@FINISHED")
	return nil
}

// resolveFirstMoveFilter returns the configured first-move filter, or nil
// for "no filtering". Queue mode acquires the worker's index from the
// shared file.
func resolveFirstMoveFilter(cfg Config) (engine.FirstMoveFilter, error) {
	if cfg.QueuePath != "" {
		q := workqueue.Open(cfg.QueuePath)
		idx, err := q.AcquireWorkerIndex()
		if err != nil {
			return nil, err
		}
		total, err := q.ReadTotal()
		if err != nil {
			return nil, err
		}
		rule := partition.SetFirstMoveRotation(idx, total)
		return rule.FilterFirstMoves, nil
	}
	if !cfg.FirstMove.Zero() {
		rule := cfg.FirstMove
		return rule.FilterFirstMoves, nil
	}
	return nil, nil
}

// identityIterator is a trivial engine.ComboIterator over the full combo
// space in natural (king, checker, checkSq) nesting order, honoring a
// partition predicate. Real solvers supply their own iterator that walks
// their native data structures instead of recomputing triples; this one
// exists so Run is usable without a hosted solver attached.
type identityIterator struct {
	king, checker, checkSq int
	done                   bool
}

func (it *identityIterator) Next(pred engine.PartitionPredicate) (engine.Combo, bool) {
	for {
		if it.done {
			return engine.Combo{}, false
		}
		c := engine.Combo{King: it.king, Checker: it.checker, CheckSq: it.checkSq}
		it.advance()
		if pred(c) {
			return c, true
		}
	}
}

func (it *identityIterator) advance() {
	it.checkSq++
	if it.checkSq >= combospace.CheckSqCard {
		it.checkSq = 0
		it.checker++
		if it.checker >= combospace.CheckerCard {
			it.checker = 0
			it.king++
			if it.king >= combospace.KingCard {
				it.done = true
			}
		}
	}
}
