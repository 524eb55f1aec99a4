package engine

import (
	"fmt"

	"github.com/joeycumines/popeye-parallel/internal/combospace"
)

// DemoSolver is a deterministic, dependency-free stand-in for the real
// chess-problem solver (out of scope, spec.md §1): for every combo it
// emits one @@COMBO record and, unless the first-move filter leaves no
// move, one @@PROGRESS record per configured depth (one by default) and a
// single solution line. worker.Run emits the one true @@FINISHED once Solve or
// SolveSingleCombo returns. It exists so cmd/popeye-parallel (and package
// tests) have something concrete to drive the coordination subsystem
// with; a production deployment replaces it with an adapter over the
// actual solver via the Solver interface.
type DemoSolver struct {
	// Order is the combo-index order used to render each @@COMBO record's
	// leading integer. The coordinator's probe and rebalance modes parse
	// that integer back with the same Order (spec.md §3), so it must match
	// whatever order the worker was configured with. Defaults to
	// combospace.DefaultOrder.
	Order combospace.Order

	// Depths is the sequence of (m, k) progress checkpoints reported per
	// combo. Defaults to a single "1+0" checkpoint if empty.
	Depths []Depth
}

// Depth is one (m, k) forward-search checkpoint.
type Depth struct{ M, K int }

func (d DemoSolver) Solve(iter ComboIterator, pred PartitionPredicate, filterFirstMove FirstMoveFilter, out ProtocolEmitter) error {
	for {
		c, ok := iter.Next(pred)
		if !ok {
			break
		}
		if err := d.solveOne(c, filterFirstMove, out); err != nil {
			return err
		}
	}
	return nil
}

func (d DemoSolver) SolveSingleCombo(c Combo, filterFirstMove FirstMoveFilter, out ProtocolEmitter) error {
	return d.solveOne(c, filterFirstMove, out)
}

func (d DemoSolver) solveOne(c Combo, filterFirstMove FirstMoveFilter, out ProtocolEmitter) error {
	order := d.Order
	if (order == combospace.Order{}) {
		order = combospace.DefaultOrder
	}
	index := order.Index(c.King, c.Checker, c.CheckSq)
	label := fmt.Sprintf("%d(k=%d,p=%d,c=%d)", index, c.King, c.Checker, c.CheckSq)
	fmt.Fprintf(out, "@@COMBO:%s\n", label)

	moves := []int{0, 1, 2, 3}
	if filterFirstMove != nil {
		moves = filterFirstMove(moves, 0)
	}
	if len(moves) == 0 {
		// No ply-1 candidates survive this worker's filter: nothing to
		// search for this combo. worker.Run emits the one true @@FINISHED
		// once every combo (or the single combo) has been processed.
		return nil
	}

	depths := d.Depths
	if len(depths) == 0 {
		depths = []Depth{{M: 1, K: 0}}
	}
	var positions uint64 = 1
	for _, dep := range depths {
		fmt.Fprintf(out, "@@PROGRESS:%d+%d:%d\n", dep.M, dep.K, positions)
		positions++
	}

	fmt.Fprintf(out, "@@TEXT:  1.e2-e4 e7-e5 #\n")
	return nil
}
