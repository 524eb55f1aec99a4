// Package engine declares the hooks the external chess-problem solver must
// expose for the parallel coordination subsystem to drive it. The solver
// itself is out of scope (spec.md §1); this package is the seam.
package engine

import "io"

// Combo is one point of the (king, checker, check-square) search space.
type Combo struct {
	King, Checker, CheckSq int
}

// PartitionPredicate reports whether a combo belongs to the caller's share
// of the search space. Implementations must be pure and side-effect free.
type PartitionPredicate func(Combo) bool

// FirstMoveFilter narrows an ordered ply-1 candidate move list down to the
// subset this worker owns, given how many target positions have been seen
// so far (the rotation ordinal).
type FirstMoveFilter func(moves []int, targetOrdinal int) []int

// ComboIterator yields every combo the host solver's intelligent mode would
// consider, in its native order, honoring a partition predicate.
type ComboIterator interface {
	// Next advances to the next combo satisfying pred, returning false
	// when the space is exhausted.
	Next(pred PartitionPredicate) (Combo, bool)
}

// ProtocolEmitter is how the solver writes "@@"-framed records and opaque
// output lines during a forward search. A worker configures the solver
// with one of these before driving it; the solver is otherwise unaware of
// the coordination layer.
type ProtocolEmitter interface {
	io.Writer
}

// Solver is the minimal external collaborator: given a single combo, a
// partition predicate (for combos the solver itself enumerates further,
// e.g. sub-searches), and a first-move filter, it runs the forward
// helpmate search to completion, emitting protocol records and solution
// text to the given emitter.
type Solver interface {
	// Solve drives the search for combos selected by iter/pred, applying
	// filterFirstMove at ply 1, writing all output to out.
	Solve(iter ComboIterator, pred PartitionPredicate, filterFirstMove FirstMoveFilter, out ProtocolEmitter) error

	// SolveSingleCombo restricts the search to exactly one combo (used by
	// -single-combo, which rebalance helpers are launched with).
	SolveSingleCombo(c Combo, filterFirstMove FirstMoveFilter, out ProtocolEmitter) error
}
