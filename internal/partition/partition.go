// Package partition implements the combo predicate and first-move filters
// a worker uses to restrict its share of the search space (spec.md §4.2).
package partition

import (
	"fmt"

	"github.com/joeycumines/popeye-parallel/internal/combospace"
)

var (
	// ErrBadPartition is returned for an invalid strided or simple assignment.
	ErrBadPartition = fmt.Errorf("partition: invalid assignment")
)

// Assignment is a worker's combo predicate: work combo idx iff
// idx >= Start && (idx-Start) % Stride == 0 && idx < Max.
//
// assign_simple(n, m) is sugar for Assignment{Start: n, Stride: m, Max: combospace.TotalCombos}.
type Assignment struct {
	Start  int
	Stride int
	Max    int
}

// AssignStrided validates and builds a strided assignment.
func AssignStrided(start, stride, max int) (Assignment, error) {
	if stride <= 0 || max <= 0 || start >= max {
		return Assignment{}, ErrBadPartition
	}
	return Assignment{Start: start, Stride: stride, Max: max}, nil
}

// AssignSimpleOneIndexed builds the assignment for the 1-indexed `-partition
// N/M` CLI form: process combos with (idx mod M) == (N-1).
func AssignSimpleOneIndexed(n, m int) (Assignment, error) {
	if m <= 0 || n < 1 || n > m {
		return Assignment{}, ErrBadPartition
	}
	return AssignSimpleZeroIndexed(n-1, m)
}

// AssignSimpleZeroIndexed builds the assignment for the internal 0-indexed
// form: process combos with (idx mod m) == n.
func AssignSimpleZeroIndexed(n, m int) (Assignment, error) {
	if m <= 0 || n < 0 || n >= m {
		return Assignment{}, ErrBadPartition
	}
	return Assignment{Start: n, Stride: m, Max: combospace.TotalCombos}, nil
}

// InPartition reports whether (king, checker, checkSq) belongs to this
// assignment, under the given combo index ordering. Pure and side-effect
// free, per spec.md's invariant.
func (a Assignment) InPartition(order combospace.Order, king, checker, checkSq int) bool {
	idx := order.Index(king, checker, checkSq)
	return a.InPartitionIndex(idx)
}

// InPartitionIndex is the index-only form of InPartition.
func (a Assignment) InPartitionIndex(idx int) bool {
	if idx < a.Start || idx >= a.Max {
		return false
	}
	return (idx-a.Start)%a.Stride == 0
}

// FirstMoveRule selects which ply-1 candidate moves a worker keeps.
type FirstMoveRule struct {
	// static, when rotation == false: keep iff moveIdx % total == index.
	// rotation, when rotation == true: keep iff (moveIdx + targetOrdinal) % totalWorkers == selfIndex.
	index, total int
	rotation     bool
}

// SetFirstMove configures the static ply-1 modulo filter.
func SetFirstMove(index, total int) FirstMoveRule {
	return FirstMoveRule{index: index, total: total, rotation: false}
}

// SetFirstMoveRotation configures the dynamic rotation filter used by the
// work-queue mode.
func SetFirstMoveRotation(selfIndex, totalWorkers int) FirstMoveRule {
	return FirstMoveRule{index: selfIndex, total: totalWorkers, rotation: true}
}

// Zero reports whether this rule has never been configured (no filtering
// should be applied — the worker processes every move).
func (r FirstMoveRule) Zero() bool { return r.total == 0 }

// Params returns the configured (index, total) pair, valid for either
// rule kind, for serializing a static rule back out as "-first-move-partition
// N/M".
func (r FirstMoveRule) Params() (index, total int) { return r.index, r.total }

// FilterFirstMoves removes moves not owned by this worker, given the
// ordinal (0-based occurrence count) of the current target position.
func (r FirstMoveRule) FilterFirstMoves(moves []int, targetOrdinal int) []int {
	if r.Zero() {
		out := make([]int, len(moves))
		copy(out, moves)
		return out
	}
	out := make([]int, 0, len(moves))
	for _, moveIdx := range moves {
		if r.keeps(moveIdx, targetOrdinal) {
			out = append(out, moveIdx)
		}
	}
	return out
}

func (r FirstMoveRule) keeps(moveIdx, targetOrdinal int) bool {
	if r.rotation {
		return mod(moveIdx+mod(targetOrdinal, r.total), r.total) == r.index
	}
	return mod(moveIdx, r.total) == r.index
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
