package coordinator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joeycumines/popeye-parallel/internal/logging"
	"github.com/joeycumines/popeye-parallel/internal/protocol"
)

var solutionHeaderRE = regexp.MustCompile(`^[1-9]\.`)

// dispatch applies one decoded record from w to coordinator state and user
// output, per spec.md §4.5.1's event table. Returns true if the solution
// cap was just reached (caller should SIGTERM every worker).
func (c *Coordinator) dispatch(w *workerRecord, rec protocol.Record) (capReached bool) {
	switch rec.Kind {
	case protocol.KindProgress:
		c.dispatchProgress(w, rec.Body)

	case protocol.KindText:
		return c.dispatchText(rec.Body)

	case protocol.KindCombo:
		w.currentCombo = rec.Body

	case protocol.KindFinished, protocol.KindDebug, protocol.KindError,
		protocol.KindSolving, protocol.KindReady, protocol.KindSolutionStrt,
		protocol.KindSolutionEnd, protocol.KindTime, protocol.KindHeartbeat,
		protocol.KindProblemStart, protocol.KindProblemEnd, protocol.KindPartial:
		// Accepted and consumed; reserved for future use (spec.md §4.5.1).
		if rec.Kind == protocol.KindError {
			logging.Warn(logging.CatWorker, "worker reported error", logging.Fields{"partition": w.partitionID, "detail": rec.Body})
		}

	case protocol.KindUnknown:
		c.dispatchOpaque(rec.Opaque)

	default:
		// Unknown "@@NAME:" record: dropped without error, forward
		// compatibility (spec.md §4.1).
	}
	return false
}

func (c *Coordinator) dispatchProgress(w *workerRecord, body string) {
	p, err := protocol.ParseProgress(body)
	if err != nil {
		logging.WarnOnce(logging.CatWorker, "malformed_progress", "malformed PROGRESS record", logging.Fields{"partition": w.partitionID, "body": body})
		return
	}
	depth := protocol.Depth(p.M, p.K)
	if p.M < 100 && p.K < 100 {
		w.positionsAtDepth[depth] = p.Positions
		w.haveDepth[depth] = true
		c.anyHaveDepth[depth] = true
	}
	w.lastDepth = depth

	if !c.cfg.ShowMoveNumbers {
		return
	}
	c.advanceFrontier()
}

// advanceFrontier implements the "aggregated progress frontier" (spec.md
// §4.5.1): the largest depth at which every non-finished worker has
// reported progress gates a single summed, user-visible progress line.
func (c *Coordinator) advanceFrontier() {
	minDepth := -1
	any := false
	for _, w := range c.workers {
		if w == nil || w.finished {
			continue
		}
		any = true
		if w.lastDepth < 0 {
			// A non-finished worker with no progress yet blocks the
			// frontier entirely.
			return
		}
		if minDepth < 0 || w.lastDepth < minDepth {
			minDepth = w.lastDepth
		}
	}
	if !any || minDepth < 0 {
		return
	}
	for d := c.lastPrintedDepth + 1; d <= minDepth; d++ {
		if d < 0 || d >= depthSlots {
			continue
		}
		if !c.anyHaveDepth[d] {
			// No worker has ever reported this exact depth (the m*100+k
			// encoding is not contiguous in practice); skip it silently
			// rather than printing a zero line for a depth that was
			// simply never a checkpoint.
			c.lastPrintedDepth = d
			continue
		}
		var total uint64
		for _, w := range c.workers {
			if w == nil {
				continue
			}
			if w.haveDepth[d] {
				total += w.positionsAtDepth[d]
			}
		}
		m, k := d/100, d%100
		elapsed := time.Since(c.startTime)
		fmt.Fprintf(c.out, "@@PROGRESS:%d+%d:%d (elapsed %s)\n", m, k, total, elapsed.Round(time.Millisecond))
		c.lastPrintedDepth = d
	}
}

func (c *Coordinator) dispatchText(body string) (capReached bool) {
	trimmed := strings.TrimLeft(body, " \t")
	if solutionHeaderRE.MatchString(trimmed) {
		c.solutionsFound++
		if c.cfg.SolutionCap > 0 && c.solutionsFound >= c.cfg.SolutionCap {
			capReached = true
		}
	}
	fmt.Fprintf(c.out, "\n%s\n", body)
	return capReached
}

func (c *Coordinator) dispatchOpaque(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if strings.HasPrefix(trimmed, "ser-") {
		return
	}
	if trimmed == "solution finished" {
		return
	}
	fmt.Fprintln(c.out, line)
}
