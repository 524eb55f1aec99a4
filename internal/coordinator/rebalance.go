package coordinator

import (
	"fmt"
	"time"

	"github.com/joeycumines/popeye-parallel/internal/partition"
)

// phase tracks the rebalance-mode state machine (spec.md §4.6
// "Coordinator phases (rebalance)"): INITIAL_POOL -> WATCHFUL (t>=T) ->
// REBALANCED -> DRAINING -> DONE. WATCHFUL is the spawn window for
// helpers; no further helpers are created once REBALANCED is entered.
type phase int

const (
	phaseInitialPool phase = iota
	phaseWatchful
	phaseRebalanced
	phaseDraining
	phaseDone
)

// RunRebalance implements rebalance mode (spec.md §4.5 "Rebalance mode"):
// start as normal mode, and once T wall-seconds have elapsed, spawn a
// helper into every free (already-finished) worker slot, targeting the
// combos still-running workers are stuck on. Original workers continue
// alongside their helpers; duplicate solutions are an accepted trade-off
// (spec.md §1 Non-goals, §9).
func RunRebalance(cfg Config, t time.Duration) error {
	if t <= 0 {
		t = defaultProbeTimeout
	}
	if t > maxProbeTimeout {
		t = maxProbeTimeout
	}

	c, err := New(cfg)
	if err != nil {
		return err
	}
	return runRebalance(c, t)
}

// runRebalance drives an already-constructed Coordinator through the
// rebalance-mode phase machine. Split out of RunRebalance so tests can
// override c.spawnFn with an in-process fake worker before driving the loop,
// rather than forking real children.
func runRebalance(c *Coordinator, t time.Duration) error {
	c.startTime = time.Now()
	deadline := c.startTime.Add(t)

	c.installSignalHandlers()
	defer c.restoreSignalHandlers()

	for _, spec := range c.specs() {
		c.spawnOne(spec)
	}

	ph := phaseInitialPool
	for c.active > 0 && !c.interrupted.Load() {
		ready, err := c.poll.wait(pollTimeoutMs)
		if err != nil {
			continue
		}
		for _, rfd := range ready {
			c.handleReady(rfd)
		}

		switch ph {
		case phaseInitialPool:
			if time.Now().After(deadline) {
				ph = phaseWatchful
			}
		case phaseWatchful:
			c.spawnHelpers()
			ph = phaseRebalanced
		}

		if c.active > 0 {
			c.status.report(c.workers, time.Since(c.startTime))
		}
	}
	c.drain() // phaseDraining -> phaseDone
	return nil
}

// spawnHelpers implements the WATCHFUL spawn window: for every free
// (finished) worker slot, spawn a helper on a heavy combo (one a
// still-running worker is stuck on), with a first-move partition
// (j, H) where H is the number of helpers assigned to that combo
// (spec.md §4.5 Rebalance mode).
func (c *Coordinator) spawnHelpers() {
	free := 0
	for _, w := range c.workers {
		if w != nil && w.finished {
			free++
		}
	}
	if free == 0 {
		return
	}

	type target struct {
		combo int
		label string
	}
	var running []target
	seen := make(map[int]bool)
	for _, w := range c.workers {
		if w == nil || w.finished || w.currentCombo == "" {
			continue
		}
		idx, ok := parseLeadingInt(w.currentCombo)
		if !ok || seen[idx] {
			continue
		}
		seen[idx] = true
		running = append(running, target{combo: idx, label: w.currentCombo})
	}
	if len(running) == 0 {
		return
	}

	counts := make([]int, len(running))
	for i := 0; i < free; i++ {
		counts[i%len(running)]++
	}

	for ti, tgt := range running {
		h := counts[ti]
		if h == 0 {
			continue
		}
		king, checker, checkSq := c.cfg.Order.Unindex(tgt.combo)
		for j := 0; j < h; j++ {
			spec := workerSpec{
				order:          c.cfg.Order,
				hasSingleCombo: true,
				singleCombo:    [3]int{king, checker, checkSq},
				firstMove:      partition.SetFirstMove(j, h),
				label:          fmt.Sprintf("helper(%s)#%d/%d", tgt.label, j+1, h),
			}
			c.spawnOne(spec)
		}
	}
}
