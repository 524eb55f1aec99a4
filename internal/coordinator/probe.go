package coordinator

import (
	"context"
	"fmt"
	"os"
	"sort"
	"syscall"
	"time"

	"github.com/joeycumines/popeye-parallel/internal/combospace"
)

// defaultProbeTimeout and maxProbeTimeout bound the caller-supplied probe
// timeout T (spec.md §4.5 Probe mode).
const (
	defaultProbeTimeout = 60 * time.Second
	maxProbeTimeout     = 3600 * time.Second
)

// maxHeavyCombos caps the heavy-combo table (spec.md §5).
const maxHeavyCombos = 256

// heavyCombo is one entry of the probe-mode heavy-combo table (spec.md
// §3): a combo that failed to complete within a probe phase's timeout.
type heavyCombo struct {
	label     string
	seenCount int
	maxDepth  int // encoded m*100+k, -1 if never reported
}

// allOrders enumerates the six permutations of {k,p,c} probe mode cycles
// through.
func allOrders() []combospace.Order {
	letters := []byte{'k', 'p', 'c'}
	var perms [][]byte
	var permute func(prefix []byte, rest []byte)
	permute = func(prefix []byte, rest []byte) {
		if len(rest) == 0 {
			cp := append([]byte{}, prefix...)
			perms = append(perms, cp)
			return
		}
		for i := range rest {
			next := append(append([]byte{}, rest[:i]...), rest[i+1:]...)
			permute(append(prefix, rest[i]), next)
		}
	}
	permute(nil, letters)
	out := make([]combospace.Order, 0, len(perms))
	for _, p := range perms {
		out = append(out, combospace.Order{p[0], p[1], p[2]})
	}
	return out
}

// RunProbe implements probe mode (spec.md §4.5 Probe mode): cycle through
// the six combo orderings, running a normal-mode-like phase under timeout
// per order, recording heavy combos, and printing a summary sorted by
// seen_count descending.
func RunProbe(cfg Config, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if timeout > maxProbeTimeout {
		timeout = maxProbeTimeout
	}

	heavy := make(map[string]*heavyCombo)

	for _, order := range allOrders() {
		orderCfg := cfg
		orderCfg.Order = order
		c, err := New(orderCfg)
		if err != nil {
			return fmt.Errorf("coordinator: probe order %s: %w", order, err)
		}
		c.startTime = time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err = c.runSpecs(ctx, c.specs())
		cancel()
		if err != nil {
			return err
		}

		// Any worker still running when the timeout fired is a heavy
		// combo for this order.
		for _, w := range c.workers {
			if w == nil || w.finished {
				continue
			}
			label := w.currentCombo
			if label == "" {
				continue
			}
			key, ok := parseLeadingInt(label)
			if !ok {
				continue
			}
			keyStr := fmt.Sprintf("%d", key)
			entry, ok := heavy[keyStr]
			if !ok {
				if len(heavy) >= maxHeavyCombos {
					continue
				}
				entry = &heavyCombo{label: label, maxDepth: -1}
				heavy[keyStr] = entry
			}
			entry.seenCount++
			if w.lastDepth > entry.maxDepth {
				entry.maxDepth = w.lastDepth
			}
			// The worker is still alive (timeout, not finish); SIGTERM
			// it and reap before the next order.
			if w.cmd.Process != nil {
				_ = w.cmd.Process.Signal(syscall.SIGTERM)
			}
		}
		c.finishRemaining()
	}

	printHeavySummary(cfg, heavy)
	return nil
}

// finishRemaining drains any workers runSpecs's ctx-cancellation left
// registered (runSpecs returns on ctx.Done without calling drain, so the
// probe loop is responsible for reaping before moving to the next order).
func (c *Coordinator) finishRemaining() {
	c.drain()
}

// parseLeadingInt extracts the leading decimal integer from a free-form
// combo label (spec.md §3: "Keyed by the leading integer in label").
func parseLeadingInt(label string) (int, bool) {
	i := 0
	for i < len(label) && label[i] >= '0' && label[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n := 0
	for _, ch := range label[:i] {
		n = n*10 + int(ch-'0')
	}
	return n, true
}

func printHeavySummary(cfg Config, heavy map[string]*heavyCombo) {
	list := make([]*heavyCombo, 0, len(heavy))
	for _, h := range heavy {
		list = append(list, h)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].seenCount > list[j].seenCount
	})

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, "@@TEXT:heavy combo summary")
	for _, h := range list {
		m, k := h.maxDepth/100, h.maxDepth%100
		if h.maxDepth < 0 {
			fmt.Fprintf(out, "@@TEXT:%s seen %d max (none)\n", h.label, h.seenCount)
			continue
		}
		fmt.Fprintf(out, "@@TEXT:%s seen %d max %d+%d\n", h.label, h.seenCount, m, k)
	}
}
