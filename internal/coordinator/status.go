package coordinator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/joeycumines/go-microbatch"
)

// maxLabeledWorkers is the cutoff below which the status line also prints
// each worker's current_combo_label (spec.md §4.5 step 5: "and their
// current_combo_label when ≤16 remain").
const maxLabeledWorkers = 16

// statusSnapshot is one worker's state at the moment report was called.
type statusSnapshot struct {
	partitionID string
	combo       string
	lastDepth   int
	elapsed     time.Duration
}

// statusReporter batches worker snapshots and flushes them as one combined
// human-readable status report, using go-microbatch instead of hand-rolled
// ticker bookkeeping. The coordinator's multiplex loop reports once per
// wake-up (a readiness event or the 1-second poll timeout). A batch is
// flushed after 10 wall-seconds or as soon as it holds maxWorkers
// snapshots, whichever comes first, so with many active workers or frequent
// wake-ups reports are written more often than every 10 seconds.
type statusReporter struct {
	batcher *microbatch.Batcher[statusSnapshot]
}

func newStatusReporter(w io.Writer) *statusReporter {
	r := &statusReporter{}
	r.batcher = microbatch.NewBatcher(&microbatch.BatcherConfig{
		MaxSize:        maxWorkers,
		FlushInterval:  statusIntervalSeconds * time.Second,
		MaxConcurrency: 1,
	}, func(ctx context.Context, jobs []statusSnapshot) error {
		writeStatusLine(w, jobs)
		return nil
	})
	return r
}

// report submits one snapshot per active worker. The batcher decides when
// to actually flush a combined line; only the accumulated batch at flush
// time is printed.
func (r *statusReporter) report(workers []*workerRecord, elapsed time.Duration) {
	if r.batcher == nil {
		return
	}
	for _, w := range workers {
		if w == nil || w.finished {
			continue
		}
		_, _ = r.batcher.Submit(context.Background(), statusSnapshot{
			partitionID: w.partitionID,
			combo:       w.currentCombo,
			lastDepth:   w.lastDepth,
			elapsed:     elapsed,
		})
	}
}

func (r *statusReporter) close() {
	if r.batcher != nil {
		_ = r.batcher.Close()
	}
}

// writeStatusLine dedups a batch of snapshots by partition (keeping the
// last one seen) and renders one summary line.
func writeStatusLine(w io.Writer, jobs []statusSnapshot) {
	if len(jobs) == 0 {
		return
	}
	latest := make(map[string]statusSnapshot, len(jobs))
	order := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if _, ok := latest[j.partitionID]; !ok {
			order = append(order, j.partitionID)
		}
		latest[j.partitionID] = j
	}

	fmt.Fprintf(w, "[status] %d worker(s) running, elapsed %s\n", len(order), jobs[len(jobs)-1].elapsed.Round(time.Second))
	if len(order) > maxLabeledWorkers {
		return
	}
	for _, id := range order {
		s := latest[id]
		m, k := s.lastDepth/100, s.lastDepth%100
		if s.lastDepth < 0 {
			fmt.Fprintf(w, "  worker %s: combo=%q (no progress yet)\n", id, s.combo)
			continue
		}
		fmt.Fprintf(w, "  worker %s: combo=%q depth=%d+%d\n", id, s.combo, m, k)
	}
}
