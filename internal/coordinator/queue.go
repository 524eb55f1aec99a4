package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joeycumines/popeye-parallel/internal/workqueue"
)

// defaultQueuePath picks a fresh path under os.TempDir so concurrent
// coordinator runs on one host never collide on the same shared-file name
// (SPEC_FULL.md Supplemented Features #1).
func defaultQueuePath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("popeye-parallel-queue-%d.bin", os.Getpid()))
}

// RunQueue implements first-move-queue mode (spec.md §4.5 "First-move
// queue mode"): create the shared work-queue file, fork W workers each
// configured for queue-mode (rotation) first-move filtering, run the
// normal multiplex loop, then unlink the queue file after reap.
func RunQueue(cfg Config, w int) error {
	cfg.setDefaults()
	if w < 1 {
		w = 1
	}
	if w > maxWorkers {
		w = maxWorkers
	}

	queuePath := cfg.QueuePath
	if queuePath == "" {
		queuePath = defaultQueuePath()
	}
	if _, err := workqueue.Initialise(queuePath, w); err != nil {
		return fmt.Errorf("coordinator: initialise work queue: %w", err)
	}
	defer func() { _ = workqueue.Destroy(queuePath) }()

	c, err := New(cfg)
	if err != nil {
		return err
	}
	return runQueue(c, queuePath, w)
}

// runQueue drives an already-constructed Coordinator through first-move-queue
// mode's spawn+multiplex+drain loop. Split out of RunQueue so tests can
// override c.spawnFn with an in-process fake worker before driving the loop,
// rather than forking real children.
func runQueue(c *Coordinator, queuePath string, w int) error {
	c.startTime = time.Now()

	specs := make([]workerSpec, w)
	for i := range specs {
		specs[i] = workerSpec{
			order:     c.cfg.Order,
			queuePath: queuePath,
			label:     fmt.Sprintf("queue#%d", i+1),
		}
	}
	return c.runSpecs(context.Background(), specs)
}
