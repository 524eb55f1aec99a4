// Package coordinator implements the single-threaded event loop that
// spawns workers, multiplexes their pipes, aggregates output, and drives
// normal, probe, rebalance, and first-move-queue phases (spec.md §4.5).
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joeycumines/popeye-parallel/internal/combospace"
	"github.com/joeycumines/popeye-parallel/internal/logging"
	"github.com/joeycumines/popeye-parallel/internal/partition"
)

// maxWorkers is the hard clamp on N (spec.md §5).
const maxWorkers = 1024

// pollTimeoutMs is the multiplex wait's timeout (spec.md §4.5 step 4).
const pollTimeoutMs = 1000

// statusIntervalSeconds is how often the coordinator writes a status
// summary while any worker is active (spec.md §4.5 step 5).
const statusIntervalSeconds = 10

// readChunkBytes is the read size on a ready worker fd (spec.md §4.5 step 4).
const readChunkBytes = 4096

// Config configures a coordinator run.
type Config struct {
	// N is the worker count, clamped to [1, 1024].
	N int
	// SelfPath is argv[0] (or a resolved absolute path to it), re-exec'd
	// to create each worker.
	SelfPath string
	// Order is the combo-index partition order (spec.md §3).
	Order combospace.Order
	// SolutionCap stops the run once this many solutions are found. 0
	// disables the cap.
	SolutionCap int
	// ShowMoveNumbers gates the aggregated progress frontier (spec.md
	// §4.5.1).
	ShowMoveNumbers bool
	// Out is where aggregated user-facing output is written (solutions,
	// progress, opaque passthrough lines). Defaults to os.Stdout.
	Out io.Writer
	// QueuePath overrides the shared work-queue file location used by
	// first-move-queue mode (the "-queue-path" flag, SPEC_FULL.md
	// Supplemented Features #1). Empty selects a fresh temp path.
	QueuePath string
	// Status is where the periodic status summary is written. Defaults
	// to os.Stderr.
	Status io.Writer
}

func (cfg *Config) setDefaults() {
	if cfg.N < 1 {
		cfg.N = 1
	}
	if cfg.N > maxWorkers {
		cfg.N = maxWorkers
	}
	if (cfg.Order == combospace.Order{}) {
		cfg.Order = combospace.DefaultOrder
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Status == nil {
		cfg.Status = os.Stderr
	}
}

// Coordinator is one run of the event loop: a pool of workers, a poller,
// and the aggregated state §4.5.1 evolves.
type Coordinator struct {
	cfg Config

	workers []*workerRecord
	fdIndex map[int]int // fd -> index into workers

	poll poller

	active int

	solutionsFound int

	lastPrintedDepth int
	anyHaveDepth     [depthSlots]bool
	startTime        time.Time

	interrupted atomic.Bool

	out io.Writer

	status *statusReporter

	sigCh      chan os.Signal
	lastSignal os.Signal

	// spawnFn creates one worker given selfPath and a workerSpec. Defaults
	// to the package-level spawn (real re-exec via exec.Command); tests
	// override it to return os.Pipe-backed, in-process fake workers
	// instead of forking real children.
	spawnFn func(selfPath string, spec workerSpec) *spawnedWorker
}

// New constructs a Coordinator. Call Run to spawn workers and drive the
// event loop for a normal-mode phase.
func New(cfg Config) (*Coordinator, error) {
	cfg.setDefaults()
	p, err := newPoller()
	if err != nil {
		return nil, fmt.Errorf("coordinator: init poller: %w", err)
	}
	return &Coordinator{
		cfg:              cfg,
		fdIndex:          make(map[int]int),
		poll:             p,
		lastPrintedDepth: -1,
		out:              cfg.Out,
		status:           newStatusReporter(cfg.Status),
		spawnFn:          spawn,
	}, nil
}

// specs computes the per-worker strided assignment for a plain normal-mode
// run: worker i gets Assignment{Start: i, Stride: N, Max: TotalCombos},
// which is P2's "union over start=0..W-1 equals [0, TotalCombos)".
func (c *Coordinator) specs() []workerSpec {
	out := make([]workerSpec, c.cfg.N)
	for i := 0; i < c.cfg.N; i++ {
		a, err := partition.AssignStrided(i, c.cfg.N, combospace.TotalCombos)
		if err != nil {
			// Unreachable for i in [0, N) and N >= 1, but fall back to a
			// no-op assignment rather than panic mid-spawn.
			a = partition.Assignment{Start: 0, Stride: 1, Max: 0}
		}
		out[i] = workerSpec{
			order:         c.cfg.Order,
			hasAssignment: true,
			assignment:    a,
			label:         fmt.Sprintf("%d/%d", i+1, c.cfg.N),
		}
	}
	return out
}

// Run executes normal mode to completion: spawn, multiplex until every
// worker finishes or the run is interrupted, then drain and reap.
func (c *Coordinator) Run(ctx context.Context) error {
	c.startTime = time.Now()
	return c.runSpecs(ctx, c.specs())
}

// runSpecs is the shared spawn+multiplex+drain loop used by normal,
// probe, and first-move-queue modes (each supplies its own workerSpec list
// and, for probe, an early-exit deadline via ctx). Rebalance mode runs its
// own loop (runRebalance). When ctx ends the loop, runSpecs returns without
// draining, leaving the still-running workers for the caller to inspect
// and reap.
func (c *Coordinator) runSpecs(ctx context.Context, specs []workerSpec) error {
	c.installSignalHandlers()
	defer c.restoreSignalHandlers()

	for _, spec := range specs {
		c.spawnOne(spec)
	}

	if err := c.multiplex(ctx); err != nil {
		return err
	}
	if ctx != nil && ctx.Err() != nil {
		return nil
	}
	c.drain()
	return nil
}

func (c *Coordinator) spawnOne(spec workerSpec) {
	sw := c.spawnFn(c.cfg.SelfPath, spec)
	if sw == nil {
		// Fork/pipe failure: logged already by spawn; the phase proceeds
		// with fewer workers (spec.md §4.7). The partition owned by the
		// missing worker is not reassigned in normal mode (an accepted,
		// documented correctness loss — see DESIGN.md Open Questions).
		return
	}
	c.registerSpawned(sw)
}

// registerSpawned wires an already-spawned worker into the poller and the
// coordinator's bookkeeping: split out of spawnOne so the plumbing around a
// spawn (poll registration, fdIndex mapping, active accounting) can be
// exercised directly in tests against a fake spawnedWorker, without going
// through the real fork path.
func (c *Coordinator) registerSpawned(sw *spawnedWorker) {
	idx := len(c.workers)
	c.workers = append(c.workers, sw.record)
	fd := int(sw.record.readFD.Fd())
	if err := c.poll.register(fd); err != nil {
		logging.WarnOnce(logging.CatCoordinator, "register_failure", "failed to register worker fd with poller", logging.Fields{"error": err.Error()})
		sw.record.finished = true
		sw.record.readFD.Close()
		return
	}
	c.fdIndex[fd] = idx
	c.active++
}

// multiplex is the event loop of spec.md §4.5 step 4: repeatedly poll with
// a 1-second timeout until every worker has finished or the run was
// interrupted.
func (c *Coordinator) multiplex(ctx context.Context) error {
	for c.active > 0 && !c.interrupted.Load() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
		}

		ready, err := c.poll.wait(pollTimeoutMs)
		if err != nil {
			logging.WarnOnce(logging.CatCoordinator, "poll_failure", "poller wait failed", logging.Fields{"error": err.Error()})
			continue
		}
		for _, rfd := range ready {
			c.handleReady(rfd)
		}

		if c.active > 0 {
			c.status.report(c.workers, time.Since(c.startTime))
		}
	}
	return nil
}

func (c *Coordinator) handleReady(rfd readyFD) {
	idx, ok := c.fdIndex[rfd.fd]
	if !ok {
		return
	}
	w := c.workers[idx]
	if w.finished {
		return
	}

	buf := make([]byte, readChunkBytes)
	n, err := w.readFD.Read(buf)
	if n > 0 {
		for _, rec := range w.framer.Feed(buf[:n]) {
			if c.dispatch(w, rec) {
				c.terminateAll()
			}
		}
	}
	if errors.Is(err, syscall.EAGAIN) {
		// Transient on a non-blocking fd: the worker stays registered.
		return
	}
	if err != nil || n == 0 {
		c.finishWorker(w)
	}
}

// finishWorker marks w done: flushes any partial buffered line, closes the
// fd, unregisters it, and decrements the active count (spec.md §4.5 step
// 4's "a read of zero bytes or a non-retriable error marks that worker
// finished").
func (c *Coordinator) finishWorker(w *workerRecord) {
	if w.finished {
		return
	}
	if rec, ok := w.framer.Flush(); ok {
		c.dispatch(w, rec)
	}
	fd := int(w.readFD.Fd())
	c.poll.unregister(fd)
	w.readFD.Close()
	w.finished = true
	c.active--
	logging.Info(logging.CatWorker, "worker finished", logging.Fields{"partition": w.partitionID})
}

// terminateAll sends SIGTERM to every non-finished worker (used when the
// solution cap is reached, or on interruption).
func (c *Coordinator) terminateAll() {
	for _, w := range c.workers {
		if w == nil || w.finished || w.cmd.Process == nil {
			continue
		}
		_ = w.cmd.Process.Signal(syscall.SIGTERM)
	}
}

// drain implements spec.md §4.5 step 6: waitpid every child, and for any
// whose pipe is still open, switch it to blocking and read to EOF.
func (c *Coordinator) drain() {
	for _, w := range c.workers {
		if w == nil {
			continue
		}
		if !w.finished {
			setBlocking(w.readFD)
			buf := make([]byte, readChunkBytes)
			for {
				n, err := w.readFD.Read(buf)
				if n > 0 {
					for _, rec := range w.framer.Feed(buf[:n]) {
						c.dispatch(w, rec)
					}
				}
				if err != nil {
					break
				}
			}
			if rec, ok := w.framer.Flush(); ok {
				c.dispatch(w, rec)
			}
			c.poll.unregister(int(w.readFD.Fd()))
			w.readFD.Close()
			w.finished = true
		}
		if w.cmd.Process != nil {
			_, _ = w.cmd.Process.Wait()
		}
	}
	c.poll.close()
	c.status.close()
}

// installSignalHandlers implements spec.md §4.5 step 2: SIGINT/SIGTERM set
// the interrupted flag and forward to every non-finished child. Restoring
// the default handler and re-raising the signal is done by ReraiseSignal,
// which cmd/popeye-parallel calls after a normal-mode run.
func (c *Coordinator) installSignalHandlers() {
	c.sigCh = make(chan os.Signal, 1)
	signal.Notify(c.sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig, ok := <-c.sigCh
		if !ok {
			return
		}
		c.lastSignal = sig
		c.interrupted.Store(true)
		c.terminateAll()
	}()
}

func (c *Coordinator) restoreSignalHandlers() {
	signal.Stop(c.sigCh)
	close(c.sigCh)
}

// ReraiseSignal restores the default disposition for the signal that
// interrupted this run (if any) and re-raises it, so the process's exit
// status reflects the signal per spec.md §6. No-op if the run completed
// without interruption.
func (c *Coordinator) ReraiseSignal() {
	if c.lastSignal == nil {
		return
	}
	sig, ok := c.lastSignal.(syscall.Signal)
	if !ok {
		return
	}
	signal.Reset(c.lastSignal)
	_ = syscall.Kill(os.Getpid(), sig)
}
