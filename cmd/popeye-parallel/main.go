// Command popeye-parallel is the external interface of the parallel
// coordination subsystem (spec.md §6): flag parsing, mode selection, and
// wiring to the engine.Solver hook. The solver itself is out of scope
// (spec.md §1); this binary is bundled with engine.DemoSolver, a
// deterministic stand-in, so the subsystem is runnable end to end without
// the real chess engine attached. A production build swaps DemoSolver for
// an adapter over the actual solver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeycumines/popeye-parallel/internal/combospace"
	"github.com/joeycumines/popeye-parallel/internal/coordinator"
	"github.com/joeycumines/popeye-parallel/internal/engine"
	"github.com/joeycumines/popeye-parallel/internal/logging"
	"github.com/joeycumines/popeye-parallel/internal/partition"
	"github.com/joeycumines/popeye-parallel/internal/worker"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("popeye-parallel", flag.ContinueOnError)

	var (
		parallelN          = fs.Int("parallel", 0, "spawn N workers; coordinator mode (N in [1,1024])")
		isWorker           = fs.Bool("worker", false, "run as a forked worker: suppress greeting, emit structured protocol")
		partitionFlag      = fs.String("partition", "", "N/M (1-indexed): process combos with (idx mod M) == (N-1)")
		partitionRangeFlag = fs.String("partition-range", "", "start/stride/max: strided combo assignment")
		orderFlag          = fs.String("partition-order", "kpc", "3-letter permutation of k,p,c: combo-index ordering")
		firstMovePartition = fs.String("first-move-partition", "", "N/M (0-indexed N): static ply-1 filter keeping moves with (idx mod M) == N")
		firstMoveQueue     = fs.String("first-move-queue", "", "coordinator: N workers in queue mode; worker: the queue file path")
		singleComboFlag    = fs.Int("single-combo", -1, "restrict to one combo index in [0,61440)")
		solutionCap        = fs.Int("solution-limit", 0, "stop once this many solutions are found (0 disables)")
		showMoveNumbers    = fs.Bool("show-move-numbers", true, "gate the aggregated progress frontier")
		queuePathFlag      = fs.String("queue-path", "", "override the shared work-queue file location")
		logLevelFlag       = fs.String("log-level", "info", "debug|info|warn|error")
	)
	var probeVal, rebalanceVal optionalSeconds
	fs.Var(&probeVal, "probe", "diagnostic mode; optional =T seconds (default 60, max 3600)")
	fs.Var(&rebalanceVal, "rebalance", "dynamic rebalance phase; optional =T seconds (default 60, max 3600)")

	if err := fs.Parse(argv); err != nil {
		return 2
	}

	if err := applyLogLevel(*logLevelFlag); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	order, err := combospace.ParseOrder(*orderFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if *isWorker {
		return runWorker(workerFlags{
			order:              order,
			partition:          *partitionFlag,
			partitionRange:     *partitionRangeFlag,
			firstMovePartition: *firstMovePartition,
			firstMoveQueue:     *firstMoveQueue,
			singleCombo:        *singleComboFlag,
		})
	}

	cfg := coordinator.Config{
		N:               *parallelN,
		SelfPath:        resolveSelfPath(),
		Order:           order,
		SolutionCap:     *solutionCap,
		ShowMoveNumbers: *showMoveNumbers,
		QueuePath:       *queuePathFlag,
	}

	switch {
	case probeVal.set:
		if err := coordinator.RunProbe(cfg, probeVal.duration()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	case rebalanceVal.set:
		if err := coordinator.RunRebalance(cfg, rebalanceVal.duration()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	case *firstMoveQueue != "":
		w, err := strconv.Atoi(*firstMoveQueue)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid -first-move-queue N:", err)
			return 2
		}
		if err := coordinator.RunQueue(cfg, w); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	default:
		c, err := coordinator.New(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := c.Run(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			c.ReraiseSignal()
			return 1
		}
		c.ReraiseSignal()
		return 0
	}
}

// optionalSeconds backs the "-probe" and "-rebalance" flags, whose
// grammar (spec.md §6) is "optional T seconds": bare "-probe" selects the
// mode's default timeout, "-probe=120" an explicit one. Implementing
// flag.boolFlag lets the stdlib flag package accept the bare form.
type optionalSeconds struct {
	set     bool
	seconds int
}

func (v *optionalSeconds) IsBoolFlag() bool { return true }

func (v *optionalSeconds) String() string {
	if v == nil || !v.set {
		return ""
	}
	return strconv.Itoa(v.seconds)
}

func (v *optionalSeconds) Set(s string) error {
	v.set = true
	if s == "" || s == "true" {
		v.seconds = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid seconds value %q: %w", s, err)
	}
	v.seconds = n
	return nil
}

func (v *optionalSeconds) duration() time.Duration {
	if !v.set || v.seconds <= 0 {
		return 0
	}
	return time.Duration(v.seconds) * time.Second
}

type workerFlags struct {
	order              combospace.Order
	partition          string
	partitionRange     string
	firstMovePartition string
	firstMoveQueue     string
	singleCombo        int
}

func runWorker(wf workerFlags) int {
	cfg := worker.Config{Order: wf.order}

	switch {
	case wf.singleCombo >= 0:
		k, p, c := wf.order.Unindex(wf.singleCombo)
		cfg.HasSingleCombo = true
		cfg.SingleCombo = engine.Combo{King: k, Checker: p, CheckSq: c}
	case wf.partitionRange != "":
		a, err := parsePartitionRange(wf.partitionRange)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		cfg.Assignment = a
	case wf.partition != "":
		n, m, err := parseFraction(wf.partition)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		a, err := partition.AssignSimpleOneIndexed(n, m)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		cfg.Assignment = a
	default:
		a, _ := partition.AssignSimpleOneIndexed(1, 1)
		cfg.Assignment = a
	}

	if wf.firstMoveQueue != "" {
		cfg.QueuePath = wf.firstMoveQueue
	} else if wf.firstMovePartition != "" {
		n, m, err := parseFraction(wf.firstMovePartition)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		cfg.FirstMove = partition.SetFirstMove(n, m)
	}

	solver := engine.DemoSolver{Order: wf.order}
	if err := worker.Run(context.Background(), cfg, solver, os.Stdout); err != nil {
		return 1
	}
	return 0
}

func parseFraction(s string) (n, m int, err error) {
	a, b, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("expected N/M, got %q", s)
	}
	n, err = strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("bad N in %q: %w", s, err)
	}
	m, err = strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("bad M in %q: %w", s, err)
	}
	return n, m, nil
}

func parsePartitionRange(s string) (partition.Assignment, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return partition.Assignment{}, fmt.Errorf("expected start/stride/max, got %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return partition.Assignment{}, fmt.Errorf("bad value in %q: %w", s, err)
		}
		vals[i] = v
	}
	return partition.AssignStrided(vals[0], vals[1], vals[2])
}

func applyLogLevel(s string) error {
	lvl, err := logging.ParseLevel(s)
	if err != nil {
		return err
	}
	logging.Configure(lvl)
	return nil
}

func resolveSelfPath() string {
	p, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return p
}
