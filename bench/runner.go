package bench

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tos-network/wasmbench/kvdb"
	"github.com/tos-network/wasmbench/kvdb/memorydb"
	"github.com/tos-network/wasmbench/params"
)

// Result is one raw measurement sample. The runner reports (dimensions,
// elapsed) pairs; fitting them into weight formulas happens outside this
// repository.
type Result struct {
	Scenario string
	Args     Args
	Elapsed  time.Duration
}

// String renders the dimension assignment with deterministic key order.
func (a Args) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, a[k]))
	}
	return strings.Join(parts, " ")
}

// StoreOpener returns a fresh, empty backing store for one scenario sample.
type StoreOpener func() (kvdb.KeyValueStore, error)

// Runner executes catalog entries sequentially. Every sample runs on a fresh
// driver over a fresh store and a cloned configuration, so no state survives
// from one measurement into the next.
type Runner struct {
	cfg    *params.Config
	steps  uint32
	openDB StoreOpener
	logger *log.Logger
}

// NewRunner creates a runner sampling each dimension at steps points. A nil
// logger disables progress output.
func NewRunner(cfg *params.Config, steps uint32, logger *log.Logger) *Runner {
	if steps < 2 {
		steps = 2
	}
	return &Runner{
		cfg:    cfg,
		steps:  steps,
		openDB: func() (kvdb.KeyValueStore, error) { return memorydb.New(), nil },
		logger: logger,
	}
}

// SetStoreOpener replaces the in-memory default with another backing store
// source, one store per sample.
func (r *Runner) SetStoreOpener(open StoreOpener) { r.openDB = open }

// Run measures every benchmark in the list and returns the raw samples. The
// first setup, measurement or verification failure aborts the run: a failed
// sample indicates a broken scenario, and mixing failed and successful
// executions would corrupt any fit over the output.
func (r *Runner) Run(benchmarks []*Benchmark) ([]Result, error) {
	var results []Result
	for _, b := range benchmarks {
		for _, args := range r.samples(b.Dims) {
			res, err := r.sample(b, args)
			if err != nil {
				return nil, fmt.Errorf("scenario %s [%s]: %w", b.Name, args, err)
			}
			if r.logger != nil {
				r.logger.Info("measured scenario", "name", b.Name, "args", args.String(), "elapsed", res.Elapsed)
			}
			results = append(results, res)
		}
	}
	return results, nil
}

func (r *Runner) sample(b *Benchmark, args Args) (Result, error) {
	db, err := r.openDB()
	if err != nil {
		return Result{}, fmt.Errorf("store open failed: %w", err)
	}
	defer db.Close()

	driver := NewDriverWithDB(r.cfg.Clone(), db)
	run, err := b.Setup(driver, args)
	if err != nil {
		return Result{}, fmt.Errorf("setup failed: %w", err)
	}
	start := time.Now()
	err = run.Measure()
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, fmt.Errorf("measured operation failed: %w", err)
	}
	if run.Verify != nil {
		if err := run.Verify(); err != nil {
			return Result{}, fmt.Errorf("verification failed: %w", err)
		}
	}
	return Result{Scenario: b.Name, Args: args, Elapsed: elapsed}, nil
}

// samples enumerates the dimension assignments of one benchmark: each
// dimension is swept over steps evenly spaced values while the others are
// held at their maximum, so every sweep varies exactly one cost driver.
func (r *Runner) samples(dims []Dim) []Args {
	if len(dims) == 0 {
		return []Args{{}}
	}
	var out []Args
	seen := make(map[string]bool)
	for i, dim := range dims {
		for s := uint32(0); s < r.steps; s++ {
			value := dim.Low + (dim.High-dim.Low)*s/(r.steps-1)
			args := Args{}
			for j, other := range dims {
				if j == i {
					args[other.Name] = value
				} else {
					args[other.Name] = other.High
				}
			}
			if key := args.String(); !seen[key] {
				seen[key] = true
				out = append(out, args)
			}
		}
	}
	return out
}
