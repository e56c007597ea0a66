// Package runner hosts independent IRIS programs concurrently: each
// Job pairs one Thread with its own Heap, and a Pool runs a bounded
// number of them side by side (spec.md §5's single-mutator-per-step
// rule holds within a Thread; nothing in the model forbids running many
// independent threads in parallel, since they share no heap).
//
// Restated around golang.org/x/sync/errgroup's bounded fan-out instead
// of a hand-rolled job queue plus fixed-size goroutine pool built from
// channels, WaitGroup, and atomic counters.
package runner

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dabernado/iris-go/internal/bytecode"
	"github.com/dabernado/iris-go/internal/heap"
	"github.com/dabernado/iris-go/internal/value"
	"github.com/dabernado/iris-go/internal/vm"
)

// Job is one program to run to completion: a Program plus its entry
// Function and the data register value to start with.
type Job struct {
	ID      string
	Program *vm.Program
	Entry   *bytecode.Function
	Data    value.RawPtr

	// MaxSteps bounds EvalNextInstr iterations so a non-terminating
	// program cannot wedge the pool forever; 0 means DefaultMaxSteps.
	MaxSteps int
}

// Result is one Job's outcome.
type Result struct {
	JobID    string
	Status   vm.EvalStatus
	Data     value.RawPtr
	Steps    int
	Duration time.Duration
	Snapshot heap.Stats
	Err      error
}

// DefaultMaxSteps is the step bound applied when a Job doesn't set one.
const DefaultMaxSteps = 10_000_000

// Pool runs Jobs concurrently, each against its own freshly allocated
// Heap, bounding concurrency to Size simultaneous threads.
type Pool struct {
	Size int

	mu      sync.Mutex
	results []Result
}

// NewPool returns a Pool sized to size, or runtime.NumCPU() if size<=0.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{Size: size}
}

// Run executes every job, at most p.Size at a time, and returns one
// Result per job in submission order. It stops launching new jobs (but
// lets in-flight ones finish) if ctx is canceled; a single job's runtime
// EvalStatus/Err never aborts the group, since one program's divergence
// shouldn't block the results of its siblings.
func (p *Pool) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Size)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = p.runOne(job)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (p *Pool) runOne(job Job) Result {
	start := time.Now()
	h := heap.New()
	th := vm.NewThread(job.Program, job.Entry, job.Data)

	maxSteps := job.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	res := Result{JobID: job.ID}
	var status vm.EvalStatus
	var err error
	steps := 0
	for ; steps < maxSteps; steps++ {
		mutErr := h.Mutate(func(sc *heap.Scope) error {
			status, err = th.EvalNextInstr(sc)
			return nil
		})
		if mutErr != nil {
			err = mutErr
			status = vm.Err
			break
		}
		if status != vm.Pending {
			break
		}
	}
	if steps == maxSteps && status == vm.Pending {
		err = fmt.Errorf("runner: job %s did not reach END within %d steps", job.ID, maxSteps)
	}

	res.Status = status
	res.Data = th.DataReg()
	res.Steps = steps
	res.Duration = time.Since(start)
	res.Snapshot = h.Snapshot()
	res.Err = err

	p.mu.Lock()
	p.results = append(p.results, res)
	p.mu.Unlock()
	return res
}

// Results returns every Result recorded so far, in completion order
// (not submission order — callers that need submission order should use
// Run's return value directly).
func (p *Pool) Results() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, len(p.results))
	copy(out, p.results)
	return out
}
