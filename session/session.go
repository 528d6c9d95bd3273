// Package session runs many bounded explorations of one field concurrently.
//
// A Runner owns a template field. Every job runs against its own clone, so
// jobs never share the mutable constraint set or transition matrix and a job
// may extend its clone (Job.Prepare) without affecting the others. Jobs are
// scheduled on an errgroup limited to Options.Workers goroutines.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/explore"
	"github.com/sbl8/ssccs/field"
)

// ErrNoJobs is returned by Run when it is given nothing to do.
var ErrNoJobs = errors.New("session: no jobs")

// Options configures a Runner.
type Options struct {
	// Workers caps concurrently running jobs. Zero means runtime.NumCPU.
	Workers int
	// FailFast cancels the remaining jobs after the first failure and makes
	// Run return that failure.
	FailFast bool
	// JobTimeout bounds each job. Zero means no per-job limit.
	JobTimeout time.Duration
	Logger     *slog.Logger
}

// DefaultOptions returns one worker per CPU without fail-fast.
func DefaultOptions() Options {
	return Options{Workers: runtime.NumCPU()}
}

// Job is one exploration from a seed.
type Job struct {
	// ID is assigned by Run when zero.
	ID        uuid.UUID
	Label     string
	Seed      core.Coordinate
	Adjacency field.Adjacency
	Bound     explore.Bound
	// Prepare, when set, may add constraints or transitions to the job's
	// private field before the walk starts.
	Prepare func(f *field.Field) error
}

// Result is the outcome of one job.
type Result struct {
	Job     uuid.UUID
	Label   string
	Seed    core.Coordinate
	Session uuid.UUID
	States  core.SegmentSet
	Stats   explore.Stats
	Err     error
}

// Runner executes jobs against clones of a template field.
type Runner struct {
	field  *field.Field
	opts   Options
	logger *slog.Logger
}

// New returns a runner over f. The template is cloned per job and never
// mutated by the runner.
func New(f *field.Field, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if f == nil {
		f = field.New()
	}
	return &Runner{field: f, opts: opts, logger: logger}
}

// Workers returns the concurrency limit.
func (r *Runner) Workers() int { return r.opts.Workers }

// Run executes jobs and returns one result per job in input order.
//
// Without FailFast a failing job only sets its Result.Err and Run returns
// nil once every job has finished. With FailFast the first failure cancels
// the rest and is returned; results of jobs that never ran carry the
// cancellation error.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	ctx, span := startRunSpan(ctx, len(jobs), r.opts.Workers)
	defer span.End()
	start := time.Now()

	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i := range jobs {
		job := jobs[i]
		if job.ID == uuid.Nil {
			job.ID = uuid.New()
		}
		results[i] = Result{Job: job.ID, Label: job.Label, Seed: job.Seed.Clone()}
		g.Go(func() error {
			res := r.runJob(gctx, job)
			results[i] = res
			if res.Err != nil && r.opts.FailFast {
				return fmt.Errorf("session: job %s: %w", jobName(job), res.Err)
			}
			return nil
		})
	}

	err := g.Wait()
	failed := 0
	for i := range results {
		if results[i].Err != nil {
			failed++
		}
	}
	recordRunMetrics(ctx, len(jobs), failed, time.Since(start))
	endSpan(span, err)
	r.logger.Info("session finished",
		slog.Int("jobs", len(jobs)),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)))
	return results, err
}

func (r *Runner) runJob(ctx context.Context, job Job) Result {
	res := Result{Job: job.ID, Label: job.Label, Seed: job.Seed.Clone()}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if r.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.JobTimeout)
		defer cancel()
	}

	f := r.field.Clone()
	res.Session = f.Session()
	if job.Prepare != nil {
		if err := job.Prepare(f); err != nil {
			res.Err = fmt.Errorf("prepare: %w", err)
			recordJobMetrics(ctx, res)
			return res
		}
	}

	res.States, res.Stats, res.Err = explore.Walk(ctx, core.NewSegment(job.Seed), f, job.Adjacency, job.Bound)
	recordJobMetrics(ctx, res)

	if res.Err != nil {
		r.logger.Warn("job failed",
			slog.String("job", job.ID.String()),
			slog.String("label", job.Label),
			slog.String("error", res.Err.Error()))
	} else {
		r.logger.Debug("job finished",
			slog.String("job", job.ID.String()),
			slog.String("label", job.Label),
			slog.Int("states", res.Stats.States),
			slog.Bool("truncated", res.Stats.Truncated))
	}
	return res
}

func jobName(j Job) string {
	if j.Label != "" {
		return j.Label
	}
	return j.ID.String()
}

// Merge unions the states of every successful result.
func Merge(results []Result) core.SegmentSet {
	out := core.NewSegmentSet()
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		for _, s := range r.States {
			out.Add(s)
		}
	}
	return out
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
