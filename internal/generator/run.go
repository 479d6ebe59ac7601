package generator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bookpress/internal/logger"
	"bookpress/internal/render"
	"bookpress/internal/types"
)

// ProgressFunc is called after each job finishes.
type ProgressFunc func(done, total int, result JobResult)

// Options tune how a run executes.
type Options struct {
	OutputDir string
	// Concurrency is the number of jobs rendered at once.
	Concurrency int
	// Verify inspects every written PDF and records its real page count.
	// A file that fails inspection fails its job.
	Verify   bool
	Progress ProgressFunc
}

// JobResult is the outcome of one job.
type JobResult struct {
	Key            JobKey `json:"key"`
	OutputPath     string `json:"output_path"`
	EstimatedPages int    `json:"estimated_pages"`
	ActualPages    int    `json:"actual_pages,omitempty"`
	Err            error  `json:"-"`
	Error          string `json:"error,omitempty"`
}

// OK reports whether the job produced its document.
func (r JobResult) OK() bool {
	return r.Err == nil
}

// Summary reports every job of a run in plan order.
type Summary struct {
	RunID     string        `json:"run_id"`
	Style     string        `json:"style"`
	Results   []JobResult   `json:"results"`
	Warnings  []Warning     `json:"warnings,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Outcomes maps every job key to "ok" or its error text.
func (s *Summary) Outcomes() map[JobKey]string {
	out := make(map[JobKey]string, len(s.Results))
	for _, r := range s.Results {
		if r.OK() {
			out[r.Key] = "ok"
		} else {
			out[r.Key] = r.Err.Error()
		}
	}
	return out
}

// Failed counts failed jobs.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Run plans req and renders every job. Planning errors are returned as is;
// a job that fails or panics is recorded in the summary and the others still
// run.
func (g *Generator) Run(ctx context.Context, req Request) (*Summary, error) {
	started := time.Now()
	plan, err := g.Plan(req)
	if err != nil {
		return nil, err
	}
	summary := g.Execute(ctx, plan)
	summary.StartedAt = started
	summary.Duration = time.Since(started)

	logger.Info("generation finished",
		logger.String("runId", plan.RunID),
		logger.Int("jobs", len(summary.Results)),
		logger.Int("failed", summary.Failed()),
		logger.Int64("durationMs", summary.Duration.Milliseconds()))
	return summary, nil
}

// Execute renders the jobs of an existing plan.
func (g *Generator) Execute(ctx context.Context, plan *Plan) *Summary {
	started := time.Now()
	total := len(plan.Jobs)
	results := make([]JobResult, total)

	sem := make(chan struct{}, g.opts.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for i, job := range plan.Jobs {
		wg.Add(1)
		go func(idx int, job RenderJob) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			res := g.runJob(ctx, job)
			if res.Err != nil {
				res.Error = res.Err.Error()
				logger.Error("render job failed", res.Err,
					logger.String("job", job.Key.String()),
					logger.String("output", job.OutputPath))
			} else {
				logger.Debug("render job finished",
					logger.String("job", job.Key.String()),
					logger.Int("estimatedPages", res.EstimatedPages),
					logger.Int("actualPages", res.ActualPages))
			}

			mu.Lock()
			results[idx] = res
			done++
			completed := done
			mu.Unlock()

			if g.opts.Progress != nil {
				g.opts.Progress(completed, total, res)
			}
		}(i, job)
	}
	wg.Wait()

	return &Summary{
		RunID:     plan.RunID,
		Style:     plan.Style,
		Results:   results,
		Warnings:  plan.Warnings,
		StartedAt: started,
		Duration:  time.Since(started),
	}
}

func (g *Generator) runJob(ctx context.Context, job RenderJob) (res JobResult) {
	res = JobResult{Key: job.Key, OutputPath: job.OutputPath, EstimatedPages: job.EstimatedPages}

	defer func() {
		if r := recover(); r != nil {
			res.Err = types.NewAppErrorWithDetails(types.ErrRenderJob, "render job panicked",
				job.Key.String(), fmt.Errorf("%v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = types.NewAppErrorWithDetails(types.ErrRenderJob, "render job cancelled", job.Key.String(), err)
		return res
	}

	err := g.renderer.Render(ctx, render.Job{
		Style:      job.Style,
		Meta:       job.Meta,
		Chapters:   job.Chapters,
		OutputPath: job.OutputPath,
		Part:       job.Key.Part,
		PartCount:  job.PartCount,
		FormatName: job.Format.Name,
	})
	if err != nil {
		res.Err = types.NewAppErrorWithDetails(types.ErrRenderJob, "render job failed", job.Key.String(), err)
		return res
	}

	if g.opts.Verify {
		report, err := render.Inspect(job.OutputPath)
		if err != nil {
			res.Err = types.NewAppErrorWithDetails(types.ErrRenderJob, "rendered PDF failed verification", job.Key.String(), err)
			return res
		}
		res.ActualPages = report.Pages
	}
	return res
}
