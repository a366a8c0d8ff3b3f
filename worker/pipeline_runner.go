package worker

import (
	"context"
	"time"

	"curator/internal/pipeline"
)

// Runner performs one complete curation run.
type Runner interface {
	Run(ctx context.Context) pipeline.Report
}

// PipelineRunner runs the pipeline immediately and then on every tick.
// Runs never overlap; a tick that arrives during a run is dropped.
type PipelineRunner struct {
	Pipeline Runner
	Interval time.Duration
	// OnReport, when set, receives every finished report.
	OnReport func(pipeline.Report)
}

func (w *PipelineRunner) Name() string { return "pipeline" }

func (w *PipelineRunner) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 6 * time.Hour
	}

	// initial run
	w.runOnce(ctx)

	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.runOnce(ctx)
		}
	}
}

func (w *PipelineRunner) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	rep := w.Pipeline.Run(ctx)
	if w.OnReport != nil {
		w.OnReport(rep)
	}
}
