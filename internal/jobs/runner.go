package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/capmis/capmis-console/internal/observability"
)

type Job func(ctx context.Context) error

type Runner struct {
	ctx context.Context
}

func New(ctx context.Context) *Runner { return &Runner{ctx: ctx} }

// Every runs fn on a ticker until the runner's context ends. A panicking
// job is reported and the loop keeps going.
func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				start := time.Now()
				func() {
					defer func() {
						if rec := recover(); rec != nil {
							jobErrors.WithLabelValues(name).Inc()
							observability.CaptureErr(fmt.Errorf("panic in job %s: %v", name, rec))
						}
					}()
					if err := fn(r.ctx); err != nil {
						jobErrors.WithLabelValues(name).Inc()
					}
				}()
				jobRuns.WithLabelValues(name).Inc()
				jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			}
		}
	}()
}
