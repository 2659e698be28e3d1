// Package poller pulls job status from the platform. It covers the race
// where a job finishes before the push subscription is live, and serves as
// the bounded fallback when the push channel never confirms.
package poller

import (
	"context"
	"log"
	"time"

	"github.com/shortreel/api/internal/model"
)

// StatusFetcher is the pull side of the platform API.
type StatusFetcher interface {
	GetRenderJobStatus(ctx context.Context, projectID, jobID string) (*model.JobUpdate, error)
}

const (
	DefaultInterval = 2 * time.Second
	DefaultCap      = 5 * time.Minute
)

type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration
	cap      time.Duration
}

func New(fetcher StatusFetcher, interval, pollCap time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if pollCap <= 0 {
		pollCap = DefaultCap
	}
	return &Poller{fetcher: fetcher, interval: interval, cap: pollCap}
}

// CheckOnce issues a single immediate status pull.
func (p *Poller) CheckOnce(ctx context.Context, projectID, jobID string) (*model.JobUpdate, error) {
	return p.fetcher.GetRenderJobStatus(ctx, projectID, jobID)
}

// Run polls at the configured interval until deliver reports a terminal
// status, the wall-clock cap is reached, or ctx is cancelled. Reaching the
// cap is silent: the job keeps whatever status it last showed and the user
// can retry manually. Individual poll errors are logged and skipped.
func (p *Poller) Run(ctx context.Context, projectID, jobID string, deliver func(model.JobUpdate) bool) {
	deadline := time.Now().Add(p.cap)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			log.Printf("[Poller] job %s: poll cap reached, stopping", jobID)
			return
		}

		update, err := p.CheckOnce(ctx, projectID, jobID)
		if err != nil {
			log.Printf("[Poller] job %s: poll error: %v", jobID, err)
			continue
		}

		if deliver(*update) {
			return
		}
	}
}
