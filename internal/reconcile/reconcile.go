// Package reconcile merges incoming render-job deltas into draft render
// state. Both the push channel and the status poller feed through Apply, so
// duplicate or out-of-order deliveries can never regress visible state.
package reconcile

import "github.com/shortreel/api/internal/model"

// Guard carries per-field dirty flags tracked since job submission. A dirty
// field was edited by the user while the job was in flight and must not be
// overwritten by job metadata.
type Guard struct {
	SubtitleDirty bool
	DurationDirty bool
}

// Result is the outcome of reconciling one delta.
type Result struct {
	State model.RenderState

	// Applied is false when the delta was stale (older status, or a job id
	// that is not the one currently tracked) and State equals the input.
	Applied bool

	// SubtitleText carries generated subtitles to adopt when SubtitleSet is
	// true. Subtitles live on the draft, not in RenderState, so they are
	// returned alongside it.
	SubtitleText string
	SubtitleSet  bool
}

// ClientStatus maps the platform's job vocabulary onto the draft's.
func ClientStatus(s model.JobStatus) model.RenderStatus {
	switch s {
	case model.JobStatusPending:
		return model.RenderStatusQueued
	case model.JobStatusProcessing:
		return model.RenderStatusRendering
	case model.JobStatusCompleted:
		return model.RenderStatusReady
	case model.JobStatusFailed:
		return model.RenderStatusFailed
	default:
		return model.RenderStatusNone
	}
}

// rank orders statuses along the allowed transition graph
// none → QUEUED → RENDERING → {READY, FAILED}.
func rank(s model.RenderStatus) int {
	switch s {
	case model.RenderStatusQueued:
		return 1
	case model.RenderStatusRendering:
		return 2
	case model.RenderStatusReady, model.RenderStatusFailed:
		return 3
	default:
		return 0
	}
}

// Apply merges one job delta into the current render state. It only ever
// touches render-derived fields; script, overlays and settings are out of
// its reach by construction.
func Apply(cur model.RenderState, u model.JobUpdate, g Guard) Result {
	stale := Result{State: cur}

	// A delta for a job we are no longer tracking must not be applied.
	if u.JobID != "" && cur.JobID != "" && u.JobID != cur.JobID {
		return stale
	}

	next := ClientStatus(u.Status)
	if next == model.RenderStatusNone {
		return stale
	}
	if rank(next) < rank(cur.Status) {
		return stale
	}
	// Terminal states never flip into one another.
	if cur.Terminal() && next != cur.Status {
		return stale
	}

	out := cur
	out.Status = next

	if u.Progress > out.Progress {
		out.Progress = u.Progress
	}

	if next == model.RenderStatusQueued {
		if u.QueuePosition != nil {
			out.QueuePosition = *u.QueuePosition
		}
		if u.EstimatedWaitTime != nil {
			out.EstimatedWaitTime = *u.EstimatedWaitTime
		}
	} else {
		out.QueuePosition = 0
		out.EstimatedWaitTime = 0
	}

	res := Result{Applied: true}

	switch next {
	case model.RenderStatusReady:
		out.Progress = 100
		// Result URLs are write-once per job: only a non-empty value from a
		// completed job may replace them.
		if u.ResultURL != "" {
			if cur.JobType == model.JobTypeFinal {
				out.FinalURL = u.ResultURL
			} else {
				out.PreviewURL = u.ResultURL
			}
		}
		if u.Metadata != nil && cur.JobType != model.JobTypeFinal {
			if u.Metadata.DurationSec > 0 && !g.DurationDirty {
				out.DurationSec = u.Metadata.DurationSec
			}
			if u.Metadata.SrtText != "" && !g.SubtitleDirty {
				res.SubtitleText = u.Metadata.SrtText
				res.SubtitleSet = true
			}
		}
	case model.RenderStatusFailed:
		if u.ErrorMessage != "" {
			out.ErrorMessage = u.ErrorMessage
		}
	}

	res.State = out
	return res
}
