package model

// SubmitJobResponse is the platform's immediate answer to a render
// submission. The render itself runs asynchronously.
type SubmitJobResponse struct {
	JobID             string `json:"jobId"`
	QueuePosition     int    `json:"queuePosition"`
	EstimatedWaitTime int    `json:"estimatedWaitTime"`
}

// JobUpdate is one status delta for a render job, delivered either by the
// push channel or by a status poll. Pointer fields distinguish "absent from
// this delta" from zero values.
type JobUpdate struct {
	JobID             string       `json:"jobId"`
	Status            JobStatus    `json:"status"`
	Progress          int          `json:"progress"`
	ResultURL         string       `json:"resultUrl,omitempty"`
	ErrorMessage      string       `json:"errorMessage,omitempty"`
	QueuePosition     *int         `json:"queuePosition,omitempty"`
	EstimatedWaitTime *int         `json:"estimatedWaitTime,omitempty"`
	Metadata          *JobMetadata `json:"metadata,omitempty"`
}

// Terminal reports whether the delta carries a final job status.
func (u JobUpdate) Terminal() bool {
	return u.Status == JobStatusCompleted || u.Status == JobStatusFailed
}

// JobMetadata is delivered only with a COMPLETED delta.
type JobMetadata struct {
	DurationSec float64 `json:"durationSec,omitempty"`
	SrtText     string  `json:"srtText,omitempty"`
}

// CaptionsResult is the answer to a caption generation request.
type CaptionsResult struct {
	SrtText       string `json:"srtText"`
	SegmentsCount int    `json:"segmentsCount"`
}
