package model

// Draft types
type DraftType string

const (
	DraftTypeDialogue DraftType = "dialogue"
	DraftTypeNarrator DraftType = "narrator"
)

var ValidDraftTypes = []DraftType{DraftTypeDialogue, DraftTypeNarrator}

// Render status as seen by the draft / UI
type RenderStatus string

const (
	// RenderStatusNone means no job has been submitted for this draft yet.
	RenderStatusNone      RenderStatus = ""
	RenderStatusQueued    RenderStatus = "QUEUED"
	RenderStatusRendering RenderStatus = "RENDERING"
	RenderStatusReady     RenderStatus = "READY"
	RenderStatusFailed    RenderStatus = "FAILED"
)

// Job status as reported by the render platform
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job types
type JobType string

const (
	JobTypePreview JobType = "PREVIEW"
	JobTypeFinal   JobType = "FINAL"
)

// Subtitle styles
type SubtitleStyle string

const (
	SubtitleStyleClassic SubtitleStyle = "classic"
	SubtitleStyleBold    SubtitleStyle = "bold"
	SubtitleStyleNeon    SubtitleStyle = "neon"
	SubtitleStyleMinimal SubtitleStyle = "minimal"
)

// Subtitle positions
type SubtitlePosition string

const (
	SubtitlePositionTop    SubtitlePosition = "top"
	SubtitlePositionMiddle SubtitlePosition = "middle"
	SubtitlePositionBottom SubtitlePosition = "bottom"
)

// Character slots
type CharacterSlot string

const (
	CharacterSlotA CharacterSlot = "A"
	CharacterSlotB CharacterSlot = "B"
)
