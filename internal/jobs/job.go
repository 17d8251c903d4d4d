package jobs

import "context"

// Job status constants. The manager itself is stage-name-agnostic; these are
// the stages the video pipeline reports.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusScripting  = "scripting"
	StatusRendering  = "rendering"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Progress is the mutable in-flight record for one job.
type Progress struct {
	JobID           string `json:"job_id"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	CurrentStep     string `json:"current_step"`
	Message         string `json:"message"`
	Error           string `json:"error,omitempty"`
}

// ResultFields are the success payload fields a pipeline returns.
type ResultFields struct {
	VideoURL     string         `json:"video_url,omitempty"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	Duration     float64        `json:"duration,omitempty"`
	Script       string         `json:"script,omitempty"`
	SRTContent   string         `json:"srt_content,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Result is the terminal outcome for one job, written at most once.
type Result struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	ResultFields
	Error string `json:"error,omitempty"`
}

// PipelineFunc is the unit of work the manager supervises. It returns the
// success fields on normal completion or an error carrying a human-readable
// message. Blocking stages are fine; each pipeline runs on its own goroutine.
type PipelineFunc func(ctx context.Context, jobID string) (*ResultFields, error)

// Broadcast message types pushed to subscribers.
const (
	MessageTypeConnected = "connected"
	MessageTypeProgress  = "progress"
	MessageTypeComplete  = "complete"
	MessageTypeError     = "error"
	MessageTypePong      = "pong"
)

// ProgressMessage is the push-channel shape for non-terminal updates and the
// initial connected snapshot.
type ProgressMessage struct {
	Type            string `json:"type"`
	JobID           string `json:"job_id"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	CurrentStep     string `json:"current_step"`
	Message         string `json:"message"`
}

// TerminalMessage is the push-channel shape for completion and failure.
type TerminalMessage struct {
	Type   string `json:"type"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	ResultFields
	Error string `json:"error,omitempty"`
}
