package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventPublisher pushes terminal job events to an external broker.
// shared/rabbitmq.Client satisfies it. A nil publisher disables events.
type EventPublisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// JobEvent is the broker payload emitted when a job reaches a terminal state.
type JobEvent struct {
	Event    string  `json:"event"`
	JobID    string  `json:"job_id"`
	Status   string  `json:"status"`
	VideoURL string  `json:"video_url,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Error    string  `json:"error,omitempty"`
}

const publishTimeout = 5 * time.Second

// Manager owns the progress and result stores and supervises pipeline
// execution. All store mutations go through the manager; pipelines never
// touch the maps directly. Records live for the process lifetime.
type Manager struct {
	mu       sync.RWMutex
	progress map[string]*Progress
	results  map[string]*Result
	started  map[string]struct{}

	hub       *Hub
	publisher EventPublisher
	logger    *slog.Logger

	// Caps the number of concurrently running pipelines. A job waiting for
	// a slot stays queued; Start itself never blocks the caller.
	slots chan struct{}
}

// NewManager creates a job manager. concurrency bounds in-flight pipelines;
// values below 1 are treated as 1. publisher may be nil.
func NewManager(logger *slog.Logger, hub *Hub, publisher EventPublisher, concurrency int) *Manager {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Manager{
		progress:  make(map[string]*Progress),
		results:   make(map[string]*Result),
		started:   make(map[string]struct{}),
		hub:       hub,
		publisher: publisher,
		logger:    logger,
		slots:     make(chan struct{}, concurrency),
	}
}

// Hub exposes the subscription registry for the websocket handler.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// CreateJob mints a fresh job ID and inserts its initial progress record.
func (m *Manager) CreateJob() string {
	jobID := uuid.New().String()

	m.mu.Lock()
	m.progress[jobID] = &Progress{
		JobID:           jobID,
		Status:          StatusQueued,
		ProgressPercent: 0,
		CurrentStep:     "queued",
		Message:         "Job created, waiting to start...",
	}
	m.mu.Unlock()

	m.logger.Info("Job created",
		slog.String("job_id", jobID),
	)

	return jobID
}

// Start schedules fn for jobID without blocking the caller. Exactly one
// pipeline runs per job; a second Start for the same job is ignored.
func (m *Manager) Start(ctx context.Context, jobID string, fn PipelineFunc) {
	m.mu.Lock()
	if _, exists := m.progress[jobID]; !exists {
		m.mu.Unlock()
		m.logger.Warn("Start called for unknown job",
			slog.String("job_id", jobID),
		)
		return
	}
	if _, dup := m.started[jobID]; dup {
		m.mu.Unlock()
		m.logger.Warn("Start called twice for job, ignoring",
			slog.String("job_id", jobID),
		)
		return
	}
	m.started[jobID] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case m.slots <- struct{}{}:
		case <-ctx.Done():
			m.SetResult(jobID, nil, fmt.Sprintf("Job failed: %s", ctx.Err()))
			m.UpdateProgress(jobID, StatusFailed, 0, "failed", "Job canceled before start")
			return
		}
		defer func() { <-m.slots }()

		m.run(ctx, jobID, fn)
	}()
}

// run is the supervising wrapper: it converts pipeline faults into recorded
// state. No error escapes it.
func (m *Manager) run(ctx context.Context, jobID string, fn PipelineFunc) {
	defer func() {
		if r := recover(); r != nil {
			errMsg := fmt.Sprintf("Job failed: panic: %v", r)
			m.logger.Error("Pipeline panicked",
				slog.String("job_id", jobID),
				slog.Any("panic", r),
			)
			m.SetResult(jobID, nil, errMsg)
			m.UpdateProgress(jobID, StatusFailed, 0, "failed", errMsg)
		}
	}()

	m.UpdateProgress(jobID, StatusProcessing, 5, "starting", "Starting video generation...")

	fields, err := fn(ctx, jobID)
	if err != nil {
		errMsg := fmt.Sprintf("Job failed: %s", err.Error())
		m.logger.Error("Pipeline failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		m.SetResult(jobID, nil, errMsg)
		m.UpdateProgress(jobID, StatusFailed, 0, "failed", errMsg)
		return
	}

	m.SetResult(jobID, fields, "")
}

// UpdateProgress overwrites the mutable progress fields for jobID and
// broadcasts the new snapshot. Unknown jobs are a silent no-op.
func (m *Manager) UpdateProgress(jobID, status string, percent int, step, message string) {
	m.mu.Lock()
	p, ok := m.progress[jobID]
	if !ok {
		m.mu.Unlock()
		return
	}
	p.Status = status
	p.ProgressPercent = percent
	p.CurrentStep = step
	p.Message = message
	m.mu.Unlock()

	m.logger.Debug("Job progress",
		slog.String("job_id", jobID),
		slog.String("status", status),
		slog.Int("percent", percent),
		slog.String("step", step),
	)

	m.hub.Broadcast(jobID, ProgressMessage{
		Type:            MessageTypeProgress,
		JobID:           jobID,
		Status:          status,
		ProgressPercent: percent,
		CurrentStep:     step,
		Message:         message,
	})
}

// SetResult writes the terminal result exactly once, syncs the progress
// record to the terminal state, broadcasts a terminal message, and publishes
// a job event when a publisher is configured. An empty errMsg means success.
func (m *Manager) SetResult(jobID string, fields *ResultFields, errMsg string) {
	status := StatusCompleted
	if errMsg != "" {
		status = StatusFailed
	}

	result := &Result{
		JobID:  jobID,
		Status: status,
		Error:  errMsg,
	}
	if fields != nil {
		result.ResultFields = *fields
	}

	m.mu.Lock()
	if _, dup := m.results[jobID]; dup {
		m.mu.Unlock()
		m.logger.Warn("Result already set for job, ignoring",
			slog.String("job_id", jobID),
		)
		return
	}
	m.results[jobID] = result

	if p, ok := m.progress[jobID]; ok {
		p.Status = status
		if errMsg != "" {
			p.ProgressPercent = 0
			p.Error = errMsg
		} else {
			p.ProgressPercent = 100
		}
	}
	m.mu.Unlock()

	m.logger.Info("Job finished",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)

	msgType := MessageTypeComplete
	if errMsg != "" {
		msgType = MessageTypeError
	}
	terminal := TerminalMessage{
		Type:   msgType,
		JobID:  jobID,
		Status: status,
		Error:  errMsg,
	}
	if fields != nil {
		terminal.ResultFields = *fields
	}
	m.hub.Broadcast(jobID, terminal)

	m.publishEvent(result)
}

// publishEvent pushes a terminal job event to the broker. Best-effort:
// failures are logged and never affect job state.
func (m *Manager) publishEvent(result *Result) {
	if m.publisher == nil {
		return
	}

	event := JobEvent{
		Event:    "job." + result.Status,
		JobID:    result.JobID,
		Status:   result.Status,
		VideoURL: result.VideoURL,
		Duration: result.Duration,
		Error:    result.Error,
	}

	body, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("Failed to encode job event",
			slog.String("job_id", result.JobID),
			slog.String("error", err.Error()),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := m.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		m.logger.Warn("Failed to publish job event",
			slog.String("job_id", result.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// GetProgress returns a snapshot of the progress record for jobID.
func (m *Manager) GetProgress(jobID string) (Progress, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.progress[jobID]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// GetResult returns the terminal result for jobID, if it has one.
func (m *Manager) GetResult(jobID string) (Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.results[jobID]
	if !ok {
		return Result{}, false
	}
	return *r, true
}
