package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a background capture.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one capture running in the background.
type Job struct {
	ID          string
	Text        string
	Options     RunOptions
	Status      JobStatus
	Result      *Result
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	mu sync.RWMutex
}

// Finished jobs are kept for status lookups until they are older than
// DefaultJobTTL or more than DefaultMaxFinishedJobs have finished.
const (
	DefaultJobTTL          = time.Hour
	DefaultMaxFinishedJobs = 100
)

// JobManager runs captures in the background so an interactive caller does
// not wait for the model. At most concurrency captures run at once.
type JobManager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	pipeline *Pipeline
	slots    chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger

	ttl         time.Duration
	maxFinished int
	now         func() time.Time
}

// NewJobManager creates a job manager over pipeline.
func NewJobManager(pipeline *Pipeline, concurrency int, logger *slog.Logger) *JobManager {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		jobs:     make(map[string]*Job),
		pipeline: pipeline,
		slots:    make(chan struct{}, concurrency),
		logger:   logger,

		ttl:         DefaultJobTTL,
		maxFinished: DefaultMaxFinishedJobs,
		now:         time.Now,
	}
}

// SetRetention changes how long and how many finished jobs are kept.
// Non-positive values keep the current setting.
func (m *JobManager) SetRetention(ttl time.Duration, maxFinished int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl > 0 {
		m.ttl = ttl
	}
	if maxFinished > 0 {
		m.maxFinished = maxFinished
	}
}

// Concurrency returns the configured concurrency level.
func (m *JobManager) Concurrency() int {
	return cap(m.slots)
}

// Submit queues text for capture and returns immediately. The run outlives
// ctx's cancellation but keeps its values.
func (m *JobManager) Submit(ctx context.Context, text string, opts RunOptions) *Job {
	job := &Job{
		ID:        uuid.New().String()[:8], // Short ID for convenience
		Text:      text,
		Options:   opts,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.prune()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.logger.Info("capture job created", "job_id", job.ID, "chars", len(text))

	bgCtx := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("capture job panicked", "job_id", job.ID, "panic", r)
				m.Fail(job, fmt.Errorf("internal panic: %v", r))
			}
		}()

		m.slots <- struct{}{}
		defer func() { <-m.slots }()

		m.SetRunning(job)
		m.Complete(job, m.pipeline.Run(bgCtx, text, opts))
	}()
	return job
}

// prune drops finished jobs past the TTL, then the oldest finished jobs over
// the cap. Pending and running jobs are never dropped. Callers hold m.mu.
func (m *JobManager) prune() {
	cutoff := m.now().Add(-m.ttl)
	type finished struct {
		id string
		at time.Time
	}
	var done []finished
	for id, job := range m.jobs {
		job.mu.RLock()
		at := job.CompletedAt
		job.mu.RUnlock()
		if at == nil {
			continue
		}
		if at.Before(cutoff) {
			delete(m.jobs, id)
			continue
		}
		done = append(done, finished{id: id, at: *at})
	}

	if over := len(done) - m.maxFinished; over > 0 {
		slices.SortFunc(done, func(a, b finished) int { return a.at.Compare(b.at) })
		for _, f := range done[:over] {
			delete(m.jobs, f.id)
		}
	}
}

// Wait blocks until every submitted job has finished.
func (m *JobManager) Wait() {
	m.wg.Wait()
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs, most recent first.
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}

	slices.SortFunc(jobs, func(a, b *Job) int {
		return b.StartedAt.Compare(a.StartedAt)
	})

	return jobs
}

// SetRunning marks job as running.
func (m *JobManager) SetRunning(job *Job) {
	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()
}

// Complete records the pipeline result. A run that failed inside the
// pipeline marks the job failed.
func (m *JobManager) Complete(job *Job, result *Result) {
	job.mu.Lock()
	job.Result = result
	job.Status = JobStatusCompleted
	if !result.Success {
		job.Status = JobStatusFailed
		job.Error = result.Error
	}
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Info("capture job finished", "job_id", job.ID, "success", result.Success, "category", result.Category)
}

// Fail marks job as failed with error.
func (m *JobManager) Fail(job *Job, err error) {
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = err.Error()
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Error("capture job failed", "job_id", job.ID, "error", err)
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Job{
		ID:          j.ID,
		Text:        j.Text,
		Options:     j.Options,
		Status:      j.Status,
		Result:      j.Result,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
