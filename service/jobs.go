package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/piyawatt/invoice-ocr-service/dto"
	"github.com/piyawatt/invoice-ocr-service/logger"
)

// JobManager runs batch extractions in the background and tracks their
// state in memory. Jobs do not survive a restart.
type JobManager struct {
	batch *BatchService
	log   zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]*dto.JobInfo
}

// NewJobManager creates a job manager on top of a batch runner.
func NewJobManager(batch *BatchService) *JobManager {
	return &JobManager{
		batch: batch,
		log:   logger.With("jobs"),
		jobs:  make(map[string]*dto.JobInfo),
	}
}

// Start launches a batch run and returns its job descriptor immediately.
func (m *JobManager) Start(ctx context.Context, opts BatchOptions) *dto.JobInfo {
	job := &dto.JobInfo{
		ID:        uuid.NewString(),
		Status:    dto.JobPending,
		SourceDir: opts.SourceDir,
		OutputDir: opts.OutputDir,
		Pages:     opts.Pages,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	opts.OnProgress = func(done, total int) {
		m.mu.Lock()
		job.FilesDone = done
		job.FilesTotal = total
		m.mu.Unlock()
	}

	go m.run(ctx, job.ID, opts)

	return m.snapshot(job.ID)
}

func (m *JobManager) run(ctx context.Context, id string, opts BatchOptions) {
	m.mu.Lock()
	job := m.jobs[id]
	job.Status = dto.JobRunning
	job.StartedAt = time.Now().Format(time.RFC3339)
	m.mu.Unlock()

	summary, err := m.batch.Run(ctx, opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	job.FinishedAt = time.Now().Format(time.RFC3339)
	if err != nil {
		job.Status = dto.JobFailed
		job.Error = err.Error()
		m.log.Error().Err(err).Str("job", id).Msg("job failed")
		return
	}
	job.Status = dto.JobCompleted
	job.FilesTotal = summary.FilesTotal
	job.FilesDone = summary.FilesTotal
	job.RowsWritten = summary.RowsWritten
	m.log.Info().Str("job", id).Int("rows", summary.RowsWritten).Msg("job completed")
}

// Get returns a copy of the job's current state.
func (m *JobManager) Get(id string) (*dto.JobInfo, error) {
	if job := m.snapshot(id); job != nil {
		return job, nil
	}
	return nil, dto.ErrJobNotFound
}

// List returns copies of all known jobs.
func (m *JobManager) List() []dto.JobInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]dto.JobInfo, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

func (m *JobManager) snapshot(id string) *dto.JobInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}
