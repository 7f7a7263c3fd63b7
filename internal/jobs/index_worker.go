package jobs

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/logger"
	"github.com/cloo-solutions/studyforge/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of attempts for an index job
	MaxRetries = 3
)

// IndexJobRepository defines the interface for index job persistence
type IndexJobRepository interface {
	// GetPendingJobs retrieves and claims pending index jobs
	GetPendingJobs(ctx context.Context) ([]*domain.IndexJob, error)

	// UpdateJobStatus updates the status of an index job
	UpdateJobStatus(ctx context.Context, jobID string, status domain.IndexJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// IndexService embeds documents and records terminal failures
type IndexService interface {
	IndexDocument(ctx context.Context, documentID string) error
	MarkFailed(ctx context.Context, documentID, reason string) error
}

// IndexWorker processes index jobs
type IndexWorker struct {
	repo    IndexJobRepository
	service IndexService
	log     *logger.Logger
}

// NewIndexWorker creates a new IndexWorker instance
func NewIndexWorker(repo IndexJobRepository, service IndexService, log *logger.Logger) *IndexWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &IndexWorker{
		repo:    repo,
		service: service,
		log:     log,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.log.Debug("processing pending index jobs", "count", len(jobs))

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.processJob(ctx, job); err != nil {
			w.log.Error("error processing job", "job_id", job.ID, "error", err)
		}
	}

	return nil
}

func (w *IndexWorker) processJob(ctx context.Context, job *domain.IndexJob) error {
	log := w.log.With("job_id", job.ID, "document_id", job.DocumentID)
	if job.DocumentID == "" {
		return w.failJob(ctx, job, "job has no document_id")
	}

	ctx, span := telemetry.StartTransaction(ctx, "index.job", "queue.process")
	defer span.End()
	span.SetData("document_id", job.DocumentID)

	log.Debug("indexing document")
	if err := w.service.IndexDocument(ctx, job.DocumentID); err != nil {
		span.SetError(err)
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IndexJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Info("index job completed")
	return nil
}

// handleJobFailure retries transient failures and fails the job and its
// document once retries run out or the error cannot be fixed by retrying.
func (w *IndexWorker) handleJobFailure(ctx context.Context, job *domain.IndexJob, jobErr error) error {
	w.log.Warn("index job failed", "job_id", job.ID, "attempt", job.Retries+1, "error", jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if !isRetryable(jobErr) || job.Retries+1 >= MaxRetries {
		reason := jobErr.Error()
		if isRetryable(jobErr) {
			reason = fmt.Sprintf("max retries exceeded: %v", jobErr)
		}
		return w.failJob(ctx, job, reason)
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IndexJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}

func (w *IndexWorker) failJob(ctx context.Context, job *domain.IndexJob, reason string) error {
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IndexJobStatusFailed, reason); err != nil {
		return fmt.Errorf("failed to update job status to failed: %w", err)
	}
	if job.DocumentID == "" {
		return nil
	}
	if err := w.service.MarkFailed(ctx, job.DocumentID, reason); err != nil && domain.CodeOf(err) != domain.ErrCodeNotFound {
		return fmt.Errorf("failed to mark document failed: %w", err)
	}
	return nil
}

// isRetryable reports whether another attempt could succeed. Missing
// documents and invalid state are permanent.
func isRetryable(err error) bool {
	switch domain.CodeOf(err) {
	case domain.ErrCodeNotFound, domain.ErrCodeValidation, domain.ErrCodeInvalidOperation:
		return false
	}
	return true
}
