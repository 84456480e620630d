package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/cartoprint/api/internal/model"
	"github.com/cartoprint/api/internal/render"
)

const (
	TaskTypePrint = "print:process"

	jobKeyPrefix = "print:job:"
	jobSeqKey    = "print:job:seq"
	jobTTL       = 24 * time.Hour
)

// QueueError marks an infrastructure failure during submit, as opposed to a
// spec configuration error which is the caller's fault.
type QueueError struct {
	Err error
}

func (e *QueueError) Error() string { return e.Err.Error() }

func (e *QueueError) Unwrap() error { return e.Err }

// PrintService dispatches print jobs: it allocates job identities, persists
// job state and hands the rendering work to the background queue.
type PrintService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
}

func NewPrintService(redisClient *redis.Client, asynqClient *asynq.Client) *PrintService {
	return &PrintService{
		redis:       redisClient,
		asynqClient: asynqClient,
	}
}

// SubmitPrint validates a print spec, allocates a strictly increasing job id
// and enqueues the render. Configuration errors (unknown layer type,
// unresolvable projection) are surfaced here, before any rendering begins.
func (s *PrintService) SubmitPrint(ctx context.Context, spec *model.PrintSpec) (*model.PrintSubmitResponse, error) {
	if err := render.ValidateSpec(spec); err != nil {
		return nil, err
	}

	jobID, err := s.redis.Incr(ctx, jobSeqKey).Result()
	if err != nil {
		return nil, &QueueError{Err: fmt.Errorf("failed to allocate job id: %w", err)}
	}

	now := time.Now()
	job := &model.Job{
		ID:        jobID,
		Spec:      *spec,
		Status:    model.JobStatusPending,
		Progress:  0,
		CreatedAt: now,
	}

	// A job never waits for an explicit start: it goes ongoing on submit.
	job.Status = model.JobStatusOngoing
	job.StartedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return nil, &QueueError{Err: fmt.Errorf("failed to save job: %w", err)}
	}

	task, err := newPrintTask(jobID, spec)
	if err != nil {
		return nil, &QueueError{Err: fmt.Errorf("failed to create task: %w", err)}
	}

	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("print"),
		asynq.MaxRetry(3),
		asynq.Retention(jobTTL),
	)
	if err != nil {
		return nil, &QueueError{Err: fmt.Errorf("failed to enqueue task: %w", err)}
	}

	return &model.PrintSubmitResponse{
		JobID:     jobID,
		Status:    job.Status,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the current status of a print job
func (s *PrintService) GetStatus(ctx context.Context, jobID int64) (*model.PrintStatus, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return statusOf(job), nil
}

// GetResult returns the result descriptor of a finished print job
func (s *PrintService) GetResult(ctx context.Context, jobID int64) (*model.PrintStatus, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusFinished {
		return nil, fmt.Errorf("job not completed")
	}
	return statusOf(job), nil
}

// UpdateJobProgress updates job progress (called by worker). Progress never
// decreases once written.
func (s *PrintService) UpdateJobProgress(ctx context.Context, jobID int64, progress float64) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == model.JobStatusFinished || progress <= job.Progress {
		return nil
	}
	job.Progress = progress
	return s.saveJob(ctx, job)
}

// CompleteJob marks a job finished with its artifact and any accumulated
// source load errors. The transition is idempotent: a finished job is never
// rewritten.
func (s *PrintService) CompleteJob(ctx context.Context, jobID int64, imageKey, imageURL string, loadErrors []model.SourceLoadError) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == model.JobStatusFinished {
		return nil
	}

	job.Status = model.JobStatusFinished
	job.Progress = 1
	job.ImageKey = imageKey
	job.ImageURL = imageURL
	job.SourceLoadErrors = loadErrors
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// StoreImage keeps the encoded artifact next to the job so it can be served
// directly when no object storage is configured.
func (s *PrintService) StoreImage(ctx context.Context, jobID int64, data []byte) error {
	return s.redis.Set(ctx, imageKey(jobID), data, jobTTL).Err()
}

// GetImage returns the stored artifact bytes.
func (s *PrintService) GetImage(ctx context.Context, jobID int64) ([]byte, error) {
	data, err := s.redis.Get(ctx, imageKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("image not found")
		}
		return nil, err
	}
	return data, nil
}

// Helper methods

func statusOf(job *model.Job) *model.PrintStatus {
	return &model.PrintStatus{
		ID:               job.ID,
		Status:           job.Status,
		Progress:         job.Progress,
		ImageURL:         job.ImageURL,
		SourceLoadErrors: job.SourceLoadErrors,
	}
}

func (s *PrintService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, fmt.Sprintf("%s%d", jobKeyPrefix, job.ID), data, jobTTL).Err()
}

func (s *PrintService) getJob(ctx context.Context, jobID int64) (*model.Job, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf("%s%d", jobKeyPrefix, jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("job not found")
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func imageKey(jobID int64) string {
	return fmt.Sprintf("%s%d:image", jobKeyPrefix, jobID)
}

// PrintTaskPayload is the asynq task body for one print job.
type PrintTaskPayload struct {
	JobID int64            `json:"jobId"`
	Spec  *model.PrintSpec `json:"spec"`
}

func newPrintTask(jobID int64, spec *model.PrintSpec) (*asynq.Task, error) {
	data, err := json.Marshal(PrintTaskPayload{JobID: jobID, Spec: spec})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePrint, data), nil
}
