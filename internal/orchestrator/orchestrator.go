// Package orchestrator drives the job state machine: it accepts
// submissions, acquires admission slots, runs the pipeline and persists
// every transition to the job record store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/admission"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/pipeline"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/record"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/storage"
)

const (
	DefaultTTL      = 24 * time.Hour
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Options configures an Orchestrator.
type Options struct {
	// TTL is the retention window for job records. Defaults to 24h.
	TTL time.Duration
	// MaxDurationSeconds bounds the duration knob at submission.
	MaxDurationSeconds int
}

// Orchestrator owns the job lifecycle. One worker goroutine is spawned per
// submission; the admission controller bounds how many of them run the
// pipeline at once. Only the owning worker ever writes its job's record.
type Orchestrator struct {
	store  record.Store
	files  *storage.FileStore
	runner *pipeline.Runner
	gate   *admission.Controller
	logger zerolog.Logger

	ttl         time.Duration
	maxDuration int

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	workers map[string]*workerHandle
}

// workerHandle tracks a live worker task. done is closed only after the
// worker's final record write, so waiting on it rules out any write
// landing after a subsequent delete.
type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New wires an Orchestrator. Workers derive from an internal base context
// that Shutdown cancels.
func New(store record.Store, files *storage.FileStore, runner *pipeline.Runner, gate *admission.Controller, logger zerolog.Logger, opts Options) *Orchestrator {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxDurationSeconds <= 0 {
		opts.MaxDurationSeconds = 30
	}
	baseCtx, cancelAll := context.WithCancel(context.Background())
	return &Orchestrator{
		store:       store,
		files:       files,
		runner:      runner,
		gate:        gate,
		logger:      logger,
		ttl:         opts.TTL,
		maxDuration: opts.MaxDurationSeconds,
		baseCtx:     baseCtx,
		cancelAll:   cancelAll,
		workers:     make(map[string]*workerHandle),
	}
}

// Gate exposes the admission controller for occupancy checks.
func (o *Orchestrator) Gate() *admission.Controller { return o.gate }

// MaxDurationSeconds returns the configured duration bound.
func (o *Orchestrator) MaxDurationSeconds() int { return o.maxDuration }

// Submit validates the request, persists the initial record in Queued and
// hands the job to a worker task. It returns as soon as the record write is
// acknowledged; pipeline execution never runs on the caller's path.
func (o *Orchestrator) Submit(ctx context.Context, params domain.Params) (*domain.Job, error) {
	params.Normalize()
	if err := params.Validate(o.maxDuration); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:          uuid.NewString(),
		State:       domain.JobStateQueued,
		Progress:    0,
		Params:      params,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := o.store.Put(ctx, job, o.ttl); err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancel(o.baseCtx)
	handle := &workerHandle{cancel: cancel, done: make(chan struct{})}
	o.mu.Lock()
	o.workers[job.ID] = handle
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer close(handle.done)
		o.runJob(jobCtx, *job)
	}()

	o.logger.Info().Str("job_id", job.ID).Msg("job queued")
	return job, nil
}

// GetStatus reads the job record. When the record has expired but the
// artifact still exists, a completed summary is reconstructed from the
// file, matching what clients saw before expiry.
func (o *Orchestrator) GetStatus(ctx context.Context, id string) (*domain.Job, error) {
	job, err := o.store.Get(ctx, id)
	if err == nil {
		return job, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		if info, statErr := o.files.StatArtifact(id); statErr == nil {
			// The original params are gone with the record; the file's
			// timestamps are the only provenance left.
			return &domain.Job{
				ID:          id,
				State:       domain.JobStateCompleted,
				Progress:    1,
				ResultRef:   o.files.ArtifactRef(id),
				SubmittedAt: info.Created,
				UpdatedAt:   info.Created,
				CompletedAt: info.Created,
			}, nil
		}
	}
	return nil, err
}

// List returns one page of jobs ordered newest first, plus the total
// number of live records. page is 1-based.
func (o *Orchestrator) List(ctx context.Context, page, pageSize int) ([]*domain.Job, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	jobs, err := o.store.Scan(ctx)
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].SubmittedAt.Equal(jobs[j].SubmittedAt) {
			return jobs[i].SubmittedAt.After(jobs[j].SubmittedAt)
		}
		return jobs[i].ID > jobs[j].ID
	})

	total := len(jobs)
	start := (page - 1) * pageSize
	if start >= total {
		return []*domain.Job{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return jobs[start:end], total, nil
}

// Cancel requests cooperative cancellation. Legal only from Queued or
// Processing; the job reaches Cancelled at the next stage boundary.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	job, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return fmt.Errorf("%w: job %s is already %s", domain.ErrConflict, id, job.State)
	}

	o.mu.Lock()
	handle, ok := o.workers[id]
	o.mu.Unlock()
	if !ok {
		// No live worker (e.g. process restarted since submission); mark
		// the record directly so the state machine still terminates.
		job.State = domain.JobStateCancelled
		job.UpdatedAt = time.Now().UTC()
		return o.store.Put(ctx, job, o.ttl)
	}
	handle.cancel()
	o.logger.Info().Str("job_id", id).Msg("job cancellation requested")
	return nil
}

// Delete removes the job record and its artifact. A Processing job is
// protected unless force is set, in which case it is cancelled first.
func (o *Orchestrator) Delete(ctx context.Context, id string, force bool) error {
	job, err := o.store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		// Record may have expired while the artifact survived.
		if o.files.HasArtifact(id) {
			return o.files.RemoveArtifact(id)
		}
		return err
	}
	if err != nil {
		return err
	}

	if job.State == domain.JobStateProcessing {
		if !force {
			return fmt.Errorf("%w: job %s is still processing", domain.ErrConflict, id)
		}
		o.mu.Lock()
		handle, ok := o.workers[id]
		o.mu.Unlock()
		if ok {
			handle.cancel()
			// Wait for the worker's final write before removing the
			// record, otherwise it could re-create the record after the
			// delete and the job would linger until TTL expiry.
			select {
			case <-handle.done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if err := o.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := o.files.RemoveArtifact(id); err != nil {
		return err
	}
	o.logger.Info().Str("job_id", id).Bool("force", force).Msg("job deleted")
	return nil
}

// Shutdown stops accepting work from existing workers and waits for them
// to reach a safe checkpoint, bounded by ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancelAll()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runJob is the supervised worker task for one job. The slot is released
// on every exit path, and panics are converted to a Failed record instead
// of crashing the process.
func (o *Orchestrator) runJob(ctx context.Context, job domain.Job) {
	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		delete(o.workers, job.ID)
		o.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Str("job_id", job.ID).Interface("panic", r).Msg("worker panic")
			job.State = domain.JobStateFailed
			job.Error = "internal error"
			o.writeIfLive(&job)
		}
	}()

	if err := o.gate.Acquire(ctx); err != nil {
		// Cancelled or shut down while still queued; no slot was held.
		o.finishCancelled(&job)
		return
	}
	defer o.gate.Release()

	// Re-read after admission: a workspace reset or cancel may have won
	// the race while this job was waiting for a slot.
	current, err := o.store.Get(context.Background(), job.ID)
	if err != nil {
		o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("job record gone before processing, aborting")
		return
	}
	if current.State.Terminal() {
		return
	}
	job = *current

	job.State = domain.JobStateProcessing
	job.Stage = o.runner.Stages()[0].Name
	job.UpdatedAt = time.Now().UTC()
	if err := o.writeIfLive(&job); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist processing transition")
		return
	}
	o.logger.Info().Str("job_id", job.ID).Msg("job processing")

	req := pipeline.Request{
		JobID:              job.ID,
		Params:             job.Params,
		ReferenceImagePath: o.files.ReferenceImagePath(job.Params.ReferenceImage),
	}
	ref, runErr := o.runner.Run(ctx, req, func(stage string, progress float64) {
		if ctx.Err() != nil {
			return
		}
		if progress < job.Progress {
			return
		}
		job.Stage = stage
		job.Progress = progress
		job.UpdatedAt = time.Now().UTC()
		if err := o.writeIfLive(&job); err != nil {
			o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("progress write failed")
		}
	})

	switch {
	case runErr == nil:
		job.State = domain.JobStateCompleted
		job.Progress = 1
		job.ResultRef = ref
		job.Error = ""
		job.CompletedAt = time.Now().UTC()
		job.UpdatedAt = job.CompletedAt
		if err := o.writeIfLive(&job); err != nil {
			o.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist completion")
		}
		o.logger.Info().Str("job_id", job.ID).Str("result", ref).Msg("job completed")

	case errors.Is(runErr, context.Canceled):
		o.finishCancelled(&job)

	default:
		var stageErr *pipeline.StageError
		if errors.As(runErr, &stageErr) {
			job.Error = clientMessage(stageErr)
			o.logger.Error().Err(stageErr.Err).
				Str("job_id", job.ID).
				Str("stage", stageErr.Stage).
				Str("cause", string(stageErr.Cause)).
				Msg("job failed")
		} else {
			job.Error = "internal error"
			o.logger.Error().Err(runErr).Str("job_id", job.ID).Msg("job failed")
		}
		job.State = domain.JobStateFailed
		job.CompletedAt = time.Now().UTC()
		job.UpdatedAt = job.CompletedAt
		if err := o.writeIfLive(&job); err != nil {
			o.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist failure")
		}
	}
}

// finishCancelled marks the job Cancelled and removes any partial
// artifact. If the record was deleted underneath us (force delete,
// workspace reset) the write is suppressed so nothing is resurrected.
func (o *Orchestrator) finishCancelled(job *domain.Job) {
	_ = o.files.RemoveArtifact(job.ID)
	job.State = domain.JobStateCancelled
	job.Error = ""
	job.ResultRef = ""
	job.CompletedAt = time.Now().UTC()
	job.UpdatedAt = job.CompletedAt
	if err := o.writeIfLive(job); err != nil {
		o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("failed to persist cancellation")
	} else {
		o.logger.Info().Str("job_id", job.ID).Msg("job cancelled")
	}
}

// writeIfLive persists the record unless it no longer exists in the store.
// Uses a background context: terminal transitions must be recorded even
// while the job's own context is cancelled.
func (o *Orchestrator) writeIfLive(job *domain.Job) error {
	ctx := context.Background()
	if _, err := o.store.Get(ctx, job.ID); errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return o.store.Put(ctx, job, o.ttl)
}

// clientMessage derives the user-visible error description, hiding raw
// internal detail for unexpected failures.
func clientMessage(e *pipeline.StageError) string {
	switch e.Cause {
	case pipeline.CauseResourceExhausted:
		return fmt.Sprintf("stage %s: accelerator out of capacity", e.Stage)
	case pipeline.CauseInvalidInput:
		return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
	default:
		return fmt.Sprintf("stage %s: internal error", e.Stage)
	}
}
