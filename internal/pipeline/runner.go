// Package pipeline wraps the external inference routine as an ordered
// sequence of named stages with weighted progress reporting.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/storage"
)

// Stage is one discrete unit of pipeline work. Weights sum to 1.0 and
// determine how much of the cumulative progress bar each stage owns.
type Stage struct {
	Name   string
	Weight float64
}

// DefaultStages mirrors the generation pipeline: text encoding, diffusion
// sampling, spatial upscaling, audio/video muxing and final post-processing.
// Sampling dominates wall-clock time, hence its weight.
func DefaultStages() []Stage {
	return []Stage{
		{Name: "encode", Weight: 0.15},
		{Name: "synthesize", Weight: 0.45},
		{Name: "upscale", Weight: 0.20},
		{Name: "mux", Weight: 0.10},
		{Name: "post-process", Weight: 0.10},
	}
}

// Request identifies one pipeline execution.
type Request struct {
	JobID              string
	Params             domain.Params
	ReferenceImagePath string
}

// ProgressFunc receives write-through progress updates. progress is
// cumulative over the whole pipeline, monotone non-decreasing in [0,1].
type ProgressFunc func(stage string, progress float64)

// Runner executes the stage sequence against the supplied Synthesizer and
// hands the final product to the artifact store.
type Runner struct {
	synth  Synthesizer
	store  *storage.FileStore
	stages []Stage
	logger zerolog.Logger
}

// NewRunner wires a Runner over the given engine and artifact store.
// stages may be nil to use DefaultStages.
func NewRunner(synth Synthesizer, store *storage.FileStore, stages []Stage, logger zerolog.Logger) *Runner {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	return &Runner{synth: synth, store: store, stages: stages, logger: logger}
}

// Stages returns the configured stage list.
func (r *Runner) Stages() []Stage { return r.stages }

// Run executes all stages in order. On success the final payload is stored
// and the artifact reference returned. A stage failure aborts the rest and
// surfaces as a *StageError; cancellation surfaces as context.Canceled and
// is only observed at stage boundaries (a stage already underway on the
// accelerator runs to completion first).
func (r *Runner) Run(ctx context.Context, req Request, onProgress ProgressFunc) (string, error) {
	var (
		payload   []byte
		completed float64
		reported  float64
	)

	report := func(stage string, p float64) {
		if p < reported {
			return
		}
		if p > 1 {
			p = 1
		}
		reported = p
		if onProgress != nil {
			onProgress(stage, p)
		}
	}

	prompt := BuildPrompt(req.Params, req.ReferenceImagePath != "")

	for _, stage := range r.stages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		report(stage.Name, completed)

		in := StageInput{
			JobID:              req.JobID,
			Stage:              stage.Name,
			Prompt:             prompt,
			Params:             req.Params,
			ReferenceImagePath: req.ReferenceImagePath,
			Payload:            payload,
			Progress: func(fraction float64) {
				if fraction < 0 {
					fraction = 0
				}
				if fraction > 1 {
					fraction = 1
				}
				report(stage.Name, completed+stage.Weight*fraction)
			},
		}

		r.logger.Debug().Str("job_id", req.JobID).Str("stage", stage.Name).Msg("pipeline: stage start")
		out, err := r.synth.RunStage(ctx, in)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", context.Canceled
			}
			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				stageErr = &StageError{Stage: stage.Name, Cause: CauseInternal, Err: err}
			}
			r.logger.Error().Err(err).Str("job_id", req.JobID).Str("stage", stage.Name).Msg("pipeline: stage failed")
			return "", stageErr
		}

		payload = out.Payload
		completed += stage.Weight
		report(stage.Name, completed)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", &StageError{
			Stage: r.stages[len(r.stages)-1].Name,
			Cause: CauseInternal,
			Err:   fmt.Errorf("pipeline produced no output"),
		}
	}

	ref, err := r.store.WriteArtifact(ctx, req.JobID, payload)
	if err != nil {
		return "", &StageError{Stage: "post-process", Cause: CauseInternal, Err: err}
	}
	report(r.stages[len(r.stages)-1].Name, 1)
	return ref, nil
}
