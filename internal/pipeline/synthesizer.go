package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
)

// Cause classifies a stage failure. GPU stage failures are typically
// deterministic, so the runner never retries; the cause decides what the
// client eventually sees in the job record.
type Cause string

const (
	CauseResourceExhausted Cause = "resource_exhausted"
	CauseInvalidInput      Cause = "invalid_input"
	CauseInternal          Cause = "internal"
)

// DomainError maps the cause onto the service error taxonomy.
func (c Cause) DomainError() error {
	switch c {
	case CauseResourceExhausted:
		return domain.ErrResourceExhausted
	case CauseInvalidInput:
		return domain.ErrInvalidInput
	default:
		return domain.ErrInternal
	}
}

// StageError is the typed failure a stage reports. Remaining stages are
// aborted and the cause is recorded on the job.
type StageError struct {
	Stage string
	Cause Cause
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Cause, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageInput carries everything a stage needs: the job identity, the built
// prompt, the validated knobs, and the prior stage's output.
type StageInput struct {
	JobID              string
	Stage              string
	Prompt             string
	Params             domain.Params
	ReferenceImagePath string
	Payload            []byte

	// Progress reports fractional completion of this stage in [0,1].
	// Stages may call it as often as they like; the runner folds the
	// fractions into cumulative job progress.
	Progress func(fraction float64)
}

// StageOutput is the product a stage hands to its successor. The final
// stage's payload becomes the artifact.
type StageOutput struct {
	Payload []byte
}

// Synthesizer is the externally supplied inference routine, invoked once
// per stage. Implementations run on the accelerator and are free to take
// minutes; they should honor ctx for shutdown but may finish the stage
// they are in.
type Synthesizer interface {
	RunStage(ctx context.Context, in StageInput) (StageOutput, error)
}

// NopSynthesizer is an explicit fixed-duration placeholder engine used when
// no real inference endpoint is configured. Each stage sleeps for
// StageDuration in slices and reports real elapsed-time fractions; it never
// fabricates model metrics.
type NopSynthesizer struct {
	StageDuration time.Duration
}

func (n *NopSynthesizer) RunStage(ctx context.Context, in StageInput) (StageOutput, error) {
	total := n.StageDuration
	if total <= 0 {
		total = 50 * time.Millisecond
	}
	const slices = 10
	for i := 1; i <= slices; i++ {
		select {
		case <-ctx.Done():
			return StageOutput{}, ctx.Err()
		case <-time.After(total / slices):
		}
		if in.Progress != nil {
			in.Progress(float64(i) / slices)
		}
	}
	payload := in.Payload
	if in.Stage == "mux" || len(payload) == 0 {
		payload = []byte(fmt.Sprintf("placeholder video for job %s: %q", in.JobID, in.Prompt))
	}
	return StageOutput{Payload: payload}, nil
}
