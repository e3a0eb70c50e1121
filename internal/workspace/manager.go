// Package workspace mutates the shared working directories. Both mutating
// operations refuse to run while any job holds an admission slot, so a
// running pipeline never loses a file underneath it.
package workspace

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/admission"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/record"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/storage"
)

// ResetConfirmation is the token clients must echo to authorize a reset.
const ResetConfirmation = "RESET"

// Snapshot is the transient view of workspace contents, recomputed on
// demand by scanning the working directories.
type Snapshot struct {
	ReferenceImages int `json:"reference_images"`
	CachedFiles     int `json:"cached_files"`
	TempUploads     int `json:"temp_uploads"`
	Artifacts       int `json:"artifacts"`
}

// Manager coordinates workspace mutations against active jobs.
type Manager struct {
	files  *storage.FileStore
	store  record.Store
	gate   *admission.Controller
	logger zerolog.Logger
}

func NewManager(files *storage.FileStore, store record.Store, gate *admission.Controller, logger zerolog.Logger) *Manager {
	return &Manager{files: files, store: store, gate: gate, logger: logger}
}

// Status returns current workspace counts.
func (m *Manager) Status(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	artifacts, err := m.files.ListArtifacts()
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ReferenceImages: m.files.CountReferenceImages(),
		CachedFiles:     m.files.CountCachedFiles(),
		TempUploads:     m.files.CountTempUploads(),
		Artifacts:       len(artifacts),
	}, nil
}

// Clean removes cached and temp files but preserves completed artifacts
// and job records. Rejected with Conflict while any job is processing.
func (m *Manager) Clean(ctx context.Context) error {
	if err := m.ensureIdle(); err != nil {
		return err
	}
	if err := m.files.PurgeTransient(); err != nil {
		return err
	}
	m.logger.Info().Msg("workspace cleaned")
	return nil
}

// Reset removes everything: artifacts, reference images, transient files
// and all job records. Irreversible, so the caller must pass the
// confirmation token. Rejected with Conflict while any job is processing.
func (m *Manager) Reset(ctx context.Context, confirm string) error {
	if confirm != ResetConfirmation {
		return fmt.Errorf("%w: reset requires confirm=%q", domain.ErrInvalidInput, ResetConfirmation)
	}
	if err := m.ensureIdle(); err != nil {
		return err
	}

	jobs, err := m.store.Scan(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := m.store.Delete(ctx, job.ID); err != nil {
			return err
		}
	}
	if err := m.files.PurgeAll(); err != nil {
		return err
	}
	m.logger.Warn().Int("records_removed", len(jobs)).Msg("workspace reset")
	return nil
}

// ensureIdle rejects mutations while the accelerator is occupied. A job
// that is queued but not yet admitted holds no slot; its worker re-reads
// the record after admission and aborts if the reset removed it.
func (m *Manager) ensureIdle() error {
	if busy := m.gate.Occupancy(); busy > 0 {
		return fmt.Errorf("%w: %d job(s) still processing", domain.ErrConflict, busy)
	}
	return nil
}
