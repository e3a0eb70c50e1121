// Package storage owns the on-disk layout for generated media and the
// shared working directories the pipeline reads from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
)

// Directory names under the store root. Artifacts live in a single flat
// output directory; everything else is transient working state.
const (
	dirOutputs   = "outputs"
	dirReference = "reference"
	dirTemp      = "temp"
	dirCache     = "cache"

	artifactExt = ".mp4"
)

// FileStore persists artifacts and working files onto the local
// filesystem, rooted at a single base path.
type FileStore struct {
	basePath string
}

// ArtifactInfo describes one stored output file.
type ArtifactInfo struct {
	JobID    string    `json:"job_id"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
}

// NewFileStore initializes a FileStore rooted at basePath and ensures the
// working directories exist.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	for _, dir := range []string{dirOutputs, dirReference, dirTemp, dirCache} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0o755); err != nil {
			return nil, fmt.Errorf("storage: ensure %s: %w", dir, err)
		}
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// artifactName derives the stable output filename for a job.
func artifactName(jobID string) string { return jobID + artifactExt }

// ArtifactRef returns the stable reference under which a job's artifact is
// addressable, whether or not the file exists yet.
func (s *FileStore) ArtifactRef(jobID string) string {
	return dirOutputs + "/" + artifactName(jobID)
}

func (s *FileStore) artifactPath(jobID string) string {
	return filepath.Join(s.basePath, dirOutputs, artifactName(jobID))
}

// WriteArtifact persists the final video bytes for a job and returns the
// stable artifact reference. The file is written to the temp directory
// first and renamed into place so a crash never leaves a partial artifact
// under its final name.
func (s *FileStore) WriteArtifact(ctx context.Context, jobID string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateID(jobID); err != nil {
		return "", err
	}
	tmp := filepath.Join(s.basePath, dirTemp, artifactName(jobID)+".partial")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write artifact: %w", err)
	}
	if err := os.Rename(tmp, s.artifactPath(jobID)); err != nil {
		return "", fmt.Errorf("storage: publish artifact: %w", err)
	}
	return s.ArtifactRef(jobID), nil
}

// OpenArtifact opens the stored video for streaming. Returns
// domain.ErrNotFound when the artifact was never produced or was deleted.
func (s *FileStore) OpenArtifact(jobID string) (io.ReadCloser, *ArtifactInfo, error) {
	if err := validateID(jobID); err != nil {
		return nil, nil, err
	}
	path := s.artifactPath(jobID)
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("storage: stat artifact: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: open artifact: %w", err)
	}
	info := &ArtifactInfo{
		JobID:    jobID,
		Filename: artifactName(jobID),
		Size:     fi.Size(),
		Created:  fi.ModTime(),
	}
	return f, info, nil
}

// StatArtifact returns artifact metadata without opening the file.
// Returns domain.ErrNotFound when the artifact does not exist.
func (s *FileStore) StatArtifact(jobID string) (*ArtifactInfo, error) {
	if err := validateID(jobID); err != nil {
		return nil, err
	}
	fi, err := os.Stat(s.artifactPath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: stat artifact: %w", err)
	}
	return &ArtifactInfo{
		JobID:    jobID,
		Filename: artifactName(jobID),
		Size:     fi.Size(),
		Created:  fi.ModTime(),
	}, nil
}

// HasArtifact reports whether the job's output file exists.
func (s *FileStore) HasArtifact(jobID string) bool {
	if validateID(jobID) != nil {
		return false
	}
	_, err := os.Stat(s.artifactPath(jobID))
	return err == nil
}

// RemoveArtifact deletes the job's output file. Removing a missing
// artifact is not an error.
func (s *FileStore) RemoveArtifact(jobID string) error {
	if err := validateID(jobID); err != nil {
		return err
	}
	if err := os.Remove(s.artifactPath(jobID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns all stored outputs, newest first.
func (s *FileStore) ListArtifacts() ([]ArtifactInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, dirOutputs))
	if err != nil {
		return nil, fmt.Errorf("storage: list artifacts: %w", err)
	}
	var infos []ArtifactInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), artifactExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, ArtifactInfo{
			JobID:    strings.TrimSuffix(e.Name(), artifactExt),
			Filename: e.Name(),
			Size:     fi.Size(),
			Created:  fi.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Created.After(infos[j].Created) })
	return infos, nil
}

// SaveReferenceImage stores an uploaded avatar image for a job and returns
// its storage key. ext must include the leading dot.
func (s *FileStore) SaveReferenceImage(ctx context.Context, jobID, ext string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateID(jobID); err != nil {
		return "", err
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	switch ext {
	case ".png", ".jpg", ".jpeg":
	default:
		return "", fmt.Errorf("%w: unsupported image type %q", domain.ErrInvalidInput, ext)
	}
	key := dirReference + "/" + jobID + "_avatar" + ext
	if err := os.WriteFile(filepath.Join(s.basePath, filepath.FromSlash(key)), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: save reference image: %w", err)
	}
	return key, nil
}

// ReferenceImagePath resolves a stored reference key to an absolute path.
func (s *FileStore) ReferenceImagePath(key string) string {
	if key == "" {
		return ""
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// CountReferenceImages, CountCachedFiles and CountTempUploads back the
// workspace status snapshot. Counts are recomputed on every call.
func (s *FileStore) CountReferenceImages() int { return s.countDir(dirReference) }
func (s *FileStore) CountCachedFiles() int     { return s.countDir(dirCache) }
func (s *FileStore) CountTempUploads() int     { return s.countDir(dirTemp) }

func (s *FileStore) countDir(dir string) int {
	entries, err := os.ReadDir(filepath.Join(s.basePath, dir))
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

// PurgeTransient removes cached and temp files but preserves completed
// artifacts and reference images.
func (s *FileStore) PurgeTransient() error {
	for _, dir := range []string{dirCache, dirTemp} {
		if err := s.purgeDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// PurgeAll removes every stored file: artifacts, reference images, cache
// and temp uploads. Irreversible.
func (s *FileStore) PurgeAll() error {
	for _, dir := range []string{dirOutputs, dirReference, dirCache, dirTemp} {
		if err := s.purgeDir(dir); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) purgeDir(dir string) error {
	root := filepath.Join(s.basePath, dir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("storage: purge %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			return fmt.Errorf("storage: purge %s: %w", dir, err)
		}
	}
	return nil
}

// validateID rejects identifiers that could escape the storage root.
func validateID(jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return errors.New("storage: job id is required")
	}
	if strings.ContainsAny(jobID, "/\\") || strings.Contains(jobID, "..") {
		return fmt.Errorf("storage: invalid job id %q", jobID)
	}
	return nil
}
