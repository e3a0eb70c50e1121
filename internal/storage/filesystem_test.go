package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() = %v, want nil", err)
	}
	return store
}

func TestWriteAndOpenArtifact(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ref, err := store.WriteArtifact(ctx, "job-1", []byte("video-bytes"))
	if err != nil {
		t.Fatalf("WriteArtifact() = %v, want nil", err)
	}
	if ref != "outputs/job-1.mp4" {
		t.Fatalf("ref = %q, want %q", ref, "outputs/job-1.mp4")
	}

	rc, info, err := store.OpenArtifact("job-1")
	if err != nil {
		t.Fatalf("OpenArtifact() = %v, want nil", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Fatalf("artifact content = %q, want %q", data, "video-bytes")
	}
	if info.Size != int64(len("video-bytes")) {
		t.Fatalf("Size = %d, want %d", info.Size, len("video-bytes"))
	}
	if !store.HasArtifact("job-1") {
		t.Fatalf("HasArtifact() = false after write")
	}
}

func TestOpenMissingArtifact(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.OpenArtifact("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("OpenArtifact() = %v, want ErrNotFound", err)
	}
}

func TestStatArtifact(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.StatArtifact("job-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("StatArtifact() before write = %v, want ErrNotFound", err)
	}

	if _, err := store.WriteArtifact(ctx, "job-1", []byte("video-bytes")); err != nil {
		t.Fatalf("WriteArtifact() = %v, want nil", err)
	}
	info, err := store.StatArtifact("job-1")
	if err != nil {
		t.Fatalf("StatArtifact() = %v, want nil", err)
	}
	if info.Size != int64(len("video-bytes")) {
		t.Fatalf("Size = %d, want %d", info.Size, len("video-bytes"))
	}
	if info.Created.IsZero() {
		t.Fatalf("Created is zero")
	}
}

func TestRemoveArtifactIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.WriteArtifact(ctx, "job-2", []byte("x")); err != nil {
		t.Fatalf("WriteArtifact() = %v, want nil", err)
	}
	if err := store.RemoveArtifact("job-2"); err != nil {
		t.Fatalf("RemoveArtifact() = %v, want nil", err)
	}
	if store.HasArtifact("job-2") {
		t.Fatalf("artifact still present after remove")
	}
	if err := store.RemoveArtifact("job-2"); err != nil {
		t.Fatalf("second RemoveArtifact() = %v, want nil", err)
	}
}

func TestListArtifactsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, id := range []string{"old", "new"} {
		if _, err := store.WriteArtifact(ctx, id, []byte(id)); err != nil {
			t.Fatalf("WriteArtifact(%s) = %v, want nil", id, err)
		}
	}
	infos, err := store.ListArtifacts()
	if err != nil {
		t.Fatalf("ListArtifacts() = %v, want nil", err)
	}
	if len(infos) != 2 {
		t.Fatalf("ListArtifacts() returned %d entries, want 2", len(infos))
	}
}

func TestSaveReferenceImage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	key, err := store.SaveReferenceImage(ctx, "job-3", ".PNG", []byte{0x89})
	if err != nil {
		t.Fatalf("SaveReferenceImage() = %v, want nil", err)
	}
	if key != "reference/job-3_avatar.png" {
		t.Fatalf("key = %q, want %q", key, "reference/job-3_avatar.png")
	}
	if store.CountReferenceImages() != 1 {
		t.Fatalf("CountReferenceImages() = %d, want 1", store.CountReferenceImages())
	}

	if _, err := store.SaveReferenceImage(ctx, "job-3", ".gif", nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("SaveReferenceImage(gif) = %v, want ErrInvalidInput", err)
	}
}

func TestPurgeTransientPreservesOutputs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.WriteArtifact(ctx, "keep", []byte("v")); err != nil {
		t.Fatalf("WriteArtifact() = %v, want nil", err)
	}
	if _, err := store.SaveReferenceImage(ctx, "keep", ".png", []byte("i")); err != nil {
		t.Fatalf("SaveReferenceImage() = %v, want nil", err)
	}

	if err := store.PurgeTransient(); err != nil {
		t.Fatalf("PurgeTransient() = %v, want nil", err)
	}
	if !store.HasArtifact("keep") {
		t.Fatalf("PurgeTransient removed a completed artifact")
	}
	if store.CountReferenceImages() != 1 {
		t.Fatalf("PurgeTransient removed reference images")
	}
	if store.CountTempUploads() != 0 || store.CountCachedFiles() != 0 {
		t.Fatalf("transient files survived purge")
	}

	if err := store.PurgeAll(); err != nil {
		t.Fatalf("PurgeAll() = %v, want nil", err)
	}
	if store.HasArtifact("keep") || store.CountReferenceImages() != 0 {
		t.Fatalf("PurgeAll left files behind")
	}
}

func TestValidateIDRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"", "../evil", "a/b", `a\b`} {
		if _, err := store.WriteArtifact(context.Background(), id, nil); err == nil {
			t.Fatalf("WriteArtifact(%q) accepted an unsafe id", id)
		}
	}
}
