package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJobJSONElidesUnsetCompletionTime(t *testing.T) {
	job := Job{
		ID:          "j1",
		State:       JobStateQueued,
		Params:      validParams(),
		SubmittedAt: time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal() = %v, want nil", err)
	}
	if strings.Contains(string(data), "completed_at") {
		t.Fatalf("queued job serialized a completion time: %s", data)
	}

	job.State = JobStateCompleted
	job.CompletedAt = time.Now().UTC()
	data, err = json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal() = %v, want nil", err)
	}
	if !strings.Contains(string(data), "completed_at") {
		t.Fatalf("completed job lost its completion time: %s", data)
	}
}
