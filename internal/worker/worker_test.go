package worker

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTaskPayloadShape(t *testing.T) {
	b, err := json.Marshal(Task{DocumentID: "doc-1", JobID: "job-1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"document_id":"doc-1","job_id":"job-1"}`
	if string(b) != want {
		t.Errorf("payload = %s, want %s", b, want)
	}

	var task Task
	if err := json.Unmarshal([]byte(want), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.DocumentID != "doc-1" || task.JobID != "job-1" {
		t.Errorf("task = %+v", task)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	w := New(Config{}, nil, nil, nil, nil)
	if w.cfg.Concurrency != 2 {
		t.Errorf("concurrency = %d, want 2", w.cfg.Concurrency)
	}
	if w.cfg.BlockTimeout != 5*time.Second {
		t.Errorf("block timeout = %v, want 5s", w.cfg.BlockTimeout)
	}
}
