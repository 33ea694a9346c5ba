package moss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

// jobSequence serves a scripted series of job snapshots, one per poll.
func jobSequence(t *testing.T, jobs ...Job) *mockRest {
	t.Helper()
	polls := 0
	return &mockRest{DoFunc: func(_ context.Context, method, path string, _, out any) error {
		if method != "GET" {
			t.Fatalf("unexpected %s %s during wait", method, path)
		}
		job := jobs[min(polls, len(jobs)-1)]
		polls++
		raw, _ := json.Marshal(job)
		return json.Unmarshal(raw, out)
	}}
}

func TestClusteringStart(t *testing.T) {
	mock := &mockRest{DoFunc: respond(t, `{
		"job_id": "job-1", "index": "conversations", "status": "queued", "progress": 0
	}`)}
	client := newTestClient(mock)

	job, err := client.Clustering().Start(context.Background(), "conversations")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.ID != "job-1" || job.Status != JobQueued {
		t.Errorf("unexpected job: %+v", job)
	}
	call := mock.lastCall(t)
	if call.method != "POST" || call.path != "/clustering/jobs" {
		t.Errorf("unexpected request: %s %s", call.method, call.path)
	}
}

func TestClusteringWait(t *testing.T) {
	mock := jobSequence(t,
		Job{ID: "job-1", Status: JobQueued},
		Job{ID: "job-1", Status: JobRunning, Progress: 50},
		Job{ID: "job-1", Status: JobCompleted, Progress: 100},
	)
	client := newTestClient(mock)

	var seen []JobStatus
	job, err := client.Clustering().Wait(context.Background(), "job-1",
		PollInterval(time.Millisecond),
		OnProgress(func(j Job) { seen = append(seen, j.Status) }),
	)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if job.Status != JobCompleted || job.Progress != 100 {
		t.Errorf("unexpected final job: %+v", job)
	}
	want := []JobStatus{JobQueued, JobRunning, JobCompleted}
	if len(seen) != len(want) {
		t.Fatalf("expected %d progress callbacks, got %d", len(want), len(seen))
	}
	for i, s := range want {
		if seen[i] != s {
			t.Errorf("progress[%d] = %s, want %s", i, seen[i], s)
		}
	}
}

func TestClusteringWaitFailedJob(t *testing.T) {
	mock := jobSequence(t,
		Job{ID: "job-2", Status: JobRunning},
		Job{ID: "job-2", Status: JobFailed, Error: "not enough documents"},
	)
	client := newTestClient(mock)

	job, err := client.Clustering().Wait(context.Background(), "job-2",
		PollInterval(time.Millisecond))
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if job.Status != JobFailed || job.Error != "not enough documents" {
		t.Errorf("unexpected final job: %+v", job)
	}
}

func TestClusteringWaitContextCanceled(t *testing.T) {
	mock := jobSequence(t, Job{ID: "job-3", Status: JobRunning})
	client := newTestClient(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Clustering().Wait(ctx, "job-3", PollInterval(time.Hour))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClusteringWaitPollError(t *testing.T) {
	mock := &mockRest{DoFunc: func(context.Context, string, string, any, any) error {
		return fmt.Errorf("boom: %w", ErrJobNotFound)
	}}
	client := newTestClient(mock)

	_, err := client.Clustering().Wait(context.Background(), "gone",
		PollInterval(time.Millisecond))
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestClusteringClusters(t *testing.T) {
	mock := &mockRest{DoFunc: respond(t, `{"clusters": [
		{"id": "cluster-1", "label": "billing", "size": 2, "doc_ids": ["a", "b"]},
		{"id": "cluster-2", "label": "shipping", "size": 1, "doc_ids": ["c"]}
	]}`)}
	client := newTestClient(mock)

	clusters, err := client.Clustering().Clusters(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Clusters: %v", err)
	}
	if len(clusters) != 2 || clusters[0].Label != "billing" || clusters[0].Size != 2 {
		t.Errorf("unexpected clusters: %+v", clusters)
	}
	call := mock.lastCall(t)
	if call.path != "/clustering/jobs/job-1/clusters" {
		t.Errorf("unexpected path: %s", call.path)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	for status, want := range map[JobStatus]bool{
		JobQueued:    false,
		JobRunning:   false,
		JobCompleted: true,
		JobFailed:    true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
