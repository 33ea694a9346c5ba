package moss

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/inferedge/moss-go/internal/rest"
)

const defaultPollInterval = 2 * time.Second

// ClusteringService runs asynchronous conversation clustering jobs.
type ClusteringService struct {
	rest restDoer
	obs  *observer
}

// WaitOption configures Wait.
type WaitOption interface {
	applyWait(*waitConfig)
}

type waitOptionFunc func(*waitConfig)

func (f waitOptionFunc) applyWait(c *waitConfig) { f(c) }

type waitConfig struct {
	interval   time.Duration
	onProgress func(Job)
}

// PollInterval sets the delay between status polls. Default: 2s.
func PollInterval(d time.Duration) WaitOption {
	return waitOptionFunc(func(c *waitConfig) {
		c.interval = d
	})
}

// OnProgress invokes fn after every poll with the latest job snapshot.
func OnProgress(fn func(Job)) WaitOption {
	return waitOptionFunc(func(c *waitConfig) {
		c.onProgress = fn
	})
}

type startClusteringRequest struct {
	Index string `json:"index"`
}

type clustersResponse struct {
	Clusters []Cluster `json:"clusters"`
}

// Start launches cluster generation over the documents of an index.
func (s *ClusteringService) Start(ctx context.Context, index string) (_ Job, err error) {
	start := time.Now()
	defer func() { s.obs.observe("clustering.start", start, err) }()

	var job Job
	req := startClusteringRequest{Index: index}
	if err = s.rest.Do(ctx, http.MethodPost, "/clustering/jobs", req, &job); err != nil {
		return Job{}, fmt.Errorf("start clustering: %w", err)
	}
	return job, nil
}

// Job fetches the current status of a clustering job.
func (s *ClusteringService) Job(ctx context.Context, jobID string) (_ Job, err error) {
	start := time.Now()
	defer func() { s.obs.observe("clustering.job", start, err) }()

	var job Job
	if err = s.rest.Do(ctx, http.MethodGet, "/clustering/jobs/"+rest.PathEscape(jobID), nil, &job); err != nil {
		return Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Clusters returns the clusters of a completed job.
func (s *ClusteringService) Clusters(ctx context.Context, jobID string) (_ []Cluster, err error) {
	start := time.Now()
	defer func() { s.obs.observe("clustering.clusters", start, err) }()

	var resp clustersResponse
	path := "/clustering/jobs/" + rest.PathEscape(jobID) + "/clusters"
	if err = s.rest.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get clusters: %w", err)
	}
	return resp.Clusters, nil
}

// Wait polls the job until it reaches a terminal state or ctx is done.
// A job ending in the failed state returns the final snapshot together with
// an error wrapping ErrJobFailed.
func (s *ClusteringService) Wait(
	ctx context.Context, jobID string, opts ...WaitOption,
) (_ Job, err error) {
	start := time.Now()
	defer func() { s.obs.observe("clustering.wait", start, err) }()

	cfg := &waitConfig{interval: defaultPollInterval}
	for _, o := range opts {
		o.applyWait(cfg)
	}

	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	for {
		job, err := s.Job(ctx, jobID)
		if err != nil {
			return Job{}, fmt.Errorf("wait for job: %w", err)
		}
		if cfg.onProgress != nil {
			cfg.onProgress(job)
		}
		if job.Status.Terminal() {
			if job.Status == JobFailed {
				return job, fmt.Errorf("wait for job %s: %s: %w", jobID, job.Error, ErrJobFailed)
			}
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, fmt.Errorf("wait for job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}
