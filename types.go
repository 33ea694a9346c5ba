package moss

import "time"

// IndexStatus reports the lifecycle state of an index on the service.
type IndexStatus string

// Index status constants.
const (
	IndexStatusCreating IndexStatus = "creating"
	IndexStatusReady    IndexStatus = "ready"
	IndexStatusFailed   IndexStatus = "failed"
)

// Document is a single indexable document.
// Embedding is optional; when set it overrides the vector the service would
// compute with the index model.
type Document struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
}

// ModelInfo identifies the embedding model backing an index.
type ModelInfo struct {
	ID        string `json:"id"`
	Dimension int    `json:"dimension,omitempty"`
}

// IndexInfo is the service-side metadata of an index.
type IndexInfo struct {
	Name      string      `json:"name"`
	DocCount  int         `json:"doc_count"`
	Model     ModelInfo   `json:"model"`
	Status    IndexStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at,omitzero"`
}

// ScoredDocument is a single ranked query hit.
type ScoredDocument struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// QueryResult is a ranked result list plus the latency the service reports.
type QueryResult struct {
	Query       string           `json:"query"`
	Docs        []ScoredDocument `json:"docs"`
	TimeTakenMS float64          `json:"time_taken_ms"`
}

// AddDocsResult reports how an add call split between inserts and upserts.
type AddDocsResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// DeleteDocsResult reports how many documents a delete call removed.
type DeleteDocsResult struct {
	Deleted int `json:"deleted"`
}

// JobStatus is the state of an asynchronous clustering job.
type JobStatus string

// Job status constants.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the job has finished, successfully or not.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is an asynchronous cluster-generation job.
// Progress is in [0, 100]. Error is set when Status is JobFailed.
type Job struct {
	ID       string    `json:"job_id"`
	Index    string    `json:"index"`
	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"`
	Error    string    `json:"error,omitempty"`
}

// Cluster is one conversation cluster produced by a completed job.
type Cluster struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Size   int      `json:"size"`
	DocIDs []string `json:"doc_ids"`
}
