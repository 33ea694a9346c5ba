package mosstest

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultModelID = "moss-minilm"

type storedIndex struct {
	name      string
	model     string
	createdAt time.Time
	loaded    bool
	docs      map[string]storedDoc
	order     []string // insertion order, for stable listings
}

type storedDoc struct {
	id        string
	text      string
	metadata  map[string]string
	embedding []float32
}

type storedJob struct {
	id       string
	index    string
	status   string
	progress float64
	polls    int
	clusters []clusterPayload
}

type clusterPayload struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Size   int      `json:"size"`
	DocIDs []string `json:"doc_ids"`
}

// store is the in-memory state behind the fake server.
type store struct {
	mu      sync.Mutex
	indexes map[string]*storedIndex
	jobs    map[string]*storedJob
	jobSeq  int

	// clusterSteps is how many status polls a job needs to complete.
	clusterSteps int
}

func newStore(clusterSteps int) *store {
	if clusterSteps <= 0 {
		clusterSteps = 3
	}
	return &store{
		indexes:      make(map[string]*storedIndex),
		jobs:         make(map[string]*storedJob),
		clusterSteps: clusterSteps,
	}
}

func (s *store) createIndex(name, model string, docs []docPayload) (indexPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[name]; ok {
		return indexPayload{}, errAlreadyExists
	}
	if model == "" {
		model = defaultModelID
	}
	idx := &storedIndex{
		name:      name,
		model:     model,
		createdAt: time.Now().UTC(),
		docs:      make(map[string]storedDoc),
	}
	for _, d := range docs {
		if _, dup := idx.docs[d.ID]; !dup {
			idx.order = append(idx.order, d.ID)
		}
		idx.docs[d.ID] = d.stored()
	}
	s.indexes[name] = idx
	return indexToPayload(idx), nil
}

func (s *store) getIndexInfo(name string) (indexPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[name]
	if !ok {
		return indexPayload{}, errIndexNotFound
	}
	return indexToPayload(idx), nil
}

func (s *store) listIndexes() []indexPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]indexPayload, 0, len(s.indexes))
	for _, idx := range s.indexes {
		out = append(out, indexToPayload(idx))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *store) loadIndex(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[name]
	if !ok {
		return errIndexNotFound
	}
	idx.loaded = true
	return nil
}

func (s *store) deleteIndex(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; !ok {
		return errIndexNotFound
	}
	delete(s.indexes, name)
	return nil
}

func (s *store) addDocs(name string, docs []docPayload, upsert bool) (added, updated int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[name]
	if !ok {
		return 0, 0, errIndexNotFound
	}
	for _, d := range docs {
		if _, exists := idx.docs[d.ID]; exists {
			if !upsert {
				return 0, 0, fmt.Errorf("%w: duplicate document id %q", errInvalidRequest, d.ID)
			}
			updated++
		} else {
			idx.order = append(idx.order, d.ID)
			added++
		}
		idx.docs[d.ID] = d.stored()
	}
	return added, updated, nil
}

func (s *store) getDocs(name string, ids []string) ([]storedDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[name]
	if !ok {
		return nil, errIndexNotFound
	}
	if len(ids) == 0 {
		out := make([]storedDoc, 0, len(idx.order))
		for _, id := range idx.order {
			out = append(out, idx.docs[id])
		}
		return out, nil
	}
	out := make([]storedDoc, 0, len(ids))
	for _, id := range ids {
		if d, ok := idx.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *store) deleteDocs(name string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[name]
	if !ok {
		return 0, errIndexNotFound
	}
	deleted := 0
	for _, id := range ids {
		if _, ok := idx.docs[id]; !ok {
			continue
		}
		delete(idx.docs, id)
		deleted++
	}
	if deleted > 0 {
		kept := idx.order[:0]
		for _, id := range idx.order {
			if _, ok := idx.docs[id]; ok {
				kept = append(kept, id)
			}
		}
		idx.order = kept
	}
	return deleted, nil
}

func (s *store) startJob(index string) (*storedJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[index]
	if !ok {
		return nil, errIndexNotFound
	}
	s.jobSeq++
	job := &storedJob{
		id:       fmt.Sprintf("job-%d", s.jobSeq),
		index:    index,
		status:   "queued",
		clusters: clusterDocs(idx),
	}
	s.jobs[job.id] = job
	return job, nil
}

// pollJob returns the job and advances it one step toward completion.
// Jobs move queued -> running -> completed over clusterSteps polls.
func (s *store) pollJob(id string) (*storedJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, errJobNotFound
	}
	snapshot := *job

	if job.status != "completed" && job.status != "failed" {
		job.polls++
		job.progress = 100 * float64(job.polls) / float64(s.clusterSteps)
		switch {
		case job.polls >= s.clusterSteps:
			job.status = "completed"
			job.progress = 100
		default:
			job.status = "running"
		}
	}
	return &snapshot, nil
}

func (s *store) jobClusters(id string) ([]clusterPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, errJobNotFound
	}
	if job.status != "completed" {
		return nil, fmt.Errorf("%w: job %s is %s", errInvalidRequest, id, job.status)
	}
	return job.clusters, nil
}

// clusterDocs groups documents by their "category" metadata key, falling
// back to a single catch-all cluster. Deliberately naive: this is test
// scaffolding, not the service's clustering model.
func clusterDocs(idx *storedIndex) []clusterPayload {
	groups := make(map[string][]string)
	for _, id := range idx.order {
		doc := idx.docs[id]
		key := doc.metadata["category"]
		if key == "" {
			key = "general"
		}
		groups[key] = append(groups[key], id)
	}

	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make([]clusterPayload, 0, len(labels))
	for i, label := range labels {
		ids := groups[label]
		out = append(out, clusterPayload{
			ID:     fmt.Sprintf("cluster-%d", i+1),
			Label:  strings.ReplaceAll(label, "_", " "),
			Size:   len(ids),
			DocIDs: ids,
		})
	}
	return out
}
