package mosstest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
)

type testClient struct {
	t   *testing.T
	srv *Server
	key string
}

func newTestClient(t *testing.T, opts ...Option) *testClient {
	t.Helper()
	srv := NewServer(opts...)
	t.Cleanup(srv.Close)
	return &testClient{t: t, srv: srv, key: "any-key"}
}

func (c *testClient) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()
	resp, raw, err := c.doErr(method, path, body)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp, raw
}

// doErr is the goroutine-safe variant: it reports failures as errors
// instead of stopping the test.
func (c *testClient) doErr(method, path string, body any) (*http.Response, []byte, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal body: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.srv.URL()+path, rdr)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, raw, nil
}

func (c *testClient) createIndex(name string, docs ...map[string]any) {
	c.t.Helper()
	resp, raw := c.do("POST", "/indexes", map[string]any{"name": name, "docs": docs})
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("create index: status %d: %s", resp.StatusCode, raw)
	}
}

func TestAuthRequired(t *testing.T) {
	c := newTestClient(t)

	req, _ := http.NewRequest("GET", c.srv.URL()+"/indexes", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without bearer token, got %d", resp.StatusCode)
	}
}

func TestAuthKeyChecked(t *testing.T) {
	c := newTestClient(t, WithProjectKey("secret"))

	resp, raw := c.do("GET", "/indexes", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Code != "unauthorized" {
		t.Errorf("unexpected error body: %s", raw)
	}

	c.key = "secret"
	if resp, _ := c.do("GET", "/indexes", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with right key, got %d", resp.StatusCode)
	}
}

func TestIndexLifecycle(t *testing.T) {
	c := newTestClient(t)
	c.createIndex("idx-b", map[string]any{"id": "d1", "text": "hello"})
	c.createIndex("idx-a")

	resp, _ := c.do("POST", "/indexes", map[string]any{"name": "idx-a"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate index, got %d", resp.StatusCode)
	}

	_, raw := c.do("GET", "/indexes", nil)
	var list struct {
		Indexes []struct {
			Name     string `json:"name"`
			DocCount int    `json:"doc_count"`
		} `json:"indexes"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list.Indexes) != 2 || list.Indexes[0].Name != "idx-a" || list.Indexes[1].Name != "idx-b" {
		t.Errorf("expected name-sorted listing, got %+v", list.Indexes)
	}
	if list.Indexes[1].DocCount != 1 {
		t.Errorf("doc count lost: %+v", list.Indexes[1])
	}

	if resp, _ := c.do("DELETE", "/indexes/idx-a", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 on delete, got %d", resp.StatusCode)
	}
	resp, raw = c.do("GET", "/indexes/idx-a", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d: %s", resp.StatusCode, raw)
	}
}

func TestAddDocsDuplicateWithoutUpsert(t *testing.T) {
	c := newTestClient(t)
	c.createIndex("idx", map[string]any{"id": "d1", "text": "one"})

	resp, raw := c.do("POST", "/indexes/idx/docs", map[string]any{
		"docs": []map[string]any{{"id": "d1", "text": "again"}},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate without upsert, got %d: %s", resp.StatusCode, raw)
	}

	resp, raw = c.do("POST", "/indexes/idx/docs", map[string]any{
		"docs":   []map[string]any{{"id": "d1", "text": "again"}, {"id": "d2", "text": "two"}},
		"upsert": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert failed: %d: %s", resp.StatusCode, raw)
	}
	var res struct{ Added, Updated int }
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Added != 1 || res.Updated != 1 {
		t.Errorf("unexpected counts: %+v", res)
	}
}

func TestGetDocsPreservesInsertionOrder(t *testing.T) {
	c := newTestClient(t)
	c.createIndex("idx",
		map[string]any{"id": "z", "text": "last alphabetically"},
		map[string]any{"id": "a", "text": "first alphabetically"},
	)

	_, raw := c.do("GET", "/indexes/idx/docs", nil)
	var res struct {
		Docs []struct {
			ID string `json:"id"`
		} `json:"docs"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(res.Docs) != 2 || res.Docs[0].ID != "z" || res.Docs[1].ID != "a" {
		t.Errorf("expected insertion order, got %+v", res.Docs)
	}
}

func TestQueryRanking(t *testing.T) {
	c := newTestClient(t)
	c.createIndex("idx",
		map[string]any{"id": "d1", "text": "the refund was processed quickly"},
		map[string]any{"id": "d2", "text": "refund refund refund policy details"},
		map[string]any{"id": "d3", "text": "shipping took two weeks"},
	)

	_, raw := c.do("POST", "/indexes/idx/query", map[string]any{
		"query": "refund policy",
		"top_k": 5,
	})
	var res struct {
		Query string `json:"query"`
		Docs  []struct {
			ID    string  `json:"id"`
			Score float64 `json:"score"`
		} `json:"docs"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Query != "refund policy" {
		t.Errorf("query not echoed: %q", res.Query)
	}
	if len(res.Docs) != 2 {
		t.Fatalf("expected 2 scored docs, got %+v", res.Docs)
	}
	if res.Docs[0].ID != "d2" || res.Docs[1].ID != "d1" {
		t.Errorf("unexpected ranking: %+v", res.Docs)
	}
	if res.Docs[0].Score <= res.Docs[1].Score {
		t.Errorf("scores not descending: %+v", res.Docs)
	}
}

func TestQueryConcurrentWithWrites(t *testing.T) {
	c := newTestClient(t)
	c.createIndex("idx",
		map[string]any{"id": "seed-1", "text": "refund policy overview"},
		map[string]any{"id": "seed-2", "text": "shipping times"},
	)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				resp, raw, err := c.doErr("POST", "/indexes/idx/docs", map[string]any{
					"docs":   []map[string]any{{"id": id, "text": "refund question"}},
					"upsert": true,
				})
				if err != nil {
					t.Errorf("add: %v", err)
					return
				}
				if resp.StatusCode != http.StatusOK {
					t.Errorf("add: %d: %s", resp.StatusCode, raw)
					return
				}
				if i%3 == 0 {
					_, _, _ = c.doErr("DELETE", "/indexes/idx/docs", map[string]any{"doc_ids": []string{id}})
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				resp, raw, err := c.doErr("POST", "/indexes/idx/query", map[string]any{
					"query": "refund policy",
					"top_k": 5,
				})
				if err != nil {
					t.Errorf("query: %v", err)
					return
				}
				if resp.StatusCode != http.StatusOK {
					t.Errorf("query: %d: %s", resp.StatusCode, raw)
					return
				}
				_, _, _ = c.doErr("GET", "/indexes/idx", nil)
				_, _, _ = c.doErr("GET", "/indexes", nil)
			}
		}()
	}
	wg.Wait()
}

func TestQueryMissingIndex(t *testing.T) {
	c := newTestClient(t)
	resp, raw := c.do("POST", "/indexes/nope/query", map[string]any{"query": "q"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", resp.StatusCode, raw)
	}
}

func TestClusteringJobAdvancesPerPoll(t *testing.T) {
	c := newTestClient(t, WithClusterSteps(2))
	c.createIndex("idx",
		map[string]any{"id": "d1", "text": "a", "metadata": map[string]string{"category": "billing"}},
		map[string]any{"id": "d2", "text": "b", "metadata": map[string]string{"category": "billing"}},
		map[string]any{"id": "d3", "text": "c", "metadata": map[string]string{"category": "order_status"}},
	)

	resp, raw := c.do("POST", "/clustering/jobs", map[string]any{"index": "idx"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, raw)
	}
	var job struct {
		JobID    string  `json:"job_id"`
		Status   string  `json:"status"`
		Progress float64 `json:"progress"`
	}
	if err := json.Unmarshal(raw, &job); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if job.Status != "queued" {
		t.Errorf("new job should be queued: %+v", job)
	}

	// Clusters are not available before completion.
	resp, _ = c.do("GET", fmt.Sprintf("/clustering/jobs/%s/clusters", job.JobID), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 before completion, got %d", resp.StatusCode)
	}

	statuses := []string{}
	for i := 0; i < 3; i++ {
		_, raw = c.do("GET", "/clustering/jobs/"+job.JobID, nil)
		var snap struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &snap); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		statuses = append(statuses, snap.Status)
	}
	want := []string{"queued", "running", "completed"}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("poll %d = %s, want %s (all: %v)", i, statuses[i], want[i], statuses)
		}
	}

	_, raw = c.do("GET", fmt.Sprintf("/clustering/jobs/%s/clusters", job.JobID), nil)
	var res struct {
		Clusters []clusterPayload `json:"clusters"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("unmarshal clusters: %v", err)
	}
	if len(res.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %+v", res.Clusters)
	}
	if res.Clusters[0].Label != "billing" || res.Clusters[0].Size != 2 {
		t.Errorf("unexpected first cluster: %+v", res.Clusters[0])
	}
	if res.Clusters[1].Label != "order status" {
		t.Errorf("underscores should become spaces: %+v", res.Clusters[1])
	}
}

func TestJobNotFound(t *testing.T) {
	c := newTestClient(t)
	resp, raw := c.do("GET", "/clustering/jobs/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", resp.StatusCode, raw)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Code != "job_not_found" {
		t.Errorf("unexpected error body: %s", raw)
	}
}
