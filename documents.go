package moss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/inferedge/moss-go/internal/rest"
)

// DocumentService manages documents inside one index.
type DocumentService struct {
	index string
	rest  restDoer
	obs   *observer
}

// AddOption configures document addition.
type AddOption interface {
	applyAdd(*addConfig)
}

type addOptionFunc func(*addConfig)

func (f addOptionFunc) applyAdd(c *addConfig) { f(c) }

type addConfig struct {
	upsert bool
}

// Upsert makes Add overwrite documents whose IDs already exist instead of
// rejecting them.
func Upsert() AddOption {
	return addOptionFunc(func(c *addConfig) {
		c.upsert = true
	})
}

// GetOption configures document retrieval.
type GetOption interface {
	applyGet(*getConfig)
}

type getOptionFunc func(*getConfig)

func (f getOptionFunc) applyGet(c *getConfig) { f(c) }

type getConfig struct {
	docIDs []string
}

// WithDocIDs restricts Get to the given document IDs.
// Without it, Get returns every document in the index.
func WithDocIDs(ids ...string) GetOption {
	return getOptionFunc(func(c *getConfig) {
		c.docIDs = ids
	})
}

type addDocsRequest struct {
	Docs   []Document `json:"docs"`
	Upsert bool       `json:"upsert,omitempty"`
}

type getDocsResponse struct {
	Docs []Document `json:"docs"`
}

type deleteDocsRequest struct {
	DocIDs []string `json:"doc_ids"`
}

// Add appends documents to the index.
func (s *DocumentService) Add(
	ctx context.Context, docs []Document, opts ...AddOption,
) (_ AddDocsResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("docs.add", start, err) }()

	cfg := &addConfig{}
	for _, o := range opts {
		o.applyAdd(cfg)
	}

	var res AddDocsResult
	req := addDocsRequest{Docs: docs, Upsert: cfg.upsert}
	if err = s.rest.Do(ctx, http.MethodPost, s.path("/docs"), req, &res); err != nil {
		return AddDocsResult{}, fmt.Errorf("add docs: %w", err)
	}
	return res, nil
}

// Get retrieves documents, all of them or a subset via WithDocIDs.
func (s *DocumentService) Get(
	ctx context.Context, opts ...GetOption,
) (_ []Document, err error) {
	start := time.Now()
	defer func() { s.obs.observe("docs.get", start, err) }()

	cfg := &getConfig{}
	for _, o := range opts {
		o.applyGet(cfg)
	}

	path := s.path("/docs")
	if len(cfg.docIDs) > 0 {
		// One ids parameter per document, so IDs may contain any character.
		q := url.Values{}
		for _, id := range cfg.docIDs {
			q.Add("ids", id)
		}
		path += "?" + q.Encode()
	}

	var resp getDocsResponse
	if err = s.rest.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get docs: %w", err)
	}
	return resp.Docs, nil
}

// Delete removes documents by ID.
func (s *DocumentService) Delete(
	ctx context.Context, ids ...string,
) (_ DeleteDocsResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("docs.delete", start, err) }()

	var res DeleteDocsResult
	req := deleteDocsRequest{DocIDs: ids}
	if err = s.rest.Do(ctx, http.MethodDelete, s.path("/docs"), req, &res); err != nil {
		return DeleteDocsResult{}, fmt.Errorf("delete docs: %w", err)
	}
	return res, nil
}

func (s *DocumentService) path(suffix string) string {
	return "/indexes/" + rest.PathEscape(s.index) + suffix
}
