package moss

import (
	"context"
	"fmt"
	"os"

	"github.com/inferedge/moss-go/internal/rest"
	"github.com/inferedge/moss-go/internal/version"
)

// restDoer is the transport seam, implemented by *rest.Client and swapped
// for mocks in tests.
type restDoer interface {
	Do(ctx context.Context, method, path string, in, out any) error
}

// Client is the Moss SDK entry point.
type Client struct {
	rest restDoer
	obs  *observer
}

// New creates a Moss client from project credentials.
func New(projectID, projectKey string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	userAgent := cfg.userAgent
	if userAgent == "" {
		userAgent = "moss-go/" + version.Version
	}

	rc, err := rest.New(rest.Config{
		ProjectID:  projectID,
		ProjectKey: projectKey,
		BaseURL:    cfg.baseURL,
		UserAgent:  userAgent,
		HTTPClient: cfg.httpClient,
	})
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{rest: rc, obs: obs}, nil
}

// FromEnv creates a client from the MOSS_PROJECT_ID and MOSS_PROJECT_KEY
// environment variables.
func FromEnv(opts ...Option) (*Client, error) {
	projectID := os.Getenv("MOSS_PROJECT_ID")
	projectKey := os.Getenv("MOSS_PROJECT_KEY")
	if projectID == "" || projectKey == "" {
		return nil, fmt.Errorf("moss: MOSS_PROJECT_ID and MOSS_PROJECT_KEY must be set")
	}
	return New(projectID, projectKey, opts...)
}

// Indexes returns the index management service.
func (c *Client) Indexes() *IndexService {
	return &IndexService{rest: c.rest, obs: c.obs}
}

// Documents returns the document service for a given index.
func (c *Client) Documents(index string) *DocumentService {
	return &DocumentService{index: index, rest: c.rest, obs: c.obs}
}

// Search returns the query service for a given index.
func (c *Client) Search(index string) *SearchService {
	return &SearchService{index: index, rest: c.rest, obs: c.obs}
}

// Clustering returns the conversation clustering service.
func (c *Client) Clustering() *ClusteringService {
	return &ClusteringService{rest: c.rest, obs: c.obs}
}
