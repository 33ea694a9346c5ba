package docsearch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	moss "github.com/inferedge/moss-go"
)

// uploadBatchSize caps how many documents one add call carries.
const uploadBatchSize = 100

// indexAPI is the slice of the Moss SDK the build step needs.
type indexAPI interface {
	Ensure(ctx context.Context, name string, docs []moss.Document, opts ...moss.IndexOption) (moss.IndexInfo, error)
}

type documentAPI interface {
	Add(ctx context.Context, docs []moss.Document, opts ...moss.AddOption) (moss.AddDocsResult, error)
	Delete(ctx context.Context, ids ...string) (moss.DeleteDocsResult, error)
}

// Indexer is the build-time half of the docs-search integration: it chunks
// a markdown tree and keeps a Moss index in sync with it.
type Indexer struct {
	indexName string
	indexes   indexAPI
	documents documentAPI
	manifest  *Manifest
	logger    *zap.Logger
	maxLen    int
	model     string
}

// IndexerOption configures the Indexer.
type IndexerOption func(*Indexer)

// WithChunkLen sets the character budget per chunk.
func WithChunkLen(n int) IndexerOption {
	return func(ix *Indexer) { ix.maxLen = n }
}

// WithIndexModel selects the embedding model when the index is first created.
func WithIndexModel(id string) IndexerOption {
	return func(ix *Indexer) { ix.model = id }
}

// WithIndexerLogger enables progress logging.
func WithIndexerLogger(l *zap.Logger) IndexerOption {
	return func(ix *Indexer) { ix.logger = l }
}

// NewIndexer builds an Indexer bound to a client, target index and manifest.
func NewIndexer(client *moss.Client, indexName string, manifest *Manifest, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		indexName: indexName,
		indexes:   client.Indexes(),
		documents: client.Documents(indexName),
		manifest:  manifest,
		logger:    zap.NewNop(),
		maxLen:    DefaultMaxChunkLen,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	Files     int
	Chunks    int
	Uploaded  int
	Unchanged int
	Deleted   int
}

// Sync walks the markdown tree under dir, uploads new and changed chunks
// with upsert, and deletes remote chunks whose source is gone. The manifest
// is updated as uploads succeed, so an interrupted run resumes where it
// stopped.
func (ix *Indexer) Sync(ctx context.Context, dir string) (SyncResult, error) {
	chunks, files, err := ChunkDir(dir, ix.maxLen)
	if err != nil {
		return SyncResult{}, err
	}

	known, err := ix.manifest.Hashes()
	if err != nil {
		return SyncResult{}, err
	}

	res := SyncResult{Files: files, Chunks: len(chunks)}

	var pending []Chunk
	current := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		current[c.ID] = struct{}{}
		if known[c.ID] == c.Hash() {
			res.Unchanged++
			continue
		}
		pending = append(pending, c)
	}

	var opts []moss.IndexOption
	if ix.model != "" {
		opts = append(opts, moss.WithModel(ix.model))
	}
	if _, err := ix.indexes.Ensure(ctx, ix.indexName, nil, opts...); err != nil {
		return res, fmt.Errorf("ensure index %s: %w", ix.indexName, err)
	}

	for start := 0; start < len(pending); start += uploadBatchSize {
		end := min(start+uploadBatchSize, len(pending))
		batch := pending[start:end]

		if _, err := ix.documents.Add(ctx, ToDocuments(batch), moss.Upsert()); err != nil {
			return res, fmt.Errorf("upload chunks: %w", err)
		}
		for _, c := range batch {
			if err := ix.manifest.Record(c.ID, c.Path, c.Hash()); err != nil {
				return res, err
			}
			res.Uploaded++
		}
		ix.logger.Info("uploaded chunk batch",
			zap.String("index", ix.indexName),
			zap.Int("batch", len(batch)),
			zap.Int("total", res.Uploaded),
		)
	}

	var stale []string
	for id := range known {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	if len(stale) > 0 {
		if _, err := ix.documents.Delete(ctx, stale...); err != nil {
			return res, fmt.Errorf("delete stale chunks: %w", err)
		}
		if err := ix.manifest.Forget(stale...); err != nil {
			return res, err
		}
		res.Deleted = len(stale)
		ix.logger.Info("deleted stale chunks",
			zap.String("index", ix.indexName),
			zap.Int("count", len(stale)),
		)
	}

	return res, nil
}

// ChunkDir chunks every markdown file under dir. Paths in the returned
// chunks are relative to dir with forward slashes.
func ChunkDir(dir string, maxLen int) (chunks []Chunk, files int, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files++
		chunks = append(chunks, ChunkMarkdown(string(content), filepath.ToSlash(rel), maxLen)...)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk docs dir %s: %w", dir, err)
	}
	return chunks, files, nil
}
