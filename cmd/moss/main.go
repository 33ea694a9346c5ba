// Command moss is a thin CLI over the Moss SDK: index lifecycle, document
// operations, queries and docs-search sync, sequenced the same way the
// sample scripts do.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	moss "github.com/inferedge/moss-go"
	"github.com/inferedge/moss-go/docsearch"
	"github.com/inferedge/moss-go/internal/config"
	logpkg "github.com/inferedge/moss-go/internal/logger"
	"github.com/inferedge/moss-go/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	client, err := newClient(cfg)
	if err != nil {
		logger.Fatal("failed to create client", zap.Error(err))
	}

	ctx := context.Background()
	app := &app{cfg: cfg, client: client, logger: logger}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "indexes":
		err = app.listIndexes(ctx)
	case "create":
		err = app.createIndex(ctx, args)
	case "get":
		err = app.getIndex(ctx, args)
	case "load":
		err = app.loadIndex(ctx, args)
	case "delete":
		err = app.deleteIndex(ctx, args)
	case "query":
		err = app.query(ctx, args)
	case "add":
		err = app.addDocs(ctx, args)
	case "docs":
		err = app.getDocs(ctx, args)
	case "delete-docs":
		err = app.deleteDocs(ctx, args)
	case "docs-sync":
		err = app.docsSync(ctx, args)
	case "docs-search":
		err = app.docsSearch(ctx, args)
	case "cluster":
		err = app.cluster(ctx, args)
	case "version":
		fmt.Printf("moss %s (%s)\n", version.Version, version.Commit)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("command failed", zap.String("command", cmd), zap.Error(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: moss <command> [flags]

commands:
  indexes                    list indexes
  create      -index -file   create an index from a JSON document file
  get         -index         show index info
  load        -index         load an index for querying
  delete      -index         delete an index
  query       -index -q      semantic search
  add         -index -file   add documents (upsert)
  docs        -index [-ids]  fetch documents
  delete-docs -index -ids    delete documents by id
  docs-sync   -dir           sync a markdown tree into the docs index
  docs-search -q             query the docs index
  cluster     -index         run a clustering job and print clusters
  version                    print version`)
}

type app struct {
	cfg    config.Config
	client *moss.Client
	logger *zap.Logger
}

func newClient(cfg config.Config) (*moss.Client, error) {
	var opts []moss.Option
	if cfg.API.BaseURL != "" {
		opts = append(opts, moss.WithBaseURL(cfg.API.BaseURL))
	}
	return moss.New(cfg.Project.ID, cfg.Project.Key, opts...)
}

func (a *app) indexName(flagVal string) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	if a.cfg.Index.Name != "" {
		return a.cfg.Index.Name, nil
	}
	return "", fmt.Errorf("no index given: pass -index or set index.name in config")
}

func (a *app) listIndexes(ctx context.Context) error {
	indexes, err := a.client.Indexes().List(ctx)
	if err != nil {
		return err
	}
	if len(indexes) == 0 {
		fmt.Println("no indexes")
		return nil
	}
	for _, idx := range indexes {
		fmt.Printf("%-32s %6d docs  %-8s %s\n", idx.Name, idx.DocCount, idx.Status, idx.Model.ID)
	}
	return nil
}

func (a *app) createIndex(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	index := fs.String("index", "", "index name")
	file := fs.String("file", "", "JSON file with documents")
	model := fs.String("model", a.cfg.Index.Model, "embedding model id")
	_ = fs.Parse(args)

	name, err := a.indexName(*index)
	if err != nil {
		return err
	}
	docs, err := readDocsFile(*file)
	if err != nil {
		return err
	}

	var opts []moss.IndexOption
	if *model != "" {
		opts = append(opts, moss.WithModel(*model))
	}
	info, err := a.client.Indexes().Create(ctx, name, docs, opts...)
	if err != nil {
		return err
	}
	fmt.Printf("created index %s with %d docs (model %s)\n", info.Name, info.DocCount, info.Model.ID)
	return nil
}

func (a *app) getIndex(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	index := fs.String("index", "", "index name")
	_ = fs.Parse(args)

	name, err := a.indexName(*index)
	if err != nil {
		return err
	}
	info, err := a.client.Indexes().Get(ctx, name)
	if err != nil {
		return err
	}
	fmt.Printf("name:      %s\ndocs:      %d\nmodel:     %s\nstatus:    %s\ncreated:   %s\n",
		info.Name, info.DocCount, info.Model.ID, info.Status, info.CreatedAt.Format(time.RFC3339))
	return nil
}

func (a *app) loadIndex(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	index := fs.String("index", "", "index name")
	_ = fs.Parse(args)

	name, err := a.indexName(*index)
	if err != nil {
		return err
	}
	loaded, err := a.client.Indexes().Load(ctx, name)
	if err != nil {
		return err
	}
	fmt.Printf("loaded index %s\n", loaded)
	return nil
}

func (a *app) deleteIndex(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	index := fs.String("index", "", "index name")
	_ = fs.Parse(args)

	name, err := a.indexName(*index)
	if err != nil {
		return err
	}
	if err := a.client.Indexes().Delete(ctx, name); err != nil {
		return err
	}
	fmt.Printf("deleted index %s\n", name)
	return nil
}

func (a *app) query(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	index := fs.String("index", "", "index name")
	q := fs.String("q", "", "query text")
	topK := fs.Int("k", a.cfg.Index.TopK, "number of results")
	alpha := fs.Float64("alpha", -1, "semantic/keyword blend (0..1)")
	_ = fs.Parse(args)

	name, err := a.indexName(*index)
	if err != nil {
		return err
	}
	if *q == "" {
		return fmt.Errorf("query: -q is required")
	}

	opts := []moss.QueryOption{moss.TopK(*topK)}
	if *alpha >= 0 {
		opts = append(opts, moss.Alpha(*alpha))
	} else if a.cfg.Index.Alpha != nil {
		opts = append(opts, moss.Alpha(*a.cfg.Index.Alpha))
	}

	res, err := a.client.Search(name).Query(ctx, *q, opts...)
	if err != nil {
		return err
	}
	fmt.Printf("%d results in %.1f ms\n", len(res.Docs), res.TimeTakenMS)
	for i, d := range res.Docs {
		fmt.Printf("%d. [%s] score %.3f\n   %s\n", i+1, d.ID, d.Score, preview(d.Text, 100))
	}
	return nil
}

func (a *app) addDocs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	index := fs.String("index", "", "index name")
	file := fs.String("file", "", "JSON file with documents")
	_ = fs.Parse(args)

	name, err := a.indexName(*index)
	if err != nil {
		return err
	}
	docs, err := readDocsFile(*file)
	if err != nil {
		return err
	}
	res, err := a.client.Documents(name).Add(ctx, docs, moss.Upsert())
	if err != nil {
		return err
	}
	fmt.Printf("added %d, updated %d\n", res.Added, res.Updated)
	return nil
}

func (a *app) getDocs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("docs", flag.ExitOnError)
	index := fs.String("index", "", "index name")
	ids := fs.String("ids", "", "comma-separated document ids (default: all)")
	_ = fs.Parse(args)

	name, err := a.indexName(*index)
	if err != nil {
		return err
	}
	var opts []moss.GetOption
	if *ids != "" {
		opts = append(opts, moss.WithDocIDs(splitIDs(*ids)...))
	}
	docs, err := a.client.Documents(name).Get(ctx, opts...)
	if err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Printf("[%s] %s\n", d.ID, preview(d.Text, 100))
	}
	fmt.Printf("%d documents\n", len(docs))
	return nil
}

func (a *app) deleteDocs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete-docs", flag.ExitOnError)
	index := fs.String("index", "", "index name")
	ids := fs.String("ids", "", "comma-separated document ids")
	_ = fs.Parse(args)

	name, err := a.indexName(*index)
	if err != nil {
		return err
	}
	if *ids == "" {
		return fmt.Errorf("delete-docs: -ids is required")
	}
	res, err := a.client.Documents(name).Delete(ctx, splitIDs(*ids)...)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d documents\n", res.Deleted)
	return nil
}

func (a *app) docsSync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("docs-sync", flag.ExitOnError)
	dir := fs.String("dir", a.cfg.Docs.Dir, "markdown tree to index")
	_ = fs.Parse(args)

	if *dir == "" {
		return fmt.Errorf("docs-sync: -dir is required (or set docs.dir in config)")
	}
	indexName := a.cfg.Docs.IndexName
	if indexName == "" {
		return fmt.Errorf("docs-sync: docs.index_name must be set in config")
	}

	manifest, err := docsearch.OpenManifest(a.cfg.Docs.ManifestPath)
	if err != nil {
		return err
	}
	defer manifest.Close()

	ix := docsearch.NewIndexer(a.client, indexName, manifest,
		docsearch.WithChunkLen(a.cfg.Docs.MaxChunkLen),
		docsearch.WithIndexModel(a.cfg.Index.Model),
		docsearch.WithIndexerLogger(a.logger),
	)
	res, err := ix.Sync(ctx, *dir)
	if err != nil {
		return err
	}
	fmt.Printf("synced %d files, %d chunks: %d uploaded, %d unchanged, %d deleted\n",
		res.Files, res.Chunks, res.Uploaded, res.Unchanged, res.Deleted)
	return nil
}

func (a *app) docsSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("docs-search", flag.ExitOnError)
	q := fs.String("q", "", "query text")
	local := fs.String("local", "", "chunk a local markdown tree and search it instead of the remote index")
	topK := fs.Int("k", a.cfg.Index.TopK, "number of results")
	_ = fs.Parse(args)

	if *q == "" {
		return fmt.Errorf("docs-search: -q is required")
	}

	var localIdx *docsearch.LocalIndex
	if *local != "" {
		chunks, _, err := docsearch.ChunkDir(*local, a.cfg.Docs.MaxChunkLen)
		if err != nil {
			return err
		}
		localIdx, err = docsearch.BuildLocal(chunks)
		if err != nil {
			return err
		}
		defer localIdx.Close()
	}

	indexName := a.cfg.Docs.IndexName
	if indexName == "" && localIdx == nil {
		return fmt.Errorf("docs-search: docs.index_name must be set in config (or pass -local)")
	}

	searcher := docsearch.NewSearcher(localIdx, a.client.Search(indexName), *topK)
	hits, err := searcher.Search(ctx, *q)
	if err != nil {
		return err
	}
	for i, h := range hits {
		fmt.Printf("%d. %s (%s) score %.3f\n   %s\n", i+1, h.Title, h.Path, h.Score, preview(h.Text, 100))
	}
	return nil
}

func (a *app) cluster(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cluster", flag.ExitOnError)
	index := fs.String("index", "", "index name")
	interval := fs.Duration("poll", 2*time.Second, "poll interval")
	_ = fs.Parse(args)

	name, err := a.indexName(*index)
	if err != nil {
		return err
	}

	job, err := a.client.Clustering().Start(ctx, name)
	if err != nil {
		return err
	}
	fmt.Printf("started job %s\n", job.ID)

	job, err = a.client.Clustering().Wait(ctx, job.ID,
		moss.PollInterval(*interval),
		moss.OnProgress(func(j moss.Job) {
			fmt.Printf("  %s %.0f%%\n", j.Status, j.Progress)
		}),
	)
	if err != nil {
		return err
	}

	clusters, err := a.client.Clustering().Clusters(ctx, job.ID)
	if err != nil {
		return err
	}
	for _, c := range clusters {
		fmt.Printf("%s (%d docs): %s\n", c.Label, c.Size, preview(fmt.Sprint(c.DocIDs), 120))
	}
	return nil
}

func readDocsFile(path string) ([]moss.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("-file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var docs []moss.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return docs, nil
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
