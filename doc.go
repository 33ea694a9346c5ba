// Package moss provides a Go client for the Moss semantic search cloud API.
//
// A client is created from project credentials and exposes the full index
// lifecycle:
//
//	client, err := moss.New(projectID, projectKey)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	docs := []moss.Document{
//		{ID: "doc1", Text: "Machine learning is a subset of AI."},
//	}
//	_, err = client.Indexes().Create(ctx, "demo", docs)
//
//	res, err := client.Search("demo").Query(ctx, "artificial intelligence",
//		moss.TopK(3))
//
// Indexes are named collections of documents. Create an index with initial
// documents, add or delete documents afterwards, optionally Load the index
// onto the low-latency query path, and Query it with a plain text query or
// a caller-supplied embedding vector.
//
// Conversation clustering runs as an asynchronous job:
//
//	job, err := client.Clustering().Start(ctx, "demo")
//	job, err = client.Clustering().Wait(ctx, job.ID)
//	clusters, err := client.Clustering().Clusters(ctx, job.ID)
//
// All failures surface as *APIError where the service responded, and the
// usual sentinel errors (ErrIndexNotFound, ErrUnauthorized, ...) can be
// matched with errors.Is.
package moss
