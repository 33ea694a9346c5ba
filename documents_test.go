package moss

import (
	"context"
	"strings"
	"testing"
)

func TestDocumentAdd(t *testing.T) {
	mock := &mockRest{DoFunc: respond(t, `{"added": 2, "updated": 1}`)}
	client := newTestClient(mock)

	docs := []Document{
		{ID: "a", Text: "one"},
		{ID: "b", Text: "two"},
		{ID: "c", Text: "three"},
	}
	res, err := client.Documents("conversations").Add(context.Background(), docs, Upsert())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if res.Added != 2 || res.Updated != 1 {
		t.Errorf("unexpected result: %+v", res)
	}

	call := mock.lastCall(t)
	if call.method != "POST" || call.path != "/indexes/conversations/docs" {
		t.Errorf("unexpected request: %s %s", call.method, call.path)
	}
	if !strings.Contains(string(call.body), `"upsert":true`) {
		t.Errorf("body missing upsert flag: %s", call.body)
	}
}

func TestDocumentAddWithoutUpsert(t *testing.T) {
	mock := &mockRest{DoFunc: respond(t, `{"added": 1}`)}
	client := newTestClient(mock)

	_, err := client.Documents("idx").Add(context.Background(), []Document{{ID: "a"}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if strings.Contains(string(mock.lastCall(t).body), "upsert") {
		t.Errorf("upsert should be omitted when false: %s", mock.lastCall(t).body)
	}
}

func TestDocumentGetAll(t *testing.T) {
	mock := &mockRest{DoFunc: respond(t, `{"docs": [
		{"id": "a", "text": "one", "metadata": {"k": "v"}},
		{"id": "b", "text": "two"}
	]}`)}
	client := newTestClient(mock)

	docs, err := client.Documents("conversations").Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Metadata["k"] != "v" {
		t.Errorf("metadata lost: %+v", docs[0])
	}

	call := mock.lastCall(t)
	if call.method != "GET" || call.path != "/indexes/conversations/docs" {
		t.Errorf("unexpected request: %s %s", call.method, call.path)
	}
}

func TestDocumentGetByIDs(t *testing.T) {
	mock := &mockRest{DoFunc: respond(t, `{"docs": [{"id": "a"}]}`)}
	client := newTestClient(mock)

	_, err := client.Documents("idx").Get(context.Background(), WithDocIDs("a", "b c"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	call := mock.lastCall(t)
	if call.path != "/indexes/idx/docs?ids=a&ids=b+c" {
		t.Errorf("unexpected path: %s", call.path)
	}
}

func TestDocumentGetByIDsReservedCharacters(t *testing.T) {
	mock := &mockRest{DoFunc: respond(t, `{"docs": []}`)}
	client := newTestClient(mock)

	_, err := client.Documents("idx").Get(context.Background(),
		WithDocIDs("a,b", "c&d=e"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	call := mock.lastCall(t)
	if call.path != "/indexes/idx/docs?ids=a%2Cb&ids=c%26d%3De" {
		t.Errorf("ids not query-escaped: %s", call.path)
	}
}

func TestDocumentDelete(t *testing.T) {
	mock := &mockRest{DoFunc: respond(t, `{"deleted": 2}`)}
	client := newTestClient(mock)

	res, err := client.Documents("idx").Delete(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if res.Deleted != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	call := mock.lastCall(t)
	if call.method != "DELETE" || call.path != "/indexes/idx/docs" {
		t.Errorf("unexpected request: %s %s", call.method, call.path)
	}
	if !strings.Contains(string(call.body), `"doc_ids":["a","b"]`) {
		t.Errorf("body missing doc ids: %s", call.body)
	}
}
