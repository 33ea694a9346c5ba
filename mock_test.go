package moss

import (
	"context"
	"encoding/json"
	"testing"
)

// mockRest implements restDoer for unit tests. Each call is recorded; the
// DoFunc hook produces the response.
type mockRest struct {
	calls  []restCall
	DoFunc func(ctx context.Context, method, path string, in, out any) error
}

type restCall struct {
	method string
	path   string
	body   []byte
}

func (m *mockRest) Do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		body, _ = json.Marshal(in)
	}
	m.calls = append(m.calls, restCall{method: method, path: path, body: body})
	if m.DoFunc == nil {
		return nil
	}
	return m.DoFunc(ctx, method, path, in, out)
}

// respond builds a DoFunc that unmarshals the given JSON into out.
func respond(t *testing.T, raw string) func(context.Context, string, string, any, any) error {
	t.Helper()
	return func(_ context.Context, _, _ string, _, out any) error {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			t.Fatalf("respond: %v", err)
		}
		return nil
	}
}

func (m *mockRest) lastCall(t *testing.T) restCall {
	t.Helper()
	if len(m.calls) == 0 {
		t.Fatal("no rest calls recorded")
	}
	return m.calls[len(m.calls)-1]
}

func newTestClient(rest restDoer) *Client {
	obs, _ := newObserver(nil, nil)
	return &Client{rest: rest, obs: obs}
}
