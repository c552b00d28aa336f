package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/listenlog/internal/forward"
	"github.com/jfmyers9/listenlog/internal/record"
)

func newTestServer(t *testing.T, token string) (*httptest.Server, *Store) {
	t.Helper()
	store := createTestStore(t)
	srv := NewServer(store, token, zerolog.Nop())
	srv.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func post(t *testing.T, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSubmit(t *testing.T) {
	ts, store := newTestServer(t, "")

	tests := []struct {
		name        string
		path        string
		body        string
		wantStatus  int
		contentType string
	}{
		{name: "array", path: "/submit/lastfm/scrobbles", body: `[{"artist":"Low"}]`, wantStatus: http.StatusCreated, contentType: "application/json"},
		{name: "empty array", path: "/submit/spotify/tracks", body: `[]`, wantStatus: http.StatusCreated, contentType: "application/json"},
		{name: "object", path: "/submit/lastfm/scrobbles", body: `{"artist":"Low"}`, wantStatus: http.StatusBadRequest, contentType: "application/problem+json"},
		{name: "null", path: "/submit/lastfm/scrobbles", body: `null`, wantStatus: http.StatusBadRequest, contentType: "application/problem+json"},
		{name: "garbage", path: "/submit/lastfm/scrobbles", body: `[{`, wantStatus: http.StatusBadRequest, contentType: "application/problem+json"},
		{name: "no endpoint", path: "/submit/", body: `[]`, wantStatus: http.StatusNotFound, contentType: "application/problem+json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+tt.path, tt.body, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != tt.contentType {
				t.Errorf("expected content type %q, got %q", tt.contentType, ct)
			}
		})
	}

	batches, _ := store.List(context.Background(), "", 0, false)
	if len(batches) != 2 {
		t.Errorf("expected 2 stored batches, got %d", len(batches))
	}
}

func TestSubmit_DuplicateBatchID(t *testing.T) {
	ts, _ := newTestServer(t, "")
	headers := map[string]string{"X-Batch-ID": "fixed"}

	first := post(t, ts.URL+"/submit/x", `[1,2]`, headers)
	second := post(t, ts.URL+"/submit/x", `[1,2]`, headers)
	if first.StatusCode != http.StatusCreated || second.StatusCode != http.StatusOK {
		t.Fatalf("expected 201 then 200, got %d then %d", first.StatusCode, second.StatusCode)
	}

	var resp submitResponse
	if err := json.NewDecoder(second.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Duplicate || resp.BatchID != "fixed" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSubmit_Token(t *testing.T) {
	ts, _ := newTestServer(t, "s3cret")

	if resp := post(t, ts.URL+"/submit/x", `[]`, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/submit/x", `[]`, map[string]string{"Authorization": "Bearer nope"}); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/submit/x", `[]`, map[string]string{"Authorization": "Bearer s3cret"}); resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201 with token, got %d", resp.StatusCode)
	}

	health, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("healthz should not need a token, got %d", health.StatusCode)
	}
}

func TestListBatches(t *testing.T) {
	ts, _ := newTestServer(t, "")
	for i := 0; i < 3; i++ {
		post(t, ts.URL+"/submit/lastfm/scrobbles", `[{"artist":"Low"}]`, nil)
	}
	post(t, ts.URL+"/submit/spotify/tracks", `[{"id":"t1"},{"id":"t2"}]`, nil)

	resp, err := http.Get(ts.URL + "/batches?endpoint=submit/lastfm/scrobbles&limit=2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()

	var batches []Batch
	if err := json.NewDecoder(resp.Body).Decode(&batches); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	for _, b := range batches {
		if b.Endpoint != "submit/lastfm/scrobbles" || b.Payload != nil {
			t.Errorf("unexpected batch %+v", b)
		}
	}

	bad, err := http.Get(ts.URL + "/batches?limit=zero")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", bad.StatusCode)
	}

	one, err := http.Get(ts.URL + "/batches/4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer one.Body.Close()
	var b Batch
	if err := json.NewDecoder(one.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Endpoint != "submit/spotify/tracks" || b.RecordCount != 2 {
		t.Errorf("unexpected batch %+v", b)
	}

	missing, err := http.Get(ts.URL + "/batches/99")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", missing.StatusCode)
	}
}

// TestForwarderDelivers runs the forwarder against a live collector.
func TestForwarderDelivers(t *testing.T) {
	ts, store := newTestServer(t, "tok")
	fwd := forward.New(forward.Config{URL: ts.URL, Token: "tok"}, zerolog.Nop())

	events := []record.PlayEvent{
		{Artist: "Low", Title: "Words", TimestampUTS: 1700000000, DateTimeUTC: "2023-11-14 22:13:20"},
		{Artist: "Low", Title: "Lullaby", TimestampUTS: 1699999000, DateTimeUTC: "2023-11-14 21:56:40"},
	}
	if !fwd.Forward(context.Background(), "submit/lastfm/scrobbles", events) {
		t.Fatal("expected forward to succeed")
	}

	batches, err := store.List(context.Background(), "submit/lastfm/scrobbles", 0, true)
	if err != nil || len(batches) != 1 {
		t.Fatalf("expected 1 stored batch, got %d (%v)", len(batches), err)
	}
	var stored []record.PlayEvent
	if err := json.Unmarshal(batches[0].Payload, &stored); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(stored) != 2 || stored[1].Title != "Lullaby" || batches[0].RecordCount != 2 {
		t.Errorf("unexpected stored batch %+v", stored)
	}
}
