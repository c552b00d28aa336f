package tools

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/listenlog/internal/record"
	"github.com/jfmyers9/listenlog/pkg/lastfm"
	"github.com/jfmyers9/listenlog/pkg/spotify"
)

func newTestServer() *Server {
	lib := &fakeLibrary{}
	return NewServer(NewRegistry(&fakeHistory{}, lib, zerolog.Nop()), "test", zerolog.Nop())
}

type response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func handle(t *testing.T, s *Server, msg string) response {
	t.Helper()
	out := s.Handle(context.Background(), []byte(msg))
	if out == nil {
		t.Fatalf("expected a response to %s", msg)
	}
	var resp response
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode response %s: %v", out, err)
	}
	return resp
}

func TestServer_Initialize(t *testing.T) {
	s := newTestServer()

	resp := handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	var result struct {
		ProtocolVersion string            `json:"protocolVersion"`
		ServerInfo      map[string]string `json:"serverInfo"`
		Capabilities    map[string]any    `json:"capabilities"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ProtocolVersion != "2025-03-26" || result.ServerInfo["name"] != "listenlog" {
		t.Errorf("unexpected initialize result %+v", result)
	}
	if _, ok := result.Capabilities["tools"]; !ok {
		t.Error("expected tools capability")
	}
	if string(resp.ID) != "1" {
		t.Errorf("expected id 1, got %s", resp.ID)
	}
}

func TestServer_Notifications(t *testing.T) {
	s := newTestServer()
	for _, msg := range []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"tools/list"}`,
	} {
		if out := s.Handle(context.Background(), []byte(msg)); out != nil {
			t.Errorf("expected no response to %s, got %s", msg, out)
		}
	}
}

func TestServer_Errors(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		code int
	}{
		{name: "parse error", msg: `{"jsonrpc":`, code: codeParseError},
		{name: "wrong version", msg: `{"jsonrpc":"1.0","id":1,"method":"ping"}`, code: codeInvalidRequest},
		{name: "unknown method", msg: `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, code: codeMethodNotFound},
		{name: "call without name", msg: `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`, code: codeInvalidParams},
		{name: "unknown tool", msg: `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope"}}`, code: codeInvalidParams},
	}

	s := newTestServer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handle(t, s, tt.msg)
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("expected error code %d, got %+v", tt.code, resp.Error)
			}
		})
	}
}

func TestServer_ToolsListAndCall(t *testing.T) {
	s := newTestServer()

	resp := handle(t, s, `{"jsonrpc":"2.0","id":"a","method":"tools/list"}`)
	var list struct {
		Tools []struct {
			Name        string         `json:"name"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &list); err != nil {
		t.Fatalf("decode tools/list: %v", err)
	}
	if len(list.Tools) != 12 {
		t.Errorf("expected 12 tools, got %d", len(list.Tools))
	}
	if list.Tools[0].InputSchema["type"] != "object" {
		t.Errorf("expected object schema, got %v", list.Tools[0].InputSchema)
	}

	resp = handle(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_spotify_top_tracks","arguments":{"time_range":"short_term"}}}`)
	var result callResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode tools/call: %v", err)
	}
	if result.IsError || len(result.Content) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	var tracks []record.TopTrack
	if err := json.Unmarshal([]byte(result.Content[0].Text), &tracks); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Name != "Words" {
		t.Errorf("unexpected tracks %+v", tracks)
	}

	resp = handle(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_spotify_top_tracks","arguments":{"time_range":"decade"}}}`)
	result = callResult{}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode tools/call: %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content[0].Text, "time_range") {
		t.Errorf("expected tool error naming time_range, got %+v", result)
	}
}

func TestServer_ServeStdio(t *testing.T) {
	s := newTestServer()

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}, "\n"))
	var out bytes.Buffer

	if err := s.ServeStdio(context.Background(), in, &out); err != nil {
		t.Fatalf("ServeStdio: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[1], `"id":2`) || !strings.Contains(lines[1], `"result":{}`) {
		t.Errorf("unexpected ping response %s", lines[1])
	}
}

func TestServer_HTTP(t *testing.T) {
	s := newTestServer()
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	post := func(body, session string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPost, server.URL+"/mcp", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if session != "" {
			req.Header.Set("Mcp-Session-Id", session)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		return resp
	}

	resp := post(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`, "")
	resp.Body.Close()
	session := resp.Header.Get("Mcp-Session-Id")
	if resp.StatusCode != http.StatusOK || session == "" {
		t.Fatalf("expected 200 with session id, got %d %q", resp.StatusCode, session)
	}

	resp = post(`{"jsonrpc":"2.0","method":"notifications/initialized"}`, session)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202 for notification, got %d", resp.StatusCode)
	}

	resp = post(`{"jsonrpc":"2.0","id":2,"method":"ping"}`, "not-a-session")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", resp.StatusCode)
	}

	health, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(health.Body)
	health.Body.Close()
	if health.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "ok" {
		t.Errorf("unexpected healthz %d %q", health.StatusCode, body)
	}

	m, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	m.Body.Close()
	if m.StatusCode != http.StatusOK {
		t.Errorf("expected metrics 200, got %d", m.StatusCode)
	}
}

func TestServer_SessionsAreBounded(t *testing.T) {
	s := newTestServer()

	first := s.newSession()
	var last string
	for i := 0; i < maxSessions; i++ {
		last = s.newSession()
	}

	if s.knownSession(first) {
		t.Error("expected the oldest session to be evicted")
	}
	if !s.knownSession(last) {
		t.Error("expected the newest session to be known")
	}
	if len(s.sessions) != maxSessions || len(s.order) != maxSessions {
		t.Errorf("expected %d sessions, got %d (order %d)", maxSessions, len(s.sessions), len(s.order))
	}
}

// panickingHistory fails inside the facade the way a nil map write
// would.
type panickingHistory struct {
	fakeHistory
}

func (*panickingHistory) TopArtists(context.Context, lastfm.Period, int) ([]record.TopArtist, error) {
	var counts map[string]int
	counts["Low"]++
	return nil, nil
}

type panickingLibrary struct {
	fakeLibrary
}

func (*panickingLibrary) Search(context.Context, string, []spotify.SearchType, int) (record.SearchResult, error) {
	panic("unexpected search payload")
}

func TestServer_FacadePanicBecomesEmptyResult(t *testing.T) {
	s := NewServer(NewRegistry(&panickingHistory{}, &panickingLibrary{}, zerolog.Nop()), "test", zerolog.Nop())

	tests := []struct {
		name string
		msg  string
		want string
	}{
		{
			name: "list tool",
			msg:  `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_lastfm_top_artists","arguments":{}}}`,
			want: "[]",
		},
		{
			name: "mapping tool",
			msg:  `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"search_spotify","arguments":{"query":"low"}}}`,
			want: "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := handle(t, s, tt.msg)
			if resp.Error != nil {
				t.Fatalf("unexpected rpc error %+v", resp.Error)
			}
			var result callResult
			if err := json.Unmarshal(resp.Result, &result); err != nil {
				t.Fatalf("decode tools/call: %v", err)
			}
			if result.IsError || len(result.Content) != 1 {
				t.Fatalf("unexpected result %+v", result)
			}
			if got := result.Content[0].Text; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	// The server keeps answering after a panic.
	if resp := handle(t, s, `{"jsonrpc":"2.0","id":3,"method":"ping"}`); resp.Error != nil {
		t.Errorf("ping after panic failed: %+v", resp.Error)
	}
}
