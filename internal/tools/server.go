package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ProtocolVersion is the MCP revision the server speaks when the client
// does not ask for one.
const ProtocolVersion = "2024-11-05"

// maxMessageSize bounds one JSON-RPC message on either transport.
const maxMessageSize = 8 << 20

// maxSessions bounds how many HTTP session ids are remembered.
const maxSessions = 1024

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content []content `json:"content"`
	IsError bool      `json:"isError"`
}

// Server answers MCP requests from a Registry.
type Server struct {
	registry *Registry
	name     string
	version  string
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]struct{}
	order    []string // session ids, oldest first
}

// NewServer creates a Server.
func NewServer(reg *Registry, version string, logger zerolog.Logger) *Server {
	return &Server{
		registry: reg,
		name:     "listenlog",
		version:  version,
		logger:   logger.With().Str("component", "mcp").Logger(),
		sessions: make(map[string]struct{}),
	}
}

// Handle processes one JSON-RPC message. It returns nil for
// notifications, which get no response.
func (s *Server) Handle(ctx context.Context, msg []byte) []byte {
	var req rpcRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return s.encode(rpcResponse{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: &rpcError{Code: codeParseError, Message: "parse error"}})
	}

	notification := len(req.ID) == 0
	if req.JSONRPC != "2.0" || req.Method == "" {
		if notification {
			return nil
		}
		return s.encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidRequest, Message: "invalid request"}})
	}

	logger := s.logger.With().Str("method", req.Method).Logger()
	if notification {
		logger.Debug().Msg("notification ignored")
		return nil
	}

	result, err := s.dispatch(ctx, req)
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
	if err != nil {
		var rerr *rpcError
		if !errors.As(err, &rerr) {
			rerr = &rpcError{Code: codeInternalError, Message: err.Error()}
		}
		logger.Warn().Int("code", rerr.Code).Msg(rerr.Message)
		resp.Result = nil
		resp.Error = rerr
	}
	return s.encode(resp)
}

func (s *Server) dispatch(ctx context.Context, req rpcRequest) (any, error) {
	switch req.Method {
	case "initialize":
		var params struct {
			ProtocolVersion string `json:"protocolVersion"`
		}
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
			}
		}
		version := params.ProtocolVersion
		if version == "" {
			version = ProtocolVersion
		}
		return map[string]any{
			"protocolVersion": version,
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
			"serverInfo": map[string]string{"name": s.name, "version": s.version},
		}, nil

	case "ping":
		return struct{}{}, nil

	case "tools/list":
		tools := s.registry.Tools()
		out := make([]toolInfo, 0, len(tools))
		for _, t := range tools {
			out = append(out, toolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		return map[string]any{"tools": out}, nil

	case "tools/call":
		var params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			return nil, &rpcError{Code: codeInvalidParams, Message: "tools/call requires a tool name"}
		}
		return s.callTool(ctx, params.Name, params.Arguments)

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found: " + req.Method}
	}
}

func (s *Server) callTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	data, err := s.registry.Call(ctx, name, args)
	if errors.Is(err, ErrUnknownTool) {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	if err != nil {
		return callResult{Content: []content{{Type: "text", Text: err.Error()}}, IsError: true}, nil
	}

	text, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", name, err)
	}
	return callResult{Content: []content{{Type: "text", Text: string(text)}}}, nil
}

func (s *Server) encode(resp rpcResponse) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
		b, _ = json.Marshal(rpcResponse{JSONRPC: "2.0", ID: resp.ID, Error: &rpcError{Code: codeInternalError, Message: "failed to encode response"}})
	}
	return b
}

// ServeStdio reads newline-delimited messages from r and writes
// responses to w until r is exhausted or ctx is done.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)
	out := bufio.NewWriter(w)

	s.logger.Info().Msg("serving tools on stdio")
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		resp := s.Handle(ctx, line)
		if resp == nil {
			continue
		}
		if _, err := out.Write(append(resp, '\n')); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

// Handler returns the HTTP transport: POST /mcp, GET /healthz and
// GET /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/mcp", s.serveHTTP)

	return r
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
	if err != nil {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	if sid := r.Header.Get("Mcp-Session-Id"); sid != "" && !s.knownSession(sid) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	resp := s.Handle(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if isInitialize(body) {
		w.Header().Set("Mcp-Session-Id", s.newSession())
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}

// newSession registers a session id. Past maxSessions the oldest
// session is forgotten.
func (s *Server) newSession() string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) >= maxSessions {
		delete(s.sessions, s.order[0])
		s.order = s.order[1:]
	}
	s.sessions[id] = struct{}{}
	s.order = append(s.order, id)
	return id
}

func (s *Server) knownSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

func isInitialize(body []byte) bool {
	var req struct {
		Method string `json:"method"`
	}
	return json.Unmarshal(body, &req) == nil && req.Method == "initialize"
}
