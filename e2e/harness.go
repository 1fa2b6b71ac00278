// Package e2e drives a datagate subprocess over its stdio MCP transport
// against a real PostgreSQL database. The suite is skipped unless
// DATAGATE_E2E_DSN points at a database the tests may freely reseed.
package e2e

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

const callTimeout = 30 * time.Second

// TestHarness manages a datagate subprocess and a JSON-RPC session on
// its stdin/stdout.
type TestHarness struct {
	DSN     string
	DataDir string

	cmd    *exec.Cmd
	stdin  *json.Encoder
	closer io.WriteCloser
	lines  chan string

	mu     sync.Mutex
	nextID int
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// ToolResult mirrors the MCP tools/call result shape.
type ToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// E2EDSN returns the target database DSN, or "" when the suite should
// be skipped.
func E2EDSN() string {
	return strings.TrimSpace(os.Getenv("DATAGATE_E2E_DSN"))
}

// NewHarness seeds the database, writes a config pointing at it, starts
// `datagate serve` and completes the MCP initialize handshake.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	dsn := E2EDSN()
	if dsn == "" {
		t.Skip("DATAGATE_E2E_DSN not set; skipping e2e suite")
	}

	SeedDatabase(t, dsn)

	// Data directory (manual cleanup; t.TempDir() would delete files
	// when the first test finishes, breaking the shared harness)
	dataDir, err := os.MkdirTemp("", "datagate-e2e-*")
	if err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}

	configPath := filepath.Join(dataDir, "config.toml")
	if err := os.WriteFile(configPath, []byte(configFromDSN(t, dsn)), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	// Locate binary using absolute path
	wd, _ := os.Getwd()
	binary, _ := filepath.Abs(filepath.Join(wd, "..", "datagate"))
	if _, err := os.Stat(binary); os.IsNotExist(err) {
		t.Fatalf("binary not found at %s, run: cd datagate && CGO_ENABLED=0 go build -o datagate .", binary)
	}

	cmd := exec.Command(binary, "serve", "--config", configPath)
	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		t.Fatalf("stdin pipe: %v", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("stdout pipe: %v", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("starting datagate: %v", err)
	}

	h := &TestHarness{
		DSN:     dsn,
		DataDir: dataDir,
		cmd:     cmd,
		stdin:   json.NewEncoder(stdinPipe),
		closer:  stdinPipe,
		lines:   make(chan string, 16),
	}

	go func() {
		defer close(h.lines)
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			h.lines <- scanner.Text()
		}
	}()

	h.initialize(t)
	return h
}

// initialize performs the MCP handshake: initialize request followed by
// the initialized notification.
func (h *TestHarness) initialize(t *testing.T) {
	t.Helper()
	var info struct {
		ServerInfo struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	res := h.Call(t, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "datagate-e2e", "version": "0.0.0"},
	})
	if err := json.Unmarshal(res, &info); err != nil {
		t.Fatalf("decoding initialize result: %v", err)
	}
	if info.ServerInfo.Name == "" {
		t.Fatalf("initialize result missing serverInfo: %s", res)
	}
	h.notify(t, "notifications/initialized")
}

func (h *TestHarness) notify(t *testing.T, method string) {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.stdin.Encode(rpcRequest{JSONRPC: "2.0", Method: method}); err != nil {
		t.Fatalf("sending %s: %v", method, err)
	}
}

// Call sends a JSON-RPC request and waits for the matching response.
func (h *TestHarness) Call(t *testing.T, method string, params any) json.RawMessage {
	t.Helper()

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	err := h.stdin.Encode(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	h.mu.Unlock()
	if err != nil {
		t.Fatalf("sending %s: %v", method, err)
	}

	deadline := time.After(callTimeout)
	for {
		select {
		case line, ok := <-h.lines:
			if !ok {
				t.Fatalf("server closed stdout while waiting for %s response", method)
			}
			var resp rpcResponse
			if err := json.Unmarshal([]byte(line), &resp); err != nil {
				t.Fatalf("non-JSON line on stdout: %q", line)
			}
			if resp.ID != id {
				continue // notification or stale response
			}
			if resp.Error != nil {
				t.Fatalf("%s failed: [%d] %s", method, resp.Error.Code, resp.Error.Message)
			}
			return resp.Result
		case <-deadline:
			t.Fatalf("timed out after %s waiting for %s response", callTimeout, method)
		}
	}
}

// CallTool invokes an MCP tool and returns its result envelope.
func (h *TestHarness) CallTool(t *testing.T, name string, args map[string]any) *ToolResult {
	t.Helper()
	raw := h.Call(t, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	var res ToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("decoding tools/call result: %v", err)
	}
	return &res
}

// ToolText returns the first text content of a tool result.
func ToolText(t *testing.T, res *ToolResult) string {
	t.Helper()
	for _, c := range res.Content {
		if c.Type == "text" {
			return c.Text
		}
	}
	t.Fatal("tool result has no text content")
	return ""
}

// ToolPayload decodes the JSON document a tool returned.
func ToolPayload(t *testing.T, res *ToolResult) map[string]any {
	t.Helper()
	text := ToolText(t, res)
	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("decoding tool payload %q: %v", truncate(text, 500), err)
	}
	return payload
}

// Stop closes stdin so the server exits on EOF, escalating to SIGTERM
// and SIGKILL when it does not. Cleans up the data directory.
func (h *TestHarness) Stop() {
	if h.cmd == nil || h.cmd.Process == nil {
		return
	}
	if h.closer != nil {
		h.closer.Close()
	}

	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		h.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			h.cmd.Process.Kill()
			<-done
		}
	}

	if h.DataDir != "" {
		os.RemoveAll(h.DataDir)
	}
}

// configFromDSN renders a config.toml for the subprocess from the test
// database URL.
func configFromDSN(t *testing.T, dsn string) string {
	t.Helper()
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("parsing DATAGATE_E2E_DSN: %v", err)
	}
	password, _ := u.User.Password()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf(`[database]
host = %q
port = %s
name = %q
user = %q
password = %q
connect_timeout_sec = 10
query_timeout_sec = 30

[log]
level = "debug"
format = "text"

[audit]
enabled = false
`, u.Hostname(), port, strings.TrimPrefix(u.Path, "/"), u.User.Username(), password)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
