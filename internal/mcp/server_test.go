package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/decay-mcp/internal/config"
	"github.com/xiy/decay-mcp/internal/embeddings"
	"github.com/xiy/decay-mcp/internal/journal"
	"github.com/xiy/decay-mcp/internal/memory"
	"github.com/xiy/decay-mcp/internal/store"
	"github.com/xiy/decay-mcp/pkg/types"
)

type fakeStore struct {
	candidates []types.MemoryRecord
}

func (f *fakeStore) InsertMemory(_ context.Context, _ types.MemoryRecord) error { return nil }
func (f *fakeStore) SearchSimilar(_ context.Context, _ []float32, _ int) ([]types.MemoryRecord, error) {
	return f.candidates, nil
}
func (f *fakeStore) Reinforce(_ context.Context, _ string, _ time.Time) error { return nil }
func (f *fakeStore) GetMemory(_ context.Context, id string) (types.MemoryRecord, error) {
	return types.MemoryRecord{ID: id}, nil
}
func (f *fakeStore) AllMemories(_ context.Context) ([]types.MemoryRecord, error) {
	return f.candidates, nil
}
func (f *fakeStore) Stats(_ context.Context) (store.Stats, error) { return store.Stats{}, nil }
func (f *fakeStore) Close() error                                 { return nil }

type fakeArchive struct {
	entries []types.JournalEntry
}

func (f *fakeArchive) Append(content string, metadata map[string]any) error {
	f.entries = append(f.entries, types.JournalEntry{
		Timestamp: time.Now().UTC(),
		Content:   content,
		Metadata:  metadata,
	})
	return nil
}

func (f *fakeArchive) Search(_ journal.Filter) ([]types.JournalEntry, error) {
	if len(f.entries) == 0 {
		return nil, journal.ErrNoJournal
	}
	return f.entries, nil
}

type captureSink struct {
	rows []store.RequestLog
}

func (c *captureSink) InsertRequestLog(_ context.Context, rec store.RequestLog) error {
	c.rows = append(c.rows, rec)
	return nil
}

func newTestServer(st store.Store, sink RequestLogSink) *Server {
	logger := log.NewWithOptions(io.Discard, log.Options{})
	svc := memory.NewService(st, embeddings.NewHashProvider(32), &fakeArchive{}, config.Default(), logger)
	return NewServer(svc, logger, sink)
}

func TestHandle_ToolsList(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&fakeStore{}, nil)

	id := json.RawMessage(`1`)
	resp, ok := srv.handle(context.Background(), request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "tools/list",
	})
	if !ok {
		t.Fatal("expected response")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	tools, ok := result["tools"].([]ToolDefinition)
	if !ok || len(tools) != 3 {
		t.Fatalf("expected the 3 memory tools, got %v", result["tools"])
	}
}

func TestHandleToolCall_StoreMemory(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&fakeStore{}, nil)

	params := json.RawMessage(`{"name":"store_memory","arguments":{"content":"prefers dark mode","category":"semantic"}}`)
	res, err := srv.handleToolCall(context.Background(), params)
	if err != nil {
		t.Fatalf("handleToolCall() error = %v", err)
	}
	content := res["content"].([]map[string]any)
	if got := content[0]["text"]; got != "Stored as semantic memory." {
		t.Fatalf("unexpected confirmation %q", got)
	}
}

func TestRenderRecall(t *testing.T) {
	t.Parallel()

	if got := renderRecall(types.RecallResult{Outcome: types.RecallOutcomeNoMemories}); got != "No active memories found." {
		t.Fatalf("no_memories render = %q", got)
	}
	want := "Relevant memories have faded. Try 'verify_history' for archival search."
	if got := renderRecall(types.RecallResult{Outcome: types.RecallOutcomeFaded}); got != want {
		t.Fatalf("faded render = %q", got)
	}

	got := renderRecall(types.RecallResult{
		Outcome: types.RecallOutcomeRecalled,
		Memories: []types.RecalledMemory{
			{Record: types.MemoryRecord{Category: types.CategorySemantic, Text: "sky is blue"}, Strength: 0.82},
			{Record: types.MemoryRecord{Category: types.CategoryEpisodic, Text: "ran tests"}, Strength: 0.2},
		},
	})
	wantLines := "[SEMANTIC | Strength: 0.82] sky is blue\n[EPISODIC | Strength: 0.20] ran tests"
	if got != wantLines {
		t.Fatalf("recalled render = %q, want %q", got, wantLines)
	}
}

func TestRenderVerify(t *testing.T) {
	t.Parallel()

	if got := renderVerify(types.VerifyResult{Outcome: types.VerifyOutcomeArchiveEmpty}); got != "Archive is empty." {
		t.Fatalf("archive_empty render = %q", got)
	}
	if got := renderVerify(types.VerifyResult{Outcome: types.VerifyOutcomeNoMatch}); got != "No matching record." {
		t.Fatalf("no_match render = %q", got)
	}

	ts := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	got := renderVerify(types.VerifyResult{
		Outcome: types.VerifyOutcomeMatches,
		Entries: []types.JournalEntry{{Timestamp: ts, Content: "sky is blue"}},
	})
	want := "ARCHIVE RECORD:\n[2026-02-03T12:00:00Z] sky is blue"
	if got != want {
		t.Fatalf("matches render = %q, want %q", got, want)
	}
}

func TestReadWriteFramedMessage(t *testing.T) {
	t.Parallel()
	resp := response{JSONRPC: "2.0", ID: 1, Result: map[string]any{"ok": true}}
	var payloadBuf bytes.Buffer
	bw := bufio.NewWriter(&payloadBuf)
	if err := writeFramedMessage(bw, resp); err != nil {
		t.Fatalf("writeFramedMessage() error = %v", err)
	}
	br := bufio.NewReader(bytes.NewReader(payloadBuf.Bytes()))
	payload, err := readFramedMessage(br)
	if err != nil {
		t.Fatalf("readFramedMessage() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got["jsonrpc"] != "2.0" {
		t.Fatalf("expected jsonrpc 2.0, got %v", got["jsonrpc"])
	}
}

func TestReadMessage_JSONLine(t *testing.T) {
	t.Parallel()
	raw := []byte("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"ping\"}\n")
	br := bufio.NewReader(bytes.NewReader(raw))

	payload, mode, err := readMessage(br)
	if err != nil {
		t.Fatalf("readMessage() error = %v", err)
	}
	if mode != wireModeJSONLine {
		t.Fatalf("expected JSON-line mode, got %v", mode)
	}

	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		t.Fatalf("json.Unmarshal(payload) error = %v", err)
	}
	if req.Method != "ping" {
		t.Fatalf("expected method ping, got %q", req.Method)
	}
}

func TestServe_JSONLineInitialize(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&fakeStore{}, nil)

	in := bytes.NewBufferString("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"initialize\",\"params\":{\"protocolVersion\":\"2024-11-05\"}}\n")
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	line := bytes.TrimSpace(out.Bytes())
	if len(line) == 0 {
		t.Fatal("expected JSON-line response, got empty output")
	}
	if bytes.Contains(line, []byte("Content-Length:")) {
		t.Fatalf("expected JSON-line response, got framed output: %q", string(line))
	}

	var resp map[string]any
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("json.Unmarshal(response) error = %v", err)
	}
	if resp["jsonrpc"] != "2.0" {
		t.Fatalf("expected jsonrpc 2.0, got %v", resp["jsonrpc"])
	}
}

func TestServe_LogsRequestEvents(t *testing.T) {
	t.Parallel()
	sink := &captureSink{}
	srv := newTestServer(&fakeStore{}, sink)

	in := bytes.NewBufferString("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"tools/call\",\"params\":{\"name\":\"store_memory\",\"arguments\":{\"content\":\"\"}}}\n")
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if len(sink.rows) != 1 {
		t.Fatalf("expected 1 request log row, got %d", len(sink.rows))
	}
	got := sink.rows[0]
	if got.Method != "tools/call" {
		t.Fatalf("expected method tools/call, got %q", got.Method)
	}
	if got.ToolName != "store_memory" {
		t.Fatalf("expected tool store_memory, got %q", got.ToolName)
	}
	if got.Success {
		t.Fatalf("expected failed request due to empty content")
	}
	if got.ErrorText == "" {
		t.Fatalf("expected non-empty error text")
	}
}
