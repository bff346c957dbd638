package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-covenants/internal/descriptions"
)

func TestServer_ServeStdio(t *testing.T) {
	s, cfg := newTestServer(t)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"pdf_mark_bookmarked","arguments":{"path":"credit.pdf"}}}`,
	}, "\n") + "\n"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, s.serveStdio(ctx, strings.NewReader(in), &out))

	responses := map[float64]map[string]any{}
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg))
		if id, ok := msg["id"].(float64); ok {
			responses[id] = msg
		}
	}
	require.Len(t, responses, 3)

	initResult := responses[1]["result"].(map[string]any)
	assert.Equal(t, cfg.ServerName, initResult["serverInfo"].(map[string]any)["name"])

	tools := responses[2]["result"].(map[string]any)["tools"].([]any)
	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, descriptions.GetAllToolNames(), names)

	call := responses[3]["result"].(map[string]any)
	assert.NotEqual(t, true, call["isError"])
}

func TestServer_RunCanceled(t *testing.T) {
	s, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- s.serveStdio(ctx, strings.NewReader(""), &bytes.Buffer{}) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serveStdio did not return after cancellation")
	}
}
