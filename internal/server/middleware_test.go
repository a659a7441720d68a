package server

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Len(t, truncate(strings.Repeat("x", 500), maxArgLogLen), maxArgLogLen)
}

func TestToolName(t *testing.T) {
	call := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{
		Name:      "capture",
		Arguments: json.RawMessage(`{"text":"buy milk"}`),
	}}
	assert.Equal(t, "capture", toolName(call))
	assert.Equal(t, `{"text":"buy milk"}`, formatParams(call))

	assert.Empty(t, toolName(&mcp.CallToolRequest{}))
	assert.Empty(t, toolName(&mcp.ListToolsRequest{}))
}

func TestIsToolError(t *testing.T) {
	assert.True(t, isToolError(&mcp.CallToolResult{IsError: true}))
	assert.False(t, isToolError(&mcp.CallToolResult{}))
	assert.False(t, isToolError(&mcp.ListToolsResult{}))
	assert.False(t, isToolError(nil))
}
