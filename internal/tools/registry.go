package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "capture",
		Description: "Classify dictated text, resolve the people, companies and other records it mentions, and save it to the workspace. Returns the action log.",
	}, NewCaptureHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "capture_status",
		Description: "Get the status and result of a capture started with async=true",
	}, NewCaptureStatusHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify",
		Description: "Classify text into one category without saving anything",
	}, NewClassifyHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve",
		Description: "Resolve a spoken name to an existing workspace record using exact, plural, fuzzy, word-overlap and semantic matching",
	}, NewResolveHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_schema",
		Description: "List the workspace collections with their fields and relations",
	}, NewListSchemaHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Show pipeline statistics: runs, model and store timings, token usage and match tiers",
	}, NewStatsHandler(deps))

	if deps.History != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "history",
			Description: "List recent captures with their outcome and the records they touched",
		}, NewHistoryHandler(deps))
	}
}
