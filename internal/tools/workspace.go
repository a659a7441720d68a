package tools

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/dictate-go/internal/matcher"
	"github.com/raphaelgruber/dictate-go/internal/models"
)

// ResolveInput defines the input schema for the resolve tool.
type ResolveInput struct {
	Name        string `json:"name" jsonschema:"The name as spoken"`
	Collection  string `json:"collection,omitempty" jsonschema:"Collection to search, e.g. people or ingredients"`
	Kind        string `json:"kind,omitempty" jsonschema:"Entity kind used when collection is omitted: person, company, class, ingredient, recipe or restaurant"`
	AllowCreate bool   `json:"allow_create,omitempty" jsonschema:"Create a record when nothing matches"`
}

// ResolveResult is the response from the resolve tool.
type ResolveResult struct {
	Collection string                  `json:"collection"`
	Entity     models.ResolvedEntity   `json:"entity"`
	ActionLog  []models.ActionLogEntry `json:"action_log"`
}

// NewResolveHandler creates the resolve tool handler.
func NewResolveHandler(deps *Dependencies) mcp.ToolHandlerFor[ResolveInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, any, error) {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return ErrorResult("Name cannot be empty", "Provide the name to resolve"), nil, nil
		}

		collection := strings.TrimSpace(input.Collection)
		if collection == "" {
			if input.Kind == "" {
				return ErrorResult("Collection or kind is required", "Use list_schema to see collections"), nil, nil
			}
			key, err := deps.Registry.CollectionForKind(models.EntityKind(strings.ToLower(input.Kind)))
			if err != nil {
				return ErrorResult("Unknown kind "+input.Kind, "Use person, company, class, ingredient, recipe or restaurant"), nil, nil
			}
			collection = key
		}
		if _, ok := deps.Registry.Collection(collection); !ok {
			return ErrorResult("Unknown collection "+collection, "Use list_schema to see collections"), nil, nil
		}

		mention := models.EntityMention{Name: name, Kind: models.EntityKind(input.Kind)}
		res, entries, err := deps.Matcher.Resolve(ctx, nil, mention, collection, matcher.ResolveOptions{AllowCreate: input.AllowCreate})
		if err != nil {
			deps.Logger.Error("resolve failed", "name", name, "collection", collection, "error", err)
			return ErrorResult("Failed to resolve "+name, "The workspace may be unavailable"), nil, nil
		}
		return JSONResult(ResolveResult{Collection: collection, Entity: res, ActionLog: entries}), nil, nil
	}
}

// ListSchemaInput defines the input schema for the list_schema tool.
type ListSchemaInput struct {
	Collection string `json:"collection,omitempty" jsonschema:"Only show this collection"`
}

// FieldView is one field of a collection.
type FieldView struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Merge   string   `json:"merge,omitempty"`
	Options []string `json:"options,omitempty"`
	Default string   `json:"default,omitempty"`
}

// RelationView is one relation of a collection.
type RelationView struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Target string `json:"target"`
}

// CollectionView is a collection as reported to clients.
type CollectionView struct {
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	TitleField string         `json:"title_field"`
	Fields     []FieldView    `json:"fields"`
	Relations  []RelationView `json:"relations,omitempty"`
}

// NewListSchemaHandler creates the list_schema tool handler.
func NewListSchemaHandler(deps *Dependencies) mcp.ToolHandlerFor[ListSchemaInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListSchemaInput) (*mcp.CallToolResult, any, error) {
		var views []CollectionView
		for _, c := range deps.Registry.Collections() {
			if input.Collection != "" && c.Key != input.Collection {
				continue
			}
			v := CollectionView{Key: c.Key, Name: c.Name, TitleField: c.TitleField()}
			for _, f := range c.Fields {
				v.Fields = append(v.Fields, FieldView{
					Name:    f.Name,
					Type:    string(f.Type),
					Merge:   string(f.Merge),
					Options: f.Options,
					Default: f.Default,
				})
			}
			for _, r := range c.Relations {
				v.Relations = append(v.Relations, RelationView{Key: r.Key, Name: r.Name, Target: r.Target})
			}
			views = append(views, v)
		}
		if len(views) == 0 {
			return ErrorResult("Unknown collection "+input.Collection, "Omit collection to list all"), nil, nil
		}
		return JSONResult(views), nil, nil
	}
}

// StatsInput defines the input schema for the stats tool.
type StatsInput struct{}

// NewStatsHandler creates the stats tool handler.
func NewStatsHandler(deps *Dependencies) mcp.ToolHandlerFor[StatsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, any, error) {
		if deps.Metrics == nil {
			return ErrorResult("Statistics are not collected", ""), nil, nil
		}
		return JSONResult(deps.Metrics.Snapshot()), nil, nil
	}
}

// HistoryInput defines the input schema for the history tool.
type HistoryInput struct {
	Limit       int    `json:"limit,omitempty" jsonschema:"Number of recent captures to list (default 20)"`
	RecordingID string `json:"recording_id,omitempty" jsonschema:"Show the records one capture touched"`
}

// NewHistoryHandler creates the history tool handler.
func NewHistoryHandler(deps *Dependencies) mcp.ToolHandlerFor[HistoryInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, any, error) {
		if input.RecordingID != "" {
			activities, err := deps.History.Activities(ctx, input.RecordingID)
			if err != nil {
				deps.Logger.Error("history activities failed", "recording_id", input.RecordingID, "error", err)
				return ErrorResult("Failed to load activities", "Database may be unavailable"), nil, nil
			}
			return JSONResult(activities), nil, nil
		}

		recordings, err := deps.History.Recent(ctx, input.Limit)
		if err != nil {
			deps.Logger.Error("history failed", "error", err)
			return ErrorResult("Failed to load history", "Database may be unavailable"), nil, nil
		}
		return JSONResult(recordings), nil, nil
	}
}
