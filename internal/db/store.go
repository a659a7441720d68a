package db

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/dictate-go/internal/models"
	"github.com/raphaelgruber/dictate-go/internal/workspace"
)

const recordTable = "workspace_record"

// recordRow is a workspace record as stored in SurrealDB.
type recordRow struct {
	ID         *surrealmodels.RecordID         `json:"id,omitempty"`
	Collection string                          `json:"collection"`
	Title      string                          `json:"title"`
	TitleField string                          `json:"title_field"`
	Properties map[string]models.PropertyValue `json:"properties"`
	Content    []models.Block                  `json:"content"`
	Created    time.Time                       `json:"created"`
	Updated    time.Time                       `json:"updated"`
}

// WorkspaceStore keeps workspace records in SurrealDB. It implements
// workspace.Store.
type WorkspaceStore struct {
	client *Client
}

var _ workspace.Store = (*WorkspaceStore)(nil)

// NewWorkspaceStore wraps a connected client.
func NewWorkspaceStore(client *Client) *WorkspaceStore {
	return &WorkspaceStore{client: client}
}

func (s *WorkspaceStore) toRecord(row recordRow) (workspace.Record, error) {
	if row.ID == nil {
		return workspace.Record{}, fmt.Errorf("record without id")
	}
	id, err := models.RecordIDString(*row.ID)
	if err != nil {
		return workspace.Record{}, err
	}
	props := make(map[string]models.PropertyValue, len(row.Properties)+1)
	maps.Copy(props, row.Properties)
	if row.TitleField != "" {
		props[row.TitleField] = models.TextValue(models.PropTitle, row.Title)
	}
	return workspace.Record{
		ID:         id,
		URL:        s.url(id),
		Collection: row.Collection,
		Title:      row.Title,
		Properties: props,
	}, nil
}

func (s *WorkspaceStore) url(id string) string {
	return fmt.Sprintf("surrealdb://%s/%s/%s/%s", s.client.cfg.Namespace, s.client.cfg.Database, recordTable, id)
}

func (s *WorkspaceStore) toRecords(rows []recordRow) ([]workspace.Record, error) {
	out := make([]workspace.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := s.toRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Query returns matching records ordered by creation time.
func (s *WorkspaceStore) Query(ctx context.Context, collection string, f workspace.Filter) ([]workspace.Record, error) {
	cond := "title = $value"
	if f.Op == workspace.TitleContains {
		cond = "string::contains(string::lowercase(title), string::lowercase($value))"
	}
	sql := fmt.Sprintf(`
		SELECT * FROM workspace_record
		WHERE collection = $collection AND %s
		ORDER BY created ASC
	`, cond)

	results, err := surrealdb.Query[[]recordRow](ctx, s.client.db, sql, map[string]any{
		"collection": collection,
		"value":      f.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []workspace.Record{}, nil
	}
	return s.toRecords((*results)[0].Result)
}

// Get loads a record by id.
func (s *WorkspaceStore) Get(ctx context.Context, id string) (workspace.Record, error) {
	row, err := s.get(ctx, id)
	if err != nil {
		return workspace.Record{}, err
	}
	return s.toRecord(row)
}

func (s *WorkspaceStore) get(ctx context.Context, id string) (recordRow, error) {
	results, err := surrealdb.Query[[]recordRow](ctx, s.client.db, `
		SELECT * FROM type::record("workspace_record", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return recordRow{}, fmt.Errorf("get record: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return recordRow{}, fmt.Errorf("get record %s: %w", id, ErrNotFound)
	}
	return (*results)[0].Result[0], nil
}

// Create inserts a record under a fresh id.
func (s *WorkspaceStore) Create(ctx context.Context, payload models.RecordPayload) (workspace.Record, error) {
	props := make(map[string]models.PropertyValue, len(payload.Properties)+len(payload.Relations))
	for name, v := range payload.Properties {
		if name == payload.TitleField {
			continue
		}
		props[name] = v
	}
	for name, ids := range payload.Relations {
		props[name] = models.RelationValue(append([]string(nil), ids...))
	}
	content := payload.Content
	if content == nil {
		content = []models.Block{}
	}

	results, err := surrealdb.Query[[]recordRow](ctx, s.client.db, `
		CREATE type::record("workspace_record", $id) CONTENT {
			collection: $collection,
			title: $title,
			title_field: $title_field,
			properties: $properties,
			content: $content
		}
	`, map[string]any{
		"id":          uuid.NewString(),
		"collection":  payload.Collection,
		"title":       payload.Title,
		"title_field": payload.TitleField,
		"properties":  props,
		"content":     content,
	})
	if err != nil {
		return workspace.Record{}, fmt.Errorf("create record: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return workspace.Record{}, fmt.Errorf("create record: no result")
	}
	return s.toRecord((*results)[0].Result[0])
}

// Update overwrites the given properties. Setting the title property renames
// the record.
func (s *WorkspaceStore) Update(ctx context.Context, id string, props map[string]models.PropertyValue) (workspace.Record, error) {
	row, err := s.get(ctx, id)
	if err != nil {
		return workspace.Record{}, err
	}

	if row.Properties == nil {
		row.Properties = map[string]models.PropertyValue{}
	}
	for name, v := range props {
		if name == row.TitleField {
			row.Title = v.Text
			continue
		}
		row.Properties[name] = v
	}

	results, err := surrealdb.Query[[]recordRow](ctx, s.client.db, `
		UPDATE type::record("workspace_record", $id) SET
			title = $title,
			properties = $properties,
			updated = time::now()
		RETURN AFTER
	`, map[string]any{
		"id":         id,
		"title":      row.Title,
		"properties": row.Properties,
	})
	if err != nil {
		return workspace.Record{}, fmt.Errorf("update record: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return workspace.Record{}, fmt.Errorf("update record %s: %w", id, ErrNotFound)
	}
	return s.toRecord((*results)[0].Result[0])
}

type titleRow struct {
	Title   string    `json:"title"`
	Created time.Time `json:"created"`
}

// AllTitles lists titles in creation order.
func (s *WorkspaceStore) AllTitles(ctx context.Context, collection string) ([]string, error) {
	results, err := surrealdb.Query[[]titleRow](ctx, s.client.db, `
		SELECT title, created FROM workspace_record
		WHERE collection = $collection
		ORDER BY created ASC
	`, map[string]any{"collection": collection})
	if err != nil {
		return nil, fmt.Errorf("all titles %s: %w", collection, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []string{}, nil
	}
	titles := make([]string, 0, len((*results)[0].Result))
	for _, r := range (*results)[0].Result {
		titles = append(titles, r.Title)
	}
	return titles, nil
}

// CollectionCount is the number of records in one collection.
type CollectionCount struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

// CountByCollection returns record counts per collection.
func (s *WorkspaceStore) CountByCollection(ctx context.Context) ([]CollectionCount, error) {
	results, err := surrealdb.Query[[]CollectionCount](ctx, s.client.db, `
		SELECT collection, count() AS count FROM workspace_record
		GROUP BY collection ORDER BY collection
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("count by collection: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []CollectionCount{}, nil
	}
	return (*results)[0].Result, nil
}
