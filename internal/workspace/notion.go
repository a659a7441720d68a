package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/dictate-go/internal/models"
)

const (
	notionVersion  = "2022-06-28"
	notionPageSize = 100
)

// NotionDatabase locates one collection in Notion.
type NotionDatabase struct {
	ID         string
	TitleField string
}

// Notion is a Store backed by Notion databases, one per collection.
type Notion struct {
	token      string
	baseURL    string
	httpClient *http.Client
	minGap     time.Duration
	databases  map[string]NotionDatabase
	byDBID     map[string]string

	mu      sync.Mutex
	lastReq time.Time
}

var _ Store = (*Notion)(nil)

// NotionOption configures a Notion store.
type NotionOption func(*Notion)

// WithBaseURL points the client at another API root (tests).
func WithBaseURL(u string) NotionOption {
	return func(n *Notion) { n.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) NotionOption {
	return func(n *Notion) { n.httpClient = c }
}

// WithRequestGap sets the minimum time between requests. Notion allows
// about three requests per second.
func WithRequestGap(d time.Duration) NotionOption {
	return func(n *Notion) { n.minGap = d }
}

// NewNotion creates a Notion store. databases maps collection keys to
// their Notion database.
func NewNotion(token string, databases map[string]NotionDatabase, opts ...NotionOption) *Notion {
	n := &Notion{
		token:      token,
		baseURL:    "https://api.notion.com/v1",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		minGap:     350 * time.Millisecond,
		databases:  databases,
		byDBID:     make(map[string]string, len(databases)),
	}
	for key, db := range databases {
		n.byDBID[normalizeNotionID(db.ID)] = key
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notion) database(collection string) (NotionDatabase, error) {
	db, ok := n.databases[collection]
	if !ok {
		return NotionDatabase{}, fmt.Errorf("notion: no database configured for collection %q", collection)
	}
	return db, nil
}

func (n *Notion) Query(ctx context.Context, collection string, f Filter) ([]Record, error) {
	db, err := n.database(collection)
	if err != nil {
		return nil, err
	}
	op := "equals"
	if f.Op == TitleContains {
		op = "contains"
	}
	filter := map[string]any{
		"property": db.TitleField,
		"title":    map[string]string{op: f.Value},
	}
	return n.queryDatabase(ctx, db, filter)
}

func (n *Notion) AllTitles(ctx context.Context, collection string) ([]string, error) {
	db, err := n.database(collection)
	if err != nil {
		return nil, err
	}
	recs, err := n.queryDatabase(ctx, db, nil)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.Title != "" {
			titles = append(titles, r.Title)
		}
	}
	return titles, nil
}

func (n *Notion) queryDatabase(ctx context.Context, db NotionDatabase, filter map[string]any) ([]Record, error) {
	var out []Record
	cursor := ""
	for {
		payload := map[string]any{"page_size": notionPageSize}
		if filter != nil {
			payload["filter"] = filter
		}
		if cursor != "" {
			payload["start_cursor"] = cursor
		}

		var resp notionQueryResponse
		if err := n.doJSON(ctx, http.MethodPost, "/databases/"+db.ID+"/query", payload, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Results {
			out = append(out, n.toRecord(p))
		}
		if !resp.HasMore || strings.TrimSpace(resp.NextCursor) == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return out, nil
}

func (n *Notion) Get(ctx context.Context, id string) (Record, error) {
	var page notionPage
	if err := n.doJSON(ctx, http.MethodGet, "/pages/"+id, nil, &page); err != nil {
		return Record{}, err
	}
	return n.toRecord(page), nil
}

func (n *Notion) Create(ctx context.Context, payload models.RecordPayload) (Record, error) {
	db, err := n.database(payload.Collection)
	if err != nil {
		return Record{}, err
	}

	body := map[string]any{
		"parent":     map[string]string{"database_id": db.ID},
		"properties": encodeProperties(propertiesOf(payload)),
	}
	if len(payload.Content) > 0 {
		body["children"] = encodeBlocks(payload.Content)
	}

	var page notionPage
	if err := n.doJSON(ctx, http.MethodPost, "/pages", body, &page); err != nil {
		return Record{}, err
	}
	rec := n.toRecord(page)
	if rec.Collection == "" {
		rec.Collection = payload.Collection
	}
	return rec, nil
}

func (n *Notion) Update(ctx context.Context, id string, props map[string]models.PropertyValue) (Record, error) {
	body := map[string]any{"properties": encodeProperties(props)}
	var page notionPage
	if err := n.doJSON(ctx, http.MethodPatch, "/pages/"+id, body, &page); err != nil {
		return Record{}, err
	}
	return n.toRecord(page), nil
}

func (n *Notion) throttle() {
	if n.minGap <= 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.lastReq.IsZero() {
		if delta := time.Since(n.lastReq); delta < n.minGap {
			time.Sleep(n.minGap - delta)
		}
	}
	n.lastReq = time.Now()
}

func (n *Notion) doJSON(ctx context.Context, method, path string, payload, out any) error {
	n.throttle()

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := fmt.Errorf("notion API %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
		if resp.StatusCode == http.StatusNotFound {
			return errors.Join(ErrNotFound, apiErr)
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (n *Notion) toRecord(p notionPage) Record {
	rec := Record{
		ID:         p.ID,
		URL:        p.URL,
		Collection: n.byDBID[normalizeNotionID(p.Parent.DatabaseID)],
		Properties: make(map[string]models.PropertyValue, len(p.Properties)),
	}
	for name, prop := range p.Properties {
		v, ok := prop.decode()
		if !ok {
			continue
		}
		rec.Properties[name] = v
		if v.Type == models.PropTitle {
			rec.Title = v.Text
		}
	}
	return rec
}

// normalizeNotionID strips dashes so ids copied from URLs and ids returned
// by the API compare equal.
func normalizeNotionID(id string) string {
	return strings.ReplaceAll(strings.ToLower(id), "-", "")
}
