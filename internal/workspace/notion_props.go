package workspace

import (
	"strings"

	"github.com/raphaelgruber/dictate-go/internal/models"
)

type notionQueryResponse struct {
	Results    []notionPage `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

type notionPage struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Parent struct {
		DatabaseID string `json:"database_id"`
	} `json:"parent"`
	Properties map[string]notionProperty `json:"properties"`
}

type notionRichText struct {
	PlainText string `json:"plain_text"`
}

type notionNamed struct {
	Name string `json:"name"`
}

type notionRef struct {
	ID string `json:"id"`
}

type notionProperty struct {
	Type     string           `json:"type"`
	Title    []notionRichText `json:"title,omitempty"`
	RichText []notionRichText `json:"rich_text,omitempty"`
	Select   *notionNamed     `json:"select,omitempty"`
	Status   *notionNamed     `json:"status,omitempty"`
	Number   *float64         `json:"number,omitempty"`
	Checkbox *bool            `json:"checkbox,omitempty"`
	URL      *string          `json:"url,omitempty"`
	Date     *struct {
		Start string `json:"start"`
	} `json:"date,omitempty"`
	Relation []notionRef `json:"relation,omitempty"`
}

// decode converts a Notion property into a PropertyValue. Property types
// the pipeline does not use are skipped.
func (p notionProperty) decode() (models.PropertyValue, bool) {
	t := models.PropertyType(p.Type)
	switch t {
	case models.PropTitle:
		return models.TextValue(t, joinRichText(p.Title)), true
	case models.PropRichText:
		return models.TextValue(t, joinRichText(p.RichText)), true
	case models.PropSelect:
		if p.Select == nil {
			return models.NullValue(t), true
		}
		return models.TextValue(t, p.Select.Name), true
	case models.PropStatus:
		if p.Status == nil {
			return models.NullValue(t), true
		}
		return models.TextValue(t, p.Status.Name), true
	case models.PropNumber:
		if p.Number == nil {
			return models.NullValue(t), true
		}
		return models.NumberValue(*p.Number), true
	case models.PropCheckbox:
		return models.PropertyValue{Type: t, Checkbox: p.Checkbox != nil && *p.Checkbox}, true
	case models.PropURL:
		if p.URL == nil {
			return models.NullValue(t), true
		}
		return models.TextValue(t, *p.URL), true
	case models.PropDate:
		if p.Date == nil {
			return models.NullValue(t), true
		}
		return models.TextValue(t, p.Date.Start), true
	case models.PropRelation:
		ids := make([]string, len(p.Relation))
		for i, r := range p.Relation {
			ids[i] = r.ID
		}
		return models.RelationValue(ids), true
	}
	return models.PropertyValue{}, false
}

func joinRichText(parts []notionRichText) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(part.PlainText)
	}
	return strings.TrimSpace(b.String())
}

func textRun(s string) []map[string]any {
	if s == "" {
		return []map[string]any{}
	}
	return []map[string]any{{"type": "text", "text": map[string]string{"content": s}}}
}

// encodeProperties renders property values in the Notion page-properties
// shape. Null status values are omitted because Notion rejects them.
func encodeProperties(props map[string]models.PropertyValue) map[string]any {
	out := make(map[string]any, len(props))
	for name, v := range props {
		switch v.Type {
		case models.PropTitle:
			out[name] = map[string]any{"title": textRun(nullText(v))}
		case models.PropRichText:
			out[name] = map[string]any{"rich_text": textRun(nullText(v))}
		case models.PropDate:
			if v.Null {
				out[name] = map[string]any{"date": nil}
			} else {
				out[name] = map[string]any{"date": map[string]string{"start": v.Text}}
			}
		case models.PropNumber:
			if v.Null || v.Number == nil {
				out[name] = map[string]any{"number": nil}
			} else {
				out[name] = map[string]any{"number": *v.Number}
			}
		case models.PropCheckbox:
			out[name] = map[string]any{"checkbox": v.Checkbox}
		case models.PropSelect:
			if v.Null {
				out[name] = map[string]any{"select": nil}
			} else {
				out[name] = map[string]any{"select": map[string]string{"name": v.Text}}
			}
		case models.PropStatus:
			if !v.Null {
				out[name] = map[string]any{"status": map[string]string{"name": v.Text}}
			}
		case models.PropURL:
			if v.Null {
				out[name] = map[string]any{"url": nil}
			} else {
				out[name] = map[string]any{"url": v.Text}
			}
		case models.PropRelation:
			refs := make([]map[string]string, len(v.Relation))
			for i, id := range v.Relation {
				refs[i] = map[string]string{"id": id}
			}
			out[name] = map[string]any{"relation": refs}
		}
	}
	return out
}

func nullText(v models.PropertyValue) string {
	if v.Null {
		return ""
	}
	return v.Text
}

func encodeBlocks(blocks []models.Block) []map[string]any {
	out := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		typ := b.Type
		if typ == "" {
			typ = "paragraph"
		}
		out = append(out, map[string]any{
			"object": "block",
			"type":   typ,
			typ:      map[string]any{"rich_text": textRun(b.Text)},
		})
	}
	return out
}
