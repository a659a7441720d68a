package models

// PropertyType is the value type of a schema field.
type PropertyType string

const (
	PropTitle    PropertyType = "title"
	PropRichText PropertyType = "rich_text"
	PropDate     PropertyType = "date"
	PropNumber   PropertyType = "number"
	PropCheckbox PropertyType = "checkbox"
	PropStatus   PropertyType = "status"
	PropSelect   PropertyType = "select"
	PropURL      PropertyType = "url"
	PropRelation PropertyType = "relation"
)

// ExtractedFields maps schema field names to values pulled out of the text.
// Values are string (text, dates as YYYY-MM-DD, options), float64, int or bool.
type ExtractedFields map[string]any

// String returns the field as a string, or "" when absent or not a string.
func (f ExtractedFields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

// PropertyValue is one typed property of a record payload.
// Text carries title, rich_text, date (start only), status, select and url values.
type PropertyValue struct {
	Type     PropertyType `json:"type"`
	Text     string       `json:"text,omitempty"`
	Number   *float64     `json:"number,omitempty"`
	Checkbox bool         `json:"checkbox,omitempty"`
	Relation []string     `json:"relation,omitempty"`
	Null     bool         `json:"null,omitempty"`
}

// NullValue is an explicit null of the given type.
func NullValue(t PropertyType) PropertyValue {
	return PropertyValue{Type: t, Null: true}
}

// TextValue builds a text-like property.
func TextValue(t PropertyType, s string) PropertyValue {
	return PropertyValue{Type: t, Text: s}
}

// NumberValue builds a number property.
func NumberValue(n float64) PropertyValue {
	return PropertyValue{Type: PropNumber, Number: &n}
}

// RelationValue builds a relation property.
func RelationValue(ids []string) PropertyValue {
	return PropertyValue{Type: PropRelation, Relation: ids}
}

// Block is a unit of body content attached to a record.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// RecordPayload is the store-ready representation of a record.
type RecordPayload struct {
	Collection string                   `json:"collection"`
	TitleField string                   `json:"title_field"`
	Title      string                   `json:"title"`
	Properties map[string]PropertyValue `json:"properties"`
	Relations  map[string][]string      `json:"relations,omitempty"`
	Content    []Block                  `json:"content,omitempty"`
}
