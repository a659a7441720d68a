package models

import "fmt"

// ActionKind classifies an action log entry.
type ActionKind string

const (
	ActionInfo    ActionKind = "info"
	ActionWarning ActionKind = "warning"
	ActionMatched ActionKind = "matched"
	ActionCreated ActionKind = "created"
	ActionUpdated ActionKind = "updated"
	ActionFailed  ActionKind = "failed"
)

// ActionLogEntry describes one side effect or decision of a run.
type ActionLogEntry struct {
	Kind       ActionKind `json:"kind"`
	Message    string     `json:"message"`
	Collection string     `json:"collection,omitempty"`
	RecordID   string     `json:"record_id,omitempty"`
	URL        string     `json:"url,omitempty"`
}

// ActionLog is the ordered list of entries produced by one run.
type ActionLog []ActionLogEntry

// Append adds entries in order.
func (l *ActionLog) Append(entries ...ActionLogEntry) {
	*l = append(*l, entries...)
}

// Messages returns the human-readable lines of the log.
func (l ActionLog) Messages() []string {
	out := make([]string, len(l))
	for i, e := range l {
		out[i] = e.Message
	}
	return out
}

// Count returns the number of entries of the given kind.
func (l ActionLog) Count(kind ActionKind) int {
	n := 0
	for _, e := range l {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// InfoEntry is a plain informational entry.
func InfoEntry(format string, args ...any) ActionLogEntry {
	return ActionLogEntry{Kind: ActionInfo, Message: fmt.Sprintf(format, args...)}
}

// WarningEntry reports a recoverable problem.
func WarningEntry(format string, args ...any) ActionLogEntry {
	return ActionLogEntry{Kind: ActionWarning, Message: fmt.Sprintf(format, args...)}
}

// CreatedEntry reports a newly created record.
func CreatedEntry(collection, title, id, url string) ActionLogEntry {
	return ActionLogEntry{
		Kind:       ActionCreated,
		Message:    fmt.Sprintf("Created new page '%s' in %s database.", title, collection),
		Collection: collection,
		RecordID:   id,
		URL:        url,
	}
}

// UpdatedEntry reports a change to an existing record.
func UpdatedEntry(collection, title, id, url, detail string) ActionLogEntry {
	msg := fmt.Sprintf("Updated '%s' in %s database", title, collection)
	if detail != "" {
		msg += ": " + detail
	}
	return ActionLogEntry{Kind: ActionUpdated, Message: msg + ".", Collection: collection, RecordID: id, URL: url}
}
