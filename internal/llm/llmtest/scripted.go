// Package llmtest provides a scripted langchaingo model for tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Call is one request the scripted model received.
type Call struct {
	System      string
	User        string
	Temperature float64
	JSONMode    bool
}

type rule struct {
	match string
	reply func(user string) (string, error)
}

// Model answers each request with the first rule whose match string is
// contained in the system prompt.
type Model struct {
	mu    sync.Mutex
	rules []rule
	calls []Call
}

var _ llms.Model = (*Model)(nil)

// New returns an empty scripted model.
func New() *Model {
	return &Model{}
}

// On answers prompts containing match with a fixed reply.
func (m *Model) On(match, reply string) *Model {
	return m.OnFunc(match, func(string) (string, error) { return reply, nil })
}

// OnError fails prompts containing match with err.
func (m *Model) OnError(match string, err error) *Model {
	return m.OnFunc(match, func(string) (string, error) { return "", err })
}

// OnFunc answers prompts containing match by calling fn with the user message.
func (m *Model) OnFunc(match string, fn func(user string) (string, error)) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{match: match, reply: fn})
	return m
}

// Calls returns a copy of the requests received so far.
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsMatching counts requests whose system prompt contains match.
func (m *Model) CallsMatching(match string) int {
	n := 0
	for _, c := range m.Calls() {
		if strings.Contains(c.System, match) {
			n++
		}
	}
	return n
}

// GenerateContent implements llms.Model.
func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	call := Call{Temperature: opts.Temperature, JSONMode: opts.JSONMode}
	for _, msg := range messages {
		text := partsText(msg.Parts)
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			call.System = text
		case llms.ChatMessageTypeHuman:
			call.User = text
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	rules := m.rules
	m.mu.Unlock()

	for _, r := range rules {
		if strings.Contains(call.System, r.match) {
			reply, err := r.reply(call.User)
			if err != nil {
				return nil, err
			}
			return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
				Content:        reply,
				GenerationInfo: map[string]any{"PromptTokens": len(call.System) / 4, "CompletionTokens": len(reply) / 4},
			}}}, nil
		}
	}
	return nil, fmt.Errorf("llmtest: no scripted reply for system prompt %.60q", call.System)
}

// Call implements llms.Model.
func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func partsText(parts []llms.ContentPart) string {
	var b strings.Builder
	for _, p := range parts {
		if t, ok := p.(llms.TextContent); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}
