package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cascadehq/cascaderouter/core"
)

// MockAdapter is a deterministic, local Adapter used by tests, the demo
// host, and any caller that wants to exercise the router without talking
// to a real vendor. It returns a canned response shaped by the request
// (echoing tool calls when tools are present) and estimates token counts
// by word count rather than a real tokenizer.
type MockAdapter struct {
	name string

	mu        sync.Mutex
	responses map[string]string // query text -> canned response, exact match
	fail      map[string]error  // query text -> error to return instead

	callCount int
}

// NewMockAdapter builds a MockAdapter registered under name.
func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{
		name:      name,
		responses: make(map[string]string),
		fail:      make(map[string]error),
	}
}

func (m *MockAdapter) Name() string { return m.name }

// SetResponse configures the exact text a subsequent Generate call
// against this query will return.
func (m *MockAdapter) SetResponse(query, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[query] = response
}

// SetFailure configures Generate to fail with err on this exact query,
// useful for exercising the cascade executor's escalation path.
func (m *MockAdapter) SetFailure(query string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[query] = err
}

func (m *MockAdapter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *MockAdapter) Generate(ctx context.Context, model core.ModelConfig, messages []core.Message, tools []core.Tool) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, core.NewError(core.KindCancelled, "provider.MockAdapter.Generate", ctx.Err())
	default:
	}

	var lastUser string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			lastUser = messages[i].Content
			break
		}
	}

	m.mu.Lock()
	m.callCount++
	if err, failing := m.fail[lastUser]; failing {
		m.mu.Unlock()
		return Result{}, err
	}
	canned, hasResponse := m.responses[lastUser]
	m.mu.Unlock()

	if !hasResponse {
		canned = fmt.Sprintf("[%s/%s] mock response to: %s", model.Provider, model.Name, truncate(lastUser, 80))
	}

	if len(tools) > 0 && !hasResponse {
		return Result{
			Message: core.Message{
				Role: "assistant",
				ToolCalls: []core.ToolCall{
					{ID: "mock-call-1", Name: tools[0].Name, Arguments: map[string]interface{}{}},
				},
			},
			Usage:        estimateUsage(messages, ""),
			FinishReason: "tool_calls",
		}, nil
	}

	return Result{
		Message:      core.Message{Role: "assistant", Content: canned},
		Usage:        estimateUsage(messages, canned),
		FinishReason: "stop",
	}, nil
}

func (m *MockAdapter) IsAvailable(ctx context.Context) bool { return true }

// estimateUsage counts whitespace-delimited words as a token-count proxy;
// there is no real tokenizer in this package's dependency set.
func estimateUsage(messages []core.Message, completion string) core.UsageDetails {
	prompt := 0
	for _, msg := range messages {
		prompt += len(strings.Fields(msg.Content))
	}
	completionTokens := len(strings.Fields(completion))
	return core.UsageDetails{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
