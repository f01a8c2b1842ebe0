// Package provider is the narrowed LLM completion boundary: a Provider
// interface and a Mock implementation, selected by name.
package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nika/nika/engine/core"
	"github.com/pkoukk/tiktoken-go"
)

// ProviderName enumerates the recognized provider identifiers.
type ProviderName string

const (
	Claude ProviderName = "claude"
	OpenAI ProviderName = "openai"
	Mock   ProviderName = "mock"
)

// CompletionRequest is one text-completion call.
type CompletionRequest struct {
	Prompt string
	System string
	Model  string
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Completion is the result of a successful Complete call.
type Completion struct {
	Text  string
	Usage Usage
}

// Provider is the text-completion capability the executor and agent loop
// depend on.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// registry holds Providers registered under a name in addition to the
// built-in Mock, primarily for tests.
var registry = map[ProviderName]Provider{
	Mock: NewMockProvider(),
}

// Register installs p under name, overriding any prior registration. Used by
// tests to install a deterministic stand-in; production code should prefer
// the default Mock unless it has its own real Provider to supply.
func Register(name ProviderName, p Provider) {
	registry[name] = p
}

// Dispatch resolves name to a registered Provider. Wrapping real vendor SDKs
// is out of scope, so any name that is not explicitly registered (including
// Claude/OpenAI, which ship unregistered) fails with CodeProviderUnavailable
// rather than silently falling back to the mock.
func Dispatch(name ProviderName) (Provider, error) {
	if p, ok := registry[name]; ok {
		return p, nil
	}
	return nil, core.NewErrorf(
		core.CodeProviderUnavailable,
		map[string]any{"provider": string(name)},
		"no Provider registered for %q", name,
	)
}

// MockProvider reproduces a small set of substring-triggered behaviors
// useful for exercising timeout/cancellation paths in tests, plus real token
// accounting via tiktoken's cl100k_base encoding.
type MockProvider struct {
	encoding *tiktoken.Tiktoken
}

// NewMockProvider builds a MockProvider. Falls back to a nil encoding (token
// counts reported as zero) if the cl100k_base encoding cannot be loaded.
func NewMockProvider() *MockProvider {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &MockProvider{encoding: enc}
}

const cancellationTrigger = "cancellation-test"
const durationTriggerPrefix = "duration:"

// Complete simulates a completion. A prompt containing "duration: Ns" sleeps
// for N seconds (honoring context cancellation); a prompt containing
// "cancellation-test" blocks until the context is done; otherwise it returns
// immediately with a canned response.
func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if strings.Contains(req.Prompt, cancellationTrigger) {
		<-ctx.Done()
		return Completion{}, core.NewError(ctx.Err(), core.CodeProvider, nil)
	}
	if idx := strings.Index(req.Prompt, durationTriggerPrefix); idx >= 0 {
		rest := req.Prompt[idx+len(durationTriggerPrefix):]
		rest = strings.TrimSpace(rest)
		rest = strings.TrimSuffix(rest, "s")
		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		if end > 0 {
			if n, err := strconv.Atoi(rest[:end]); err == nil {
				select {
				case <-time.After(time.Duration(n) * time.Second):
				case <-ctx.Done():
					return Completion{}, core.NewError(ctx.Err(), core.CodeProvider, nil)
				}
			}
		}
	}
	text := fmt.Sprintf("Mock response for: %s", req.Prompt)
	return Completion{
		Text: text,
		Usage: Usage{
			PromptTokens:     m.countTokens(req.Prompt),
			CompletionTokens: m.countTokens(text),
		},
	}, nil
}

func (m *MockProvider) countTokens(text string) int {
	if m.encoding == nil {
		return 0
	}
	return len(m.encoding.Encode(text, nil, nil))
}
