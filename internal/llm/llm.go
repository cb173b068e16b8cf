// Package llm provides completion providers behind a single interface.
package llm

import (
	"context"
	"fmt"
	"os"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Completer produces the assistant's reply to a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// DefaultMaxTokens is used when neither the request nor the provider sets a limit.
const DefaultMaxTokens = 4096

// Options selects and configures a provider.
type Options struct {
	Provider  string // "anthropic" | "openai"
	Model     string
	BaseURL   string
	APIKey    string
	APIKeyEnv string // read when APIKey is empty
	MaxTokens int
}

// New creates a completer from options.
func New(o Options) (Completer, error) {
	key := o.APIKey
	if key == "" && o.APIKeyEnv != "" {
		key = os.Getenv(o.APIKeyEnv)
	}
	switch o.Provider {
	case "", "anthropic":
		if key == "" {
			key = os.Getenv("ANTHROPIC_API_KEY")
		}
		return NewAnthropic(key, o.BaseURL, o.Model, o.MaxTokens), nil
	case "openai":
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		return NewOpenAI(o.BaseURL, key, o.Model, o.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (valid: anthropic, openai)", o.Provider)
	}
}

func maxTokens(req, provider int) int {
	if req > 0 {
		return req
	}
	if provider > 0 {
		return provider
	}
	return DefaultMaxTokens
}
