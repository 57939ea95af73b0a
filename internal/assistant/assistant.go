// Package assistant generates grounded answers through an OpenAI-compatible
// chat completion API.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/starford/codex/internal/models"
	"github.com/starford/codex/internal/retrieval"
)

var (
	// ErrUnavailable means no completion backend is configured.
	ErrUnavailable = errors.New("assistant: unavailable")
	// ErrUpstream wraps failures reported by the completion backend.
	ErrUpstream = errors.New("assistant: upstream failure")
)

const systemPrompt = `You answer engineering questions concisely and precisely.

Rules:
1) When grounding context ("Codex") is provided, prefer it over general knowledge.
2) Cite the chunks you rely on with their bracketed indices, e.g. [#1], [#2].
3) If the Codex is insufficient, say so briefly, then give best-practice advice or ask for the missing detail.
4) Provide copy/paste-ready snippets when code is requested.
5) Never invent file paths, environment keys or schema. State unknowns plainly.

Output:
- A short answer first (1-3 sentences).
- A minimal runnable snippet if code is needed.
- If you cite the Codex, end with a line: Sources: [#n], [#m]`

const groundingHeader = "Codex (grounding chunks), use these first when applicable:"

var sourcesRe = regexp.MustCompile(`(?i)sources:`)

// Outcome is the result of a completion: Answered or NoAnswer.
type Outcome interface{ outcome() }

// Answered carries the generated reply.
type Answered struct {
	Text string
}

// NoAnswer means the backend returned an empty completion.
type NoAnswer struct{}

func (Answered) outcome() {}
func (NoAnswer) outcome() {}

// Config describes the completion backend.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Assistant sends questions with grounding to the completion backend.
type Assistant struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// New creates an Assistant. Without an API key or base URL the assistant
// is disabled and Ask returns ErrUnavailable.
func New(cfg Config) *Assistant {
	a := &Assistant{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
	if a.model == "" {
		a.model = openai.GPT4oMini
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return a
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	a.client = openai.NewClientWithConfig(oc)
	return a
}

// Enabled reports whether a backend is configured.
func (a *Assistant) Enabled() bool { return a.client != nil }

// Ask answers question using hits as grounding. Hits are rendered with
// retrieval.Format so citations [#i] refer to hits[i-1]. When grounding
// was supplied and the reply has no Sources line, one listing every
// citation is appended.
func (a *Assistant) Ask(ctx context.Context, question string, hits []models.Hit) (Outcome, error) {
	if a.client == nil {
		return nil, ErrUnavailable
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
		Messages:    buildMessages(question, hits),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return NoAnswer{}, nil
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return NoAnswer{}, nil
	}
	if len(hits) > 0 && !sourcesRe.MatchString(out) {
		out += "\n\nSources: " + citations(len(hits))
	}
	return Answered{Text: out}, nil
}

func buildMessages(question string, hits []models.Hit) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if ctxText := retrieval.Format(hits); ctxText != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: groundingHeader + "\n" + ctxText,
		})
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})
}

func citations(n int) string {
	refs := make([]string, n)
	for i := range refs {
		refs[i] = fmt.Sprintf("[#%d]", i+1)
	}
	return strings.Join(refs, ", ")
}
