package model

import (
	"context"

	"sitesmith/core"
)

// ToolDefinition declaratively exposes a callable capability to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual capability exposed to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// TokenUsage captures token usage statistics for one model call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Request captures the normalized model input assembled by the orchestrator.
// Messages is the model-visible working history including tool-result entries;
// Raw carries prior provider-shaped turn records for adapters that support
// cache-prefix reuse (pass-through, never interpreted here); CacheKey names
// the provider-side cache prefix when one is active.
type Request struct {
	System   string           `json:"system"`
	Messages []core.Message   `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Raw      []core.RawTurn   `json:"raw,omitempty"`
	CacheKey string           `json:"cache_key,omitempty"`
	Stream   bool             `json:"stream,omitempty"`
}

// Response is a (partial or final) element of a model output stream. Partial
// responses carry a text fragment in Text; the final response carries any tool
// calls, the finish reason, usage, and the provider-shaped raw record of the
// whole exchange. When streaming is disabled the single final response carries
// the full text.
type Response struct {
	Partial      bool            `json:"partial"`
	Text         string          `json:"text,omitempty"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Usage        *TokenUsage     `json:"usage,omitempty"`
	Raw          core.RawTurn    `json:"raw,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. Generate
// returns a response channel and an error channel; exactly one terminal
// condition occurs: the response channel closes after a final response, or an
// error arrives on the error channel.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ImageModel is the image generation capability behind the generate_image and
// restyle_image tools. Implementations return encoded image bytes (PNG unless
// documented otherwise).
type ImageModel interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	RestyleImage(ctx context.Context, image []byte, prompt string) ([]byte, error)
}

// Resolver maps a model hint (for example a delegated role's preferred model)
// to a concrete Model. Implementations fall back to a default when the hint is
// empty or unknown.
type Resolver interface {
	Resolve(hint string) Model
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(hint string) Model

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(hint string) Model { return f(hint) }
