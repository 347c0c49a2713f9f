// Package model defines the generation capability consumed by the turn
// orchestrator: a normalized Request, a streaming Response channel carrying
// text fragments and tool-call requests, token usage accounting, and the
// provider-shaped raw turn records used for context-cache reuse. Provider
// adapters live in the subpackages anthropic and openai.
package model
