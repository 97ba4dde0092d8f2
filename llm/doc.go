// Package llm is the model client for the agent loop: a provider-agnostic
// wrapper around chat-completion style inference endpoints.
//
// The package exposes a small surface:
//
//   - Client routes a Request to a registered ProviderAdapter, applying
//     middleware, a request timeout, and a retry policy.
//   - ParseOutput turns a raw Response into a ModelOutput tagged variant:
//     either FinalAnswer text or an ordered list of ToolRequests. Tool calls
//     embedded in prose (fenced JSON, {"tool": ...} fragments) are recovered
//     here so that parsing fragility stays out of the agent loop.
//   - Adapters: an OpenAI-compatible adapter (works against any
//     chat/completions proxy), an Ollama adapter for local models without
//     native tool support, and a gollm adapter covering openai/anthropic.
//
// The model call is the only unbounded-latency operation in the agent loop,
// so Complete is the sole place given an explicit request timeout and the
// sole point eligible for user cancellation.
package llm
