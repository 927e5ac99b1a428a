// Package llm provides the generative fallback classifier. It supports the
// OpenAI, Anthropic and Ollama chat APIs behind one Client interface and
// wraps them with backpressure: an in-flight cap, identical-request
// collapsing, a response cache, a non-blocking rate limit, per-call timeouts
// and at most one retry.
package llm
