// Package llm wraps the hosted language model behind a small Client
// interface: one structured-JSON generation call per pipeline stage.
//
// Gemini is the production implementation (google.golang.org/genai). It
// asks for application/json output constrained by a response schema, but
// callers still run ExtractJSON over the text because models occasionally
// wrap payloads in markdown fences.
//
// Predict[T] is the single entry point used by the pipeline: generate,
// extract, decode into T, normalise and validate. Any error means the
// caller should use its deterministic fallback.
//
// Cached decorates a Client with a response cache keyed by model and
// prompt; MemoryCache (go-cache) and RedisCache (go-redis) implement the
// backend. Cache failures degrade to a miss.
package llm
