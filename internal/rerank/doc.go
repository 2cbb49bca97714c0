// Package rerank reorders fused search results.
//
// LexicalReranker boosts results whose names and signatures contain the
// query keywords. LLMReranker asks an OpenAI-compatible chat model to score
// candidates. BreakerReranker guards any reranker with a circuit breaker so
// a failing model is skipped while it recovers.
package rerank
