// Package embedder generates vector embeddings for entity text.
//
// Remote providers (Jina AI, OpenAI) share one HTTP implementation with
// request rate limiting and exponential backoff; 4xx responses other than
// 429 fail immediately. The local provider needs no network: it hashes
// words, identifier parts and bigrams into a 384-dimension unit vector.
//
//	emb, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{"func ParseFile(path string) error", "type Config struct"},
//	})
//
// Every provider caches vectors in an LRU keyed by provider, model and text
// hash, and only sends cache misses to the backend.
//
// Provider selection without explicit configuration:
//
//  1. CTXGRAPH_EMBEDDING_PROVIDER (jina, openai, local)
//  2. JINA_API_KEY, then OPENAI_API_KEY
//  3. local
package embedder
