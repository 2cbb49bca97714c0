package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dshills/ctxgraph/pkg/types"
)

const (
	DefaultLLMModel      = openai.GPT4oMini
	DefaultMaxCandidates = 20
	defaultSnippetChars  = 400
)

// ErrNoScores is returned when the model response scores no candidate
var ErrNoScores = errors.New("reranker returned no usable scores")

// LLMConfig configures an LLMReranker
type LLMConfig struct {
	APIKey        string  `mapstructure:"api_key"`
	BaseURL       string  `mapstructure:"base_url"` // OpenAI-compatible endpoint, including /v1
	Model         string  `mapstructure:"model"`
	MaxCandidates int     `mapstructure:"max_candidates"`
	MinScore      float64 `mapstructure:"min_score"` // Candidates scored below are dropped
}

// LLMReranker scores candidates with a chat completion. Only the first
// MaxCandidates results are sent; the rest keep their order after the
// reranked ones. Candidates the model omits or scores below MinScore are
// dropped.
type LLMReranker struct {
	client *openai.Client
	cfg    LLMConfig
	logger *slog.Logger
}

// NewLLMReranker creates a reranker for an OpenAI-compatible chat API
func NewLLMReranker(cfg LLMConfig, logger *slog.Logger) (*LLMReranker, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm reranker requires an api key")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return newLLMReranker(openai.NewClientWithConfig(clientConfig), cfg, logger), nil
}

func newLLMReranker(client *openai.Client, cfg LLMConfig, logger *slog.Logger) *LLMReranker {
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMReranker{client: client, cfg: cfg, logger: logger}
}

const rerankSystemPrompt = `You rank code and documentation search results by how well they answer a query.
Reply with a JSON object {"scores":[{"index":<candidate index>,"score":<0..1>}]} containing every relevant candidate. Omit irrelevant candidates.`

type llmScores struct {
	Scores []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

func (l *LLMReranker) Rerank(ctx context.Context, q string, results []types.SearchResult) ([]types.SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}
	n := min(len(results), l.cfg.MaxCandidates)
	candidates := results[:n]

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rerankSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildRerankPrompt(q, candidates)},
		},
		Temperature:    0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("rerank completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoScores
	}

	scores, err := parseScores(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(scores.Scores))
	out := make([]types.SearchResult, 0, len(results))
	for _, s := range scores.Scores {
		if s.Index < 0 || s.Index >= n {
			continue
		}
		if _, dup := seen[s.Index]; dup {
			continue
		}
		seen[s.Index] = struct{}{}
		if s.Score < l.cfg.MinScore {
			continue
		}
		r := candidates[s.Index]
		r.Score = s.Score
		out = append(out, r)
	}
	if len(seen) == 0 {
		return nil, ErrNoScores
	}
	sortByScore(out)

	l.logger.Debug("llm rerank", "candidates", n, "kept", len(out), "model", l.cfg.Model)
	return append(out, results[n:]...), nil
}

// buildRerankPrompt lists the query and numbered candidates
func buildRerankPrompt(q string, candidates []types.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nCandidates:\n", q)
	for i, r := range candidates {
		e := r.Entity
		name := e.QualifiedName
		if name == "" {
			name = e.Name
		}
		fmt.Fprintf(&b, "\n[%d] %s %s", i, e.Type, name)
		if e.FilePath != "" {
			fmt.Fprintf(&b, " (%s:%d)", e.FilePath, e.StartLine)
		}
		b.WriteString("\n")

		text := e.Signature
		if e.Summary != "" {
			text += "\n" + e.Summary
		}
		if text == "" {
			text = e.Content
		}
		if len(text) > defaultSnippetChars {
			text = strings.ToValidUTF8(text[:defaultSnippetChars], "") + "..."
		}
		if text != "" {
			b.WriteString(strings.TrimSpace(text))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// parseScores decodes the model reply, tolerating a markdown code fence
func parseScores(content string) (*llmScores, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var scores llmScores
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &scores); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoScores, err)
	}
	return &scores, nil
}
