package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/ctxgraph/internal/graph"
	"github.com/dshills/ctxgraph/pkg/types"
)

// outcome is what one strategy task produced
type outcome struct {
	strategy types.Strategy
	results  []types.RawResult
	err      error
	duration time.Duration
}

// fanOut runs every strategy in its own goroutine and waits for all of them.
// Tasks never return errors to the group, so one failure cannot cancel the
// others; each task writes only its own slot of outcomes.
func (s *Searcher) fanOut(ctx context.Context, strategies []types.Strategy, parsed *types.ParsedQuery, req SearchRequest) []outcome {
	outcomes := make([]outcome, len(strategies))
	var g errgroup.Group

	for i, st := range strategies {
		g.Go(func() error {
			start := time.Now()
			results, err := s.runStrategy(ctx, st, parsed, req)
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				results = nil
			}
			outcomes[i] = outcome{strategy: st, results: results, err: err, duration: time.Since(start)}
			recordStrategyMetrics(ctx, st, time.Since(start), len(results), err)
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// runStrategy dispatches to the strategy implementation
func (s *Searcher) runStrategy(ctx context.Context, st types.Strategy, parsed *types.ParsedQuery, req SearchRequest) (results []types.RawResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", st, r)
		}
	}()

	switch st {
	case types.StrategyKeyword:
		return s.keywordSearch(ctx, parsed, req)
	case types.StrategySemantic:
		return s.semanticSearch(ctx, parsed, req)
	case types.StrategyGraph:
		return s.graphSearch(ctx, parsed, req)
	case types.StrategyStructural:
		return s.structuralSearch(ctx, parsed)
	}
	return nil, fmt.Errorf("unsupported strategy: %s", st)
}

// keywordSearch ranks entities by full-text match of keywords and expanded
// terms. The local score is 1/(rank+1).
func (s *Searcher) keywordSearch(ctx context.Context, parsed *types.ParsedQuery, req SearchRequest) ([]types.RawResult, error) {
	text := strings.Join(parsed.Terms(), " ")
	if text == "" {
		text = parsed.Normalized
	}

	ids, err := s.entities.SearchEntities(ctx, text, types.EntitySearchOptions{
		Types: req.EntityTypes,
		Limit: req.Limit * candidateFactor,
	})
	if err != nil {
		return nil, err
	}

	results := make([]types.RawResult, len(ids))
	for rank, id := range ids {
		results[rank] = types.RawResult{
			EntityID: id.EntityID,
			Score:    1 / float64(rank+1),
			Strategy: types.StrategyKeyword,
		}
	}
	return results, nil
}

// semanticSearch scores entities by embedding similarity to the original query
func (s *Searcher) semanticSearch(ctx context.Context, parsed *types.ParsedQuery, req SearchRequest) ([]types.RawResult, error) {
	ids, err := s.semantic.FindSimilar(ctx, parsed.Original, types.SimilarityOptions{
		Limit:       req.Limit * candidateFactor,
		EntityTypes: req.EntityTypes,
	})
	if err != nil {
		return nil, err
	}

	results := make([]types.RawResult, len(ids))
	for i, id := range ids {
		results[i] = types.RawResult{EntityID: id.EntityID, Score: id.Score, Strategy: types.StrategySemantic}
	}
	return results, nil
}

// graphSearch resolves mentions to seed entities (score 1.0) and adds their
// neighborhoods scored 1/(depth+1)
func (s *Searcher) graphSearch(ctx context.Context, parsed *types.ParsedQuery, req SearchRequest) ([]types.RawResult, error) {
	var results []types.RawResult
	for _, m := range parsed.Mentions {
		seed, err := s.resolveMention(ctx, m.Text)
		if err != nil {
			return nil, err
		}
		if seed == nil {
			continue
		}
		results = append(results, types.RawResult{EntityID: seed.ID, Score: 1.0, Strategy: types.StrategyGraph})

		hood, err := s.graph.GetNeighborhood(ctx, seed.ID, graph.NeighborhoodOptions{
			MaxDepth:  req.GraphDepth,
			Direction: types.DirectionBoth,
			Limit:     req.Limit * candidateFactor,
		})
		if err != nil {
			return nil, err
		}
		for _, id := range hood.EntityIDs {
			results = append(results, types.RawResult{
				EntityID: id,
				Score:    1 / float64(hood.Depths[id]+1),
				Strategy: types.StrategyGraph,
			})
		}
	}
	return results, nil
}

// structuralSearch looks mentions up exactly: qualified-name hits score 1.0,
// name hits 0.9
func (s *Searcher) structuralSearch(ctx context.Context, parsed *types.ParsedQuery) ([]types.RawResult, error) {
	var results []types.RawResult
	for _, m := range parsed.Mentions {
		text := mentionLookupText(m.Text)

		e, err := s.entities.GetEntityByQualifiedName(ctx, text)
		if err == nil {
			results = append(results, types.RawResult{EntityID: e.ID, Score: 1.0, Strategy: types.StrategyStructural})
		} else if !isNotFound(err) {
			return nil, err
		}

		e, err = s.entities.GetEntityByName(ctx, text)
		if err == nil {
			results = append(results, types.RawResult{EntityID: e.ID, Score: 0.9, Strategy: types.StrategyStructural})
		} else if !isNotFound(err) {
			return nil, err
		}
	}
	return results, nil
}

// resolveMention finds the entity a mention names, by qualified name first.
// A mention naming nothing yields nil without error.
func (s *Searcher) resolveMention(ctx context.Context, text string) (*types.Entity, error) {
	text = mentionLookupText(text)
	e, err := s.entities.GetEntityByQualifiedName(ctx, text)
	if err == nil {
		return e, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	e, err = s.entities.GetEntityByName(ctx, text)
	if err == nil {
		return e, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	return nil, nil
}

// mentionLookupText strips call parentheses so "loadConfig()" finds loadConfig
func mentionLookupText(text string) string {
	return strings.TrimSuffix(strings.TrimSpace(text), "()")
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrEntityNotFound)
}
