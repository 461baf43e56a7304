package engine

import (
	"context"
	"sort"

	"github.com/lazypower/mnemo/internal/store"
)

// importanceNudge is added to (high) or subtracted from (low) a lexical
// score. The result is not clamped to [0,1].
const importanceNudge = 0.05

// Method names the ranking path that produced a result set.
type Method string

const (
	MethodVector  Method = "vector"
	MethodLexical Method = "lexical"
)

// ScoredRecord is a ranked search candidate.
type ScoredRecord struct {
	Record store.Record
	Score  float64
}

// Ranker orders records by relevance to a query. Encode embeds the query;
// nil means no embedding backend and every search is lexical.
type Ranker struct {
	Encode func(ctx context.Context, text string) []float64
}

// Rank filters records to those carrying every tag in tags, then ranks by
// vector similarity. If that yields nothing (no query vector, or no candidate
// with a compatible embedding) it ranks by fuzzy text match instead.
// At most topK results are returned.
func (r Ranker) Rank(ctx context.Context, query string, records []store.Record, topK int, tags []string) ([]ScoredRecord, Method) {
	candidates := FilterByTags(records, tags)
	if len(candidates) == 0 || topK <= 0 {
		return nil, MethodLexical
	}

	if r.Encode != nil && anyEmbedded(candidates) {
		if qvec := r.Encode(ctx, query); len(qvec) > 0 {
			if results := rankVector(qvec, candidates, topK); len(results) > 0 {
				return results, MethodVector
			}
		}
	}
	return rankLexical(query, candidates, topK), MethodLexical
}

// FilterByTags keeps records whose tag set is a superset of tags.
func FilterByTags(records []store.Record, tags []string) []store.Record {
	if len(tags) == 0 {
		return records
	}
	var out []store.Record
	for _, rec := range records {
		if rec.HasAllTags(tags) {
			out = append(out, rec)
		}
	}
	return out
}

func anyEmbedded(records []store.Record) bool {
	for _, rec := range records {
		if rec.HasEmbedding() {
			return true
		}
	}
	return false
}

// rankVector scores records that have an embedding of the query's dimension
// by dot product. Ties keep input order.
func rankVector(qvec []float64, records []store.Record, topK int) []ScoredRecord {
	var results []ScoredRecord
	for _, rec := range records {
		if len(rec.Embedding) != len(qvec) {
			continue
		}
		results = append(results, ScoredRecord{Record: rec, Score: Dot(qvec, rec.Embedding)})
	}
	return sortAndLimit(results, topK)
}

// rankLexical scores records by token-set match against the query, nudged
// by importance. Records without text are not scored.
func rankLexical(query string, records []store.Record, topK int) []ScoredRecord {
	var results []ScoredRecord
	for _, rec := range records {
		if rec.Text == "" {
			continue
		}
		score := tokenSetRatio(query, rec.Text)
		switch {
		case rec.HasImportance(store.ImportanceHigh):
			score += importanceNudge
		case rec.HasImportance(store.ImportanceLow):
			score -= importanceNudge
		}
		results = append(results, ScoredRecord{Record: rec, Score: score})
	}
	return sortAndLimit(results, topK)
}

func sortAndLimit(results []ScoredRecord, limit int) []ScoredRecord {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
