package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lazypower/mnemo/internal/store"
)

// Engine runs memory commands against a single store file. Every command
// loads the full collection, applies its policy in memory, and mutating
// commands save the result exactly once at the end.
type Engine struct {
	Path    string
	Backend *Backend
	Log     *slog.Logger
	Now     func() time.Time
}

// New creates an Engine for the store at path. backend may be nil.
func New(path string, backend *Backend, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if backend == nil {
		backend = NewBackend(nil, 0, logger)
	}
	return &Engine{
		Path:    path,
		Backend: backend,
		Log:     logger,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) load() ([]store.Record, error) {
	res, err := store.Load(e.Path)
	if err != nil {
		return nil, err
	}
	if res.Skipped > 0 {
		e.Log.Warn("skipped malformed memory lines", "path", e.Path, "count", res.Skipped)
	}
	return res.Records, nil
}

func (e *Engine) save(records []store.Record) error {
	if err := store.Save(e.Path, records); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

// RememberRequest describes a note to store. Empty strings mean "not supplied".
type RememberRequest struct {
	Text       string   `json:"text"`
	Tags       []string `json:"tags"`
	Source     string   `json:"source"`
	Importance string   `json:"importance"`
	TTL        string   `json:"ttl"`
	Pinned     bool     `json:"pinned"`
	Replace    string   `json:"replace"` // id of an existing record to update in place
}

// RememberResult summarizes the stored record.
type RememberResult struct {
	Memory     string            `json:"memory"`
	ID         string            `json:"id"`
	Tags       []string          `json:"tags"`
	Importance *store.Importance `json:"importance"`
	Pinned     bool              `json:"pinned"`
	UpdatedAt  string            `json:"updated_at"`
	ExpiresAt  *string           `json:"expires_at"`
	Replaced   bool              `json:"replaced"`
	Embedded   bool              `json:"embedded"`
}

// Remember creates a record, or with req.Replace set, updates that record in
// place keeping its id and created_at.
func (e *Engine) Remember(ctx context.Context, req RememberRequest) (*RememberResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	var importance *store.Importance
	if strings.TrimSpace(req.Importance) != "" {
		imp, err := store.ParseImportance(req.Importance)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImportance, err)
		}
		importance = &imp
	}

	now := e.Now()
	expires, err := ResolveTTL(req.TTL, now)
	if err != nil {
		return nil, err
	}
	var expiresAt *string
	if expires != nil {
		expiresAt = store.Ptr(store.FormatTime(*expires))
	}

	var source *string
	if s := strings.TrimSpace(req.Source); s != "" {
		source = &s
	}
	tags := store.NormalizeTags(req.Tags)

	records, err := e.load()
	if err != nil {
		return nil, err
	}

	idx := -1
	if req.Replace != "" {
		for i := range records {
			if records[i].ID == req.Replace {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: id=%s", ErrNotFound, req.Replace)
		}
	}

	embedding := e.Backend.Encode(ctx, []string{text})[0]

	var rec *store.Record
	if idx >= 0 {
		rec = &records[idx]
		rec.Text = text
		if len(tags) > 0 {
			rec.Tags = tags
		}
		if source != nil {
			rec.Source = source
		}
		if importance != nil {
			rec.Importance = importance
		}
		if expiresAt != nil {
			rec.ExpiresAt = expiresAt
		}
		rec.Pinned = rec.Pinned || req.Pinned
		rec.UpdatedAt = store.FormatTime(now)
		rec.Embedding = embedding
	} else {
		created := store.NewRecord(text, tags, now)
		created.Source = source
		created.Importance = importance
		created.Pinned = req.Pinned
		created.ExpiresAt = expiresAt
		created.Embedding = embedding
		records = append(records, created)
		rec = &records[len(records)-1]
	}

	if err := e.save(records); err != nil {
		return nil, err
	}
	e.Log.Debug("remembered", "id", rec.ID, "replaced", idx >= 0, "embedded", rec.HasEmbedding())

	return &RememberResult{
		Memory:     e.Path,
		ID:         rec.ID,
		Tags:       rec.Tags,
		Importance: rec.Importance,
		Pinned:     rec.Pinned,
		UpdatedAt:  rec.UpdatedAt,
		ExpiresAt:  rec.ExpiresAt,
		Replaced:   idx >= 0,
		Embedded:   rec.HasEmbedding(),
	}, nil
}

// ForgetResult lists removed ids.
type ForgetResult struct {
	Memory    string   `json:"memory"`
	Removed   []string `json:"removed"`
	Remaining int      `json:"remaining"`
}

// Forget deletes every record whose id is in ids or that has any tag in
// tags. Pinned records are not exempt.
func (e *Engine) Forget(ids, tags []string) (*ForgetResult, error) {
	ids = store.NormalizeTags(ids)
	tags = store.NormalizeTags(tags)
	if len(ids) == 0 && len(tags) == 0 {
		return nil, ErrNoSelector
	}

	records, err := e.load()
	if err != nil {
		return nil, err
	}

	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	removed := []string{}
	remaining := make([]store.Record, 0, len(records))
	for _, rec := range records {
		if idSet[rec.ID] || rec.HasAnyTag(tags) {
			removed = append(removed, rec.ID)
			continue
		}
		remaining = append(remaining, rec)
	}

	if err := e.save(remaining); err != nil {
		return nil, err
	}
	return &ForgetResult{Memory: e.Path, Removed: removed, Remaining: len(remaining)}, nil
}

// ListResult holds matching records, most recently updated first.
type ListResult struct {
	Records []store.Record `json:"records"`
	Swept   int            `json:"swept"`
}

// List returns records carrying every tag in tags. As a side effect it drops
// expired unpinned records from the store, rewriting it only when something
// was dropped.
func (e *Engine) List(tags []string) (*ListResult, error) {
	records, err := e.load()
	if err != nil {
		return nil, err
	}

	sweep := Prune(records, e.Now(), PruneOptions{DropExpired: true})
	if sweep.Removed > 0 {
		if err := e.save(sweep.Records); err != nil {
			return nil, err
		}
		e.Log.Info("swept expired records", "count", sweep.Removed)
	}

	matched := FilterByTags(sweep.Records, store.NormalizeTags(tags))
	out := make([]store.Record, len(matched))
	copy(out, matched)
	sortByUpdatedDesc(out)

	return &ListResult{Records: out, Swept: sweep.Removed}, nil
}

func sortByUpdatedDesc(records []store.Record) {
	updated := make([]time.Time, len(records))
	for i := range records {
		updated[i], _ = store.ParseTime(records[i].UpdatedAt)
	}
	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return updated[idx[a]].After(updated[idx[b]])
	})
	sorted := make([]store.Record, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}

// PruneSummary reports collection sizes around a prune.
type PruneSummary struct {
	Memory string `json:"memory"`
	PruneResult
}

// Prune applies the retention policies in opts and rewrites the store.
func (e *Engine) Prune(opts PruneOptions) (*PruneSummary, error) {
	records, err := e.load()
	if err != nil {
		return nil, err
	}

	res := Prune(records, e.Now(), opts)
	if err := e.save(res.Records); err != nil {
		return nil, err
	}
	e.Log.Debug("pruned", "before", res.Before, "after", res.After)
	return &PruneSummary{Memory: e.Path, PruneResult: res}, nil
}

// SearchRequest describes a ranked lookup.
type SearchRequest struct {
	Query    string
	TopK     int
	Tags     []string
	ShowText bool
}

// Hit is one search result.
type Hit struct {
	ID         string            `json:"id"`
	Tags       []string          `json:"tags"`
	Source     *string           `json:"source"`
	Importance *store.Importance `json:"importance"`
	Pinned     bool              `json:"pinned"`
	Score      float64           `json:"score"`
	Text       string            `json:"text,omitempty"`
}

// SearchResult holds ranked hits and the path that produced them.
type SearchResult struct {
	Method  Method `json:"method"`
	Results []Hit  `json:"results"`
}

// Search ranks stored records against req.Query.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if req.TopK < 1 {
		return nil, ErrInvalidTopK
	}

	records, err := e.load()
	if err != nil {
		return nil, err
	}

	var ranker Ranker
	if e.Backend.Available() {
		ranker.Encode = e.Backend.EncodeQuery
	}
	scored, method := ranker.Rank(ctx, req.Query, records, req.TopK, store.NormalizeTags(req.Tags))

	hits := make([]Hit, 0, len(scored))
	for _, s := range scored {
		h := Hit{
			ID:         s.Record.ID,
			Tags:       s.Record.Tags,
			Source:     s.Record.Source,
			Importance: s.Record.Importance,
			Pinned:     s.Record.Pinned,
			Score:      s.Score,
		}
		if req.ShowText {
			h.Text = s.Record.Text
		}
		hits = append(hits, h)
	}
	return &SearchResult{Method: method, Results: hits}, nil
}
