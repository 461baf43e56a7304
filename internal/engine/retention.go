package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lazypower/mnemo/internal/store"
)

// PruneOptions selects which retention policies Prune applies.
type PruneOptions struct {
	DropExpired bool       // drop unpinned records whose expires_at is past (or unreadable)
	OlderThan   *time.Time // drop unpinned records updated before this instant
	Dedupe      bool       // drop unpinned records whose normalized text was already kept
	MaxRecords  int        // cap on the collection size; <= 0 disables eviction
}

// PruneResult reports what a prune kept.
type PruneResult struct {
	Records []store.Record `json:"-"`
	Before  int            `json:"before"`
	After   int            `json:"after"`
	Removed int            `json:"removed"`
}

// ParseBoundary parses the --older-than timestamp.
func ParseBoundary(s string) (time.Time, error) {
	t, err := store.ParseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: want ISO-8601, e.g. 2025-01-01T00:00:00+00:00", ErrInvalidBoundary, s)
	}
	return t, nil
}

// NewPruneOptions builds options from command input. Expired records are
// dropped unless keepExpired is set; an empty olderThan sets no age boundary.
func NewPruneOptions(maxRecords int, olderThan string, keepExpired, dedupe bool) (PruneOptions, error) {
	opts := PruneOptions{
		DropExpired: !keepExpired,
		Dedupe:      dedupe,
		MaxRecords:  maxRecords,
	}
	if strings.TrimSpace(olderThan) != "" {
		boundary, err := ParseBoundary(olderThan)
		if err != nil {
			return PruneOptions{}, err
		}
		opts.OlderThan = &boundary
	}
	return opts, nil
}

// Prune applies, in order: expiry, age boundary, dedupe, then max-count
// eviction. Pinned records survive every step. Survivors keep their input order.
func Prune(records []store.Record, now time.Time, opts PruneOptions) PruneResult {
	kept := make([]store.Record, 0, len(records))
	seen := make(map[string]bool)

	for _, rec := range records {
		if opts.DropExpired && isExpired(rec, now) {
			continue
		}
		if opts.OlderThan != nil && isOlderThan(rec, *opts.OlderThan) {
			continue
		}
		if opts.Dedupe {
			key := normalizeText(rec.Text)
			if seen[key] && !rec.Pinned {
				continue
			}
			seen[key] = true
		}
		kept = append(kept, rec)
	}

	kept = evict(kept, opts.MaxRecords)

	return PruneResult{
		Records: kept,
		Before:  len(records),
		After:   len(kept),
		Removed: max(len(records)-len(kept), 0),
	}
}

// isExpired reports whether an unpinned record has expired. An unreadable
// expires_at counts as expired.
func isExpired(rec store.Record, now time.Time) bool {
	if rec.Pinned || rec.ExpiresAt == nil {
		return false
	}
	t, err := store.ParseTime(*rec.ExpiresAt)
	if err != nil {
		return true
	}
	return t.Before(now)
}

// isOlderThan reports whether an unpinned record was last updated before
// boundary. An unreadable updated_at counts as too old.
func isOlderThan(rec store.Record, boundary time.Time) bool {
	if rec.Pinned {
		return false
	}
	t, err := store.ParseTime(rec.UpdatedAt)
	if err != nil {
		return true
	}
	return t.Before(boundary)
}

// normalizeText lowercases and collapses whitespace for duplicate detection.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// evict keeps every pinned record plus the most recently updated unpinned
// records, up to limit in total.
func evict(records []store.Record, limit int) []store.Record {
	if limit <= 0 || len(records) <= limit {
		return records
	}

	pinned := 0
	var unpinned []int
	for i, rec := range records {
		if rec.Pinned {
			pinned++
		} else {
			unpinned = append(unpinned, i)
		}
	}

	updated := make(map[int]time.Time, len(unpinned))
	for _, i := range unpinned {
		// unreadable updated_at sorts as oldest
		t, _ := store.ParseTime(records[i].UpdatedAt)
		updated[i] = t
	}
	sort.SliceStable(unpinned, func(a, b int) bool {
		return updated[unpinned[a]].After(updated[unpinned[b]])
	})

	allowed := max(limit-pinned, 0)
	keep := make(map[int]bool, allowed)
	for _, i := range unpinned[:min(allowed, len(unpinned))] {
		keep[i] = true
	}

	out := make([]store.Record, 0, pinned+len(keep))
	for i, rec := range records {
		if rec.Pinned || keep[i] {
			out = append(out, rec)
		}
	}
	return out
}
