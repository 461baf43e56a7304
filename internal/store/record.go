package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the on-disk timestamp format: microsecond precision with a
// numeric offset, always written in UTC.
const TimeLayout = "2006-01-02T15:04:05.000000-07:00"

// Importance is the optional priority label of a record.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// ParseImportance validates a user-supplied importance level (case-insensitive).
func ParseImportance(s string) (Importance, error) {
	switch imp := Importance(strings.ToLower(strings.TrimSpace(s))); imp {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return imp, nil
	default:
		return "", fmt.Errorf("unknown importance %q (want low, medium or high)", s)
	}
}

// Record is one persisted memory note.
// Optional fields are pointers (or a nil slice for Embedding) and are
// written as JSON null when absent.
type Record struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	Tags       []string    `json:"tags"`
	Source     *string     `json:"source"`
	Importance *Importance `json:"importance"`
	Pinned     bool        `json:"pinned"`
	CreatedAt  string      `json:"created_at"`
	UpdatedAt  string      `json:"updated_at"`
	ExpiresAt  *string     `json:"expires_at"`
	Embedding  []float64   `json:"embedding"`
}

// NewRecord creates a record with a fresh id and created_at = updated_at = now.
func NewRecord(text string, tags []string, now time.Time) Record {
	ts := FormatTime(now)
	return Record{
		ID:        uuid.NewString(),
		Text:      text,
		Tags:      NormalizeTags(tags),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// HasImportance reports whether the record carries the given importance.
func (r Record) HasImportance(imp Importance) bool {
	return r.Importance != nil && *r.Importance == imp
}

// HasEmbedding reports whether the record carries a vector.
func (r Record) HasEmbedding() bool {
	return len(r.Embedding) > 0
}

// HasAllTags reports whether the record's tag set is a superset of tags.
func (r Record) HasAllTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range r.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// HasAnyTag reports whether the record shares at least one tag with tags.
func (r Record) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range r.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// NormalizeTags trims, drops empty entries, dedupes, and sorts.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// FormatTime renders t in the on-disk timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// accepted layouts, most specific first. Layouts without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp as written by this tool or by
// other producers of the same file.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: not ISO-8601", s)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
