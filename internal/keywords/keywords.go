// Package keywords maps colloquial search phrases to the titles the site
// actually indexes. Users ask for movies with shorthand or alternate names;
// the table rewrites those before the search hits the browser.
package keywords

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Table is an immutable synonym lookup. Keys are matched case-insensitively
// after whitespace trimming.
type Table struct {
	entries map[string]string
}

// New builds a table from the given mapping. The mapping is copied, so the
// caller may reuse the input.
func New(mapping map[string]string) *Table {
	entries := make(map[string]string, len(mapping))
	for k, v := range mapping {
		entries[normalize(k)] = v
	}
	return &Table{entries: entries}
}

// Default returns a small built-in table covering common shorthand for
// well-known Korean titles.
func Default() *Table {
	return New(map[string]string{
		"기생충 영화":  "기생충",
		"parasite": "기생충",
		"올드보이 박찬욱": "올드보이",
		"oldboy":   "올드보이",
		"부산행 좀비":  "부산행",
		"아가씨 영화":  "아가씨",
	})
}

// Load reads a JSON object file of phrase-to-title pairs.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword table: %w", err)
	}
	var mapping map[string]string
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("failed to parse keyword table %s: %w", path, err)
	}
	return New(mapping), nil
}

// Expand rewrites a query through the table. Unknown queries pass through
// unchanged, so the table only ever helps.
func (t *Table) Expand(query string) string {
	trimmed := strings.TrimSpace(query)
	if t == nil || len(t.entries) == 0 {
		return trimmed
	}
	if title, ok := t.entries[normalize(trimmed)]; ok {
		return title
	}
	return trimmed
}

// Size reports how many phrases the table knows.
func (t *Table) Size() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
