// Package resolve matches user-supplied names against known operation and
// environment names.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

var (
	ErrEmptyQuery = errors.New("empty name")
	ErrEmptyItems = errors.New("no names to match against")
)

// maxEditDistance bounds typo suggestions.
const maxEditDistance = 3

// AmbiguousError indicates multiple candidates matched equally well.
type AmbiguousError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "ambiguous match for %q", e.Query)
	if len(e.Candidates) > 0 {
		b.WriteString(", candidates: ")
		b.WriteString(strings.Join(e.Candidates, ", "))
	}
	return b.String()
}

type lowerSource []string

func (s lowerSource) String(i int) string { return strings.ToLower(s[i]) }
func (s lowerSource) Len() int            { return len(s) }

// Match finds the name best matching query.
//
// Exact case-insensitive matches win. Otherwise the query is fuzzy matched as
// a subsequence; if the two best results tie, an *AmbiguousError is returned.
func Match(query string, names []string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	if len(names) == 0 {
		return "", ErrEmptyItems
	}
	for _, n := range names {
		if strings.EqualFold(n, query) {
			return n, nil
		}
	}

	results := fuzzy.FindFrom(strings.ToLower(query), lowerSource(names))
	if len(results) == 0 {
		return "", fmt.Errorf("no match found for %q", query)
	}
	if len(results) > 1 && results[0].Score == results[1].Score {
		return "", &AmbiguousError{Query: query, Candidates: collect(names, results, 5)}
	}
	return names[results[0].Index], nil
}

// Suggest returns up to limit names close to query: fuzzy subsequence
// matches first, then names within a small edit distance.
func Suggest(query string, names []string, limit int) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || len(names) == 0 || limit <= 0 {
		return nil
	}

	out := collect(names, fuzzy.FindFrom(query, lowerSource(names)), limit)
	if len(out) >= limit {
		return out
	}
	seen := make(map[string]struct{}, len(out))
	for _, n := range out {
		seen[n] = struct{}{}
	}
	for d := 1; d <= maxEditDistance && len(out) < limit; d++ {
		for _, n := range names {
			if _, ok := seen[n]; ok {
				continue
			}
			if levenshtein(query, strings.ToLower(n)) == d {
				out = append(out, n)
				seen[n] = struct{}{}
				if len(out) == limit {
					break
				}
			}
		}
	}
	return out
}

func collect(names []string, results fuzzy.Matches, limit int) []string {
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, names[r.Index])
	}
	return out
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	row := make([]int, lb+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= la; i++ {
		prev := i - 1
		row[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			val := min(row[j]+1, row[j-1]+1, prev+cost)
			prev = row[j]
			row[j] = val
		}
	}
	return row[lb]
}
