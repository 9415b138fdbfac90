package search

import (
	"fmt"
	"strings"
	"unicode"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/store"
)

// ParsePattern parses a user search pattern. A blank pattern, or one made of
// lone '*' terms, matches every document.
func ParsePattern(pattern string) (store.Query, error) {
	var q store.Query

	runes := []rune(pattern)
	i := 0
	for i < len(runes) {
		if unicode.IsSpace(runes[i]) {
			i++
			continue
		}

		start := i
		negated := false
		if runes[i] == '-' {
			negated = true
			i++
		}

		if i < len(runes) && runes[i] == '"' {
			end := indexRune(runes, i+1, '"')
			if end < 0 {
				return store.Query{}, invalidPattern(pattern, "unbalanced quote", start)
			}
			phrase := strings.TrimSpace(string(runes[i+1 : end]))
			i = end + 1
			if phrase == "" {
				if negated {
					return store.Query{}, invalidPattern(pattern, "empty negated phrase", start)
				}
				continue
			}
			q.Clauses = append(q.Clauses, store.Clause{Text: phrase, Phrase: true, Negated: negated})
			continue
		}

		j := i
		for j < len(runes) && !unicode.IsSpace(runes[j]) {
			if runes[j] == '"' {
				return store.Query{}, invalidPattern(pattern, "quote inside a term", j)
			}
			j++
		}
		term := string(runes[i:j])
		i = j

		prefix := strings.HasSuffix(term, "*")
		term = strings.TrimRight(term, "*")

		if term == "" {
			if negated {
				return store.Query{}, invalidPattern(pattern, "'-' without a term", start)
			}
			// A lone '*' adds nothing to the match.
			continue
		}
		q.Clauses = append(q.Clauses, store.Clause{Text: term, Prefix: prefix, Negated: negated})
	}

	return q, nil
}

func indexRune(runes []rune, from int, r rune) int {
	for k := from; k < len(runes); k++ {
		if runes[k] == r {
			return k
		}
	}
	return -1
}

func invalidPattern(pattern, reason string, pos int) error {
	return edmerrors.QueryError(fmt.Sprintf("invalid search pattern: %s at position %d", reason, pos), nil).
		WithDetail("pattern", pattern).
		WithSuggestion(`use plain words, "quoted phrases", -excluded and prefix* terms`)
}
