package store

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// buildQuery turns a parsed pattern into a bleve query. Each clause is a
// disjunction over SearchableFields; clauses are joined with AND, or OR when
// MatchAny is set. Negated clauses exclude their matches.
func buildQuery(q Query) query.Query {
	if q.IsMatchAll() {
		return bleve.NewMatchAllQuery()
	}

	var positive, negative []query.Query
	for _, c := range q.Clauses {
		cq := clauseQuery(c, q.PrefixAll)
		if c.Negated {
			negative = append(negative, cq)
		} else {
			positive = append(positive, cq)
		}
	}

	var base query.Query
	switch {
	case len(positive) == 0:
		base = bleve.NewMatchAllQuery()
	case len(positive) == 1:
		base = positive[0]
	case q.MatchAny:
		base = bleve.NewDisjunctionQuery(positive...)
	default:
		base = bleve.NewConjunctionQuery(positive...)
	}

	if len(negative) == 0 {
		return base
	}
	bq := bleve.NewBooleanQuery()
	bq.AddMust(base)
	bq.AddMustNot(negative...)
	return bq
}

func clauseQuery(c Clause, prefixAll bool) query.Query {
	perField := make([]query.Query, 0, len(SearchableFields))
	for _, field := range SearchableFields {
		perField = append(perField, fieldQuery(c, field, prefixAll))
	}
	return bleve.NewDisjunctionQuery(perField...)
}

func fieldQuery(c Clause, field string, prefixAll bool) query.Query {
	switch {
	case c.Phrase:
		pq := bleve.NewMatchPhraseQuery(c.Text)
		pq.SetField(field)
		return pq
	case c.Prefix:
		return prefixQuery(c.Text, field)
	}

	mq := bleve.NewMatchQuery(c.Text)
	mq.SetField(field)
	mq.SetOperator(query.MatchQueryOperatorAnd)
	if !prefixAll {
		return mq
	}
	return bleve.NewDisjunctionQuery(mq, prefixQuery(c.Text, field))
}

// prefixQuery is not analysed, so the prefix is lowercased to meet the
// lowercased index terms.
func prefixQuery(text, field string) query.Query {
	pq := bleve.NewPrefixQuery(strings.ToLower(text))
	pq.SetField(field)
	return pq
}
