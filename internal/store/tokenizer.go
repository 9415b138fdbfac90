package store

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// PathTokenizerName splits node paths into folder and file name words.
	PathTokenizerName = "edm_path_tokenizer"

	// PathAnalyzerName is the analyzer of the top-terms facet field.
	PathAnalyzerName = "edm_path_terms"
)

func init() {
	_ = registry.RegisterTokenizer(PathTokenizerName, pathTokenizerConstructor)
}

// PathToken is a word of a node path with its byte offsets.
type PathToken struct {
	Term  string
	Start int
	End   int
}

// TokenizePath splits a node path into lowercase words. Words are runs of
// letters; digits and punctuation separate them. camelCase runs are split
// and words shorter than two letters are dropped.
//
//	"/Archive/2019/QuarterlyReport_final.PDF" -> archive quarterly report final pdf
func TokenizePath(path string) []PathToken {
	var tokens []PathToken

	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		for _, part := range splitCamelCase(path[start:end], start) {
			if utf8.RuneCountInString(part.Term) >= 2 {
				part.Term = strings.ToLower(part.Term)
				tokens = append(tokens, part)
			}
		}
		start = -1
	}

	for i, r := range path {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(path))

	return tokens
}

// splitCamelCase splits "QuarterlyReport" and "PDFExport" style words.
// offset is the position of word in the original path.
func splitCamelCase(word string, offset int) []PathToken {
	var result []PathToken
	runes := []rune(word)
	partStart := 0
	bytePos := 0
	partByteStart := 0

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || (nextIsLower && unicode.IsUpper(runes[i-1])) {
				if i > partStart {
					result = append(result, PathToken{
						Term:  word[partByteStart:bytePos],
						Start: offset + partByteStart,
						End:   offset + bytePos,
					})
				}
				partStart = i
				partByteStart = bytePos
			}
		}
		bytePos += utf8.RuneLen(r)
	}
	result = append(result, PathToken{
		Term:  word[partByteStart:],
		Start: offset + partByteStart,
		End:   offset + len(word),
	})
	return result
}

func pathTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &blevePathTokenizer{}, nil
}

type blevePathTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *blevePathTokenizer) Tokenize(input []byte) analysis.TokenStream {
	tokens := TokenizePath(string(input))
	stream := make(analysis.TokenStream, 0, len(tokens))
	for i, tok := range tokens {
		stream = append(stream, &analysis.Token{
			Term:     []byte(tok.Term),
			Start:    tok.Start,
			End:      tok.End,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return stream
}
