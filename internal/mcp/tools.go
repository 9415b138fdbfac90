package mcp

// SearchInput is the input schema of the search tool.
type SearchInput struct {
	Pattern string `json:"pattern" jsonschema:"search pattern: terms, \"quoted phrases\", -excluded, prefix*; empty matches all documents"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of hits, default 10"`
	Offset  int    `json:"offset,omitempty" jsonschema:"number of ranked hits to skip"`
}

// SearchOutput is the structured result of the search tool.
type SearchOutput struct {
	Pattern string      `json:"pattern"`
	Total   uint64      `json:"total" jsonschema:"number of matching documents"`
	Hits    []HitOutput `json:"hits"`
}

// HitOutput is one ranked document.
type HitOutput struct {
	ID         string              `json:"id"`
	Path       string              `json:"path"`
	Name       string              `json:"name"`
	Extension  string              `json:"extension,omitempty"`
	Date       string              `json:"date,omitempty" jsonschema:"file date, RFC 3339"`
	Score      float64             `json:"score"`
	Highlights map[string][]string `json:"highlights,omitempty" jsonschema:"matching fragments per field with <mark> tags"`
}

// SuggestInput is the input schema of the suggest tool.
type SuggestInput struct {
	Prefix string `json:"prefix" jsonschema:"partial input; every word is matched as a prefix"`
}

// SuggestOutput is the structured result of the suggest tool.
type SuggestOutput struct {
	Documents []DocumentOutput `json:"documents"`
}

// DocumentOutput is a suggested document.
type DocumentOutput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// FacetsInput is the input schema of the facets tool.
type FacetsInput struct {
	Pattern string `json:"pattern,omitempty" jsonschema:"restrict facets to documents matching this pattern; empty means all"`
}

// FacetsOutput is the structured result of the facets tool.
type FacetsOutput struct {
	FileExtension []BucketOutput `json:"fileExtension"`
	FileDate      []BucketOutput `json:"fileDate" jsonschema:"cumulative date buckets from last_month to until_now"`
	FileCategory  []BucketOutput `json:"fileCategory"`
}

// BucketOutput is one facet bucket.
type BucketOutput struct {
	Key      string `json:"key"`
	Count    int64  `json:"count"`
	Category string `json:"category,omitempty" jsonschema:"category name, when the key is a known category id"`
}

// TopTermsInput is the input schema of the top_terms tool.
type TopTermsInput struct {
	Pattern string `json:"pattern,omitempty" jsonschema:"restrict terms to documents matching this pattern; empty means all"`
}

// TopTermsOutput is the structured result of the top_terms tool.
type TopTermsOutput struct {
	Terms []BucketOutput `json:"terms"`
}
