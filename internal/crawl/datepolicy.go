package crawl

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// maxDayOffset bounds the random day offset added to synthesized dates.
const maxDayOffset = 30

// DatePolicy backfills document dates for archives whose file names embed
// the document year, e.g. "2014_Annual Report". A name containing one of
// Suffixes at index 4 or later, directly preceded by four digits, dates the
// document to 15 July of that year plus 0-30 random days.
type DatePolicy struct {
	Suffixes []string

	// IntN returns a random int in [0, n). Defaults to math/rand/v2.
	IntN func(n int) int
}

// NewDatePolicy returns nil when no suffix is configured; a nil policy
// keeps modification times.
func NewDatePolicy(suffixes []string) *DatePolicy {
	var kept []string
	for _, s := range suffixes {
		if s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &DatePolicy{Suffixes: kept, IntN: rand.IntN}
}

// Apply returns the effective date of a file called name (extension
// stripped) with modification time modTime.
func (p *DatePolicy) Apply(name string, modTime time.Time) time.Time {
	if p == nil {
		return modTime
	}
	for _, suffix := range p.Suffixes {
		year, ok := yearBefore(name, suffix)
		if !ok {
			continue
		}
		intn := p.IntN
		if intn == nil {
			intn = rand.IntN
		}
		base := time.Date(year, time.July, 15, 0, 0, 0, 0, modTime.Location())
		return base.AddDate(0, 0, intn(maxDayOffset+1))
	}
	return modTime
}

func yearBefore(name, suffix string) (int, bool) {
	idx := strings.Index(name, suffix)
	if idx < 4 {
		return 0, false
	}
	token := name[idx-4 : idx]
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return 0, false
		}
	}
	year, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return year, true
}
