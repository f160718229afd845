package search

import (
	"path"
	"sort"
	"strings"
)

// Ranking weights for FindFiles. Changing them changes result order.
const (
	baseExact    = 1000
	basePrefix   = 700
	baseContains = 500
	pathExact    = 400
	pathPrefix   = 250
	pathContains = 100
	docPenalty   = -50
	aiBonus      = 25
)

// Candidate is a file considered by Rank.
type Candidate struct {
	// RelPath is slash-separated and relative to the project root.
	RelPath      string
	QualityScore float64
	AIEnriched   bool
}

// Score rates how well c matches needle. Comparison is case-insensitive.
func Score(c Candidate, needle string) float64 {
	needle = strings.ToLower(needle)
	rel := strings.ToLower(c.RelPath)
	base := path.Base(rel)

	var s float64
	switch {
	case base == needle:
		s += baseExact
	case strings.HasPrefix(base, needle):
		s += basePrefix
	case strings.Contains(base, needle):
		s += baseContains
	}
	switch {
	case rel == needle:
		s += pathExact
	case strings.HasPrefix(rel, needle):
		s += pathPrefix
	case strings.Contains(rel, needle):
		s += pathContains
	}
	if strings.HasSuffix(rel, ".md") || strings.HasSuffix(rel, ".markdown") {
		s += docPenalty
	}
	if c.AIEnriched {
		s += aiBonus
	}
	return s + c.QualityScore
}

// Ranked is a candidate with its score.
type Ranked struct {
	Candidate
	Score float64
}

// Rank orders candidates by descending score, breaking ties by relative path.
func Rank(cands []Candidate, needle string) []Ranked {
	out := make([]Ranked, len(cands))
	for i, c := range cands {
		out[i] = Ranked{Candidate: c, Score: Score(c, needle)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].RelPath < out[j].RelPath
	})
	return out
}
