package store

import "time"

// Resource represents one indexed file.
type Resource struct {
	ID             string
	Path           string
	Language       string
	LastModified   int64
	ContentHash    string
	QualityScore   float64
	QualityDetails string
	AIEnriched     bool
	Summary        string
}

// ResourceState is the subset of a Resource used to decide whether a file
// needs re-indexing or re-enrichment.
type ResourceState struct {
	LastModified int64
	ContentHash  string
	AIEnriched   bool
}

// Symbol is a named code entity extracted from a Resource.
type Symbol struct {
	ID          string
	ResourceID  string
	Name        string
	Kind        string
	LineStart   int
	LineEnd     int
	Description string
}

// SymbolMatch is a Symbol joined with the path of its owning Resource.
type SymbolMatch struct {
	Symbol
	Path string
}

// ResourceMatch is a lightweight resource row used for file-path ranking.
type ResourceMatch struct {
	Path         string
	QualityScore float64
	AIEnriched   bool
}

// FTSHit is a full-text match with a highlighted snippet.
type FTSHit struct {
	Path    string
	Snippet string
}

// ScopedStats aggregates resources under a path prefix with allowed extensions.
type ScopedStats struct {
	Indexed        int
	Enriched       int
	AverageQuality float64
}

// IndexStats is computed on demand and never persisted.
type IndexStats struct {
	Resources      int
	Symbols        int
	SymbolsByKind  map[string]int
	Languages      map[string]int
	Enriched       int
	AverageQuality float64
	Memories       int
	DatabaseBytes  int64
}

// Tier classifies a memory entry.
type Tier string

const (
	TierShortTerm Tier = "short-term"
	TierLongTerm  Tier = "long-term"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierShortTerm || t == TierLongTerm
}

// MemoryEntry is a durable note owned by the calling layer.
type MemoryEntry struct {
	ID              string
	Tier            Tier
	Content         string
	Category        string
	Timestamp       time.Time
	ProtectionLevel int
}

// MemoryMatch is a memory with its cosine distance to a query vector.
type MemoryMatch struct {
	MemoryEntry
	Distance float64
}
