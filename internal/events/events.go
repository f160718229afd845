// Package events defines the notifications flowing into and out of the index:
// file changes coming in from a Source and progress published to a Sink.
package events

import "time"

// Kind identifies a published event.
type Kind string

const (
	IndexingStarted         Kind = "indexing_started"
	IndexingProgress        Kind = "indexing_progress"
	IndexingCompleted       Kind = "indexing_completed"
	ProjectReindexCompleted Kind = "project_reindex_completed"
	FileIndexed             Kind = "file_indexed"
	FileRemoved             Kind = "file_removed"
	AIEnrichmentStarted     Kind = "ai_enrichment_started"
	AIEnrichmentProgress    Kind = "ai_enrichment_progress"
	AIEnrichmentCompleted   Kind = "ai_enrichment_completed"
)

// Event is a progress notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind        Kind
	Processed   int
	Total       int
	CurrentFile string
	Count       int
	Duration    time.Duration
}

// Sink receives published events. Publish must not block for long.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// FileOp is the kind of file-system change.
type FileOp int

const (
	FileCreated FileOp = iota
	FileModified
	FileRenamed
	FileDeleted
)

func (op FileOp) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileRenamed:
		return "renamed"
	case FileDeleted:
		return "deleted"
	}
	return "unknown"
}

// FileEvent is one file-system change. OldPath is set only for renames.
type FileEvent struct {
	Op      FileOp
	Path    string
	OldPath string
}

// Source delivers file-system changes until closed.
type Source interface {
	Events() <-chan FileEvent
	Close() error
}
