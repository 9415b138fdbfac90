package watcher

import "time"

// Operation is the kind of filesystem change.
type Operation int

const (
	// OpCreate indicates a new file or directory.
	OpCreate Operation = iota
	// OpModify indicates changed file content.
	OpModify
	// OpDelete indicates a removed file or directory.
	OpDelete
	// OpRename indicates the old name of a moved entry.
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change under the watched root.
type FileEvent struct {
	// Path is absolute.
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}
