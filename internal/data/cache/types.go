package cache

import (
	"time"

	"github.com/google/uuid"
)

// FileEntry records the last transform of one module. A later run may skip
// the module when both its content and the transform options hash match and
// every Resolved site still resolves to the same filename.
type FileEntry struct {
	Path        string
	ContentHash string
	OptionsHash string
	OutputHash  string
	Rewritten   int
	Resolved    []ResolvedSite
	UpdatedAt   time.Time
}

// ResolvedSite is one rewritten call: the specifier, the filename it
// resolved to, and the paths whose existence decided that filename.
type ResolvedSite struct {
	Specifier  string   `json:"specifier"`
	Filename   string   `json:"filename"`
	Candidates []string `json:"candidates,omitempty"`
}

// Fresh reports whether e still describes content transformed under options.
func (e FileEntry) Fresh(contentHash, optionsHash string) bool {
	return e.ContentHash == contentHash && e.OptionsHash == optionsHash
}

type Run struct {
	ID         uuid.UUID
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      int
	Rewritten  int
	Failed     int
}

func NewRun(mode string) Run {
	return Run{
		ID:        uuid.New(),
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
}
