package recorder

import "time"

// Load sources.
const (
	SourceCache  = "cache"
	SourceRemote = "remote"
)

// LoadEvent describes one Loader.Load call.
type LoadEvent struct {
	ID     string
	Ticker string
	Source string // SourceCache or SourceRemote
	Start  time.Time
	End    time.Time
	Rows   int
	Err    string // empty on success
	At     time.Time
}

// Recorder persists the load history for later inspection.
type Recorder interface {
	RecordLoad(evt *LoadEvent) error
	RecentLoads(limit int) ([]LoadEvent, error)
	Close() error
}
