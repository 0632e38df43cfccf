package fs

import "time"

// Entry represents a single file or directory in a listing.
//
// Entries produced by a directory scan carry only the name and the type
// hint from the directory stream; Size and Modified are filled lazily by
// Stat on first access and are only valid once NeedsStat is false.
type Entry struct {
	Name      string
	IsDir     bool
	Size      int64
	Modified  time.Time
	NeedsStat bool
}
