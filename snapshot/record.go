package snapshot

import "time"

// Record is one persisted database.
type Record struct {
	ID           string
	Name         string
	Data         []byte
	CreatedAt    time.Time
	LastModified time.Time
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	if r.Data != nil {
		clone.Data = append([]byte(nil), r.Data...)
	}
	return &clone
}

// Blob is a record snapshot packaged for transport outside the store.
type Blob struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ContentType is the media type of exported snapshots.
const ContentType = "application/x-sqlite3"

// FileExtension is appended to record names for exported snapshots.
const FileExtension = ".sqlite"
