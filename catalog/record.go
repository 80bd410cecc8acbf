package catalog

import (
	"time"

	"github.com/rs/zerolog"
)

// Record is one completed backup artifact. Records are immutable once
// published; they are only ever deleted, never mutated.
type Record struct {
	// ID is derived from the creation timestamp and sorts chronologically.
	ID        string
	Name      string
	CreatedAt time.Time
	Size      int64
	// Checksum is empty when the artifact was discovered from a listing
	// and the index has no row for it.
	Checksum string
	Local    bool
	Remote   bool
}

func (r Record) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", r.ID)
	e.Str("name", r.Name)
	e.Time("created_at", r.CreatedAt)
	e.Int64("size", r.Size)
	e.Bool("local", r.Local)
	e.Bool("remote", r.Remote)
}

// Artifact is the persisted index row backing a Record. The index carries
// what backend listings cannot: the content checksum taken at publish time.
type Artifact struct {
	Name      string `gorm:"primaryKey"`
	Checksum  string
	Size      int64
	CreatedAt time.Time
}
