// Package history records one audit row per processed file.
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/rshrestha/imagetools/internal/database"
	"github.com/rshrestha/imagetools/internal/model"
)

// DefaultListLimit bounds List when the caller passes 0.
const DefaultListLimit = 100

// Recorder appends and lists processing history. Appends are not
// idempotent; callers must call exactly once per file outcome.
type Recorder struct {
	db database.Database
}

func New(db database.Database) *Recorder {
	return &Recorder{db: db}
}

// Append stores rec, assigning ID and CreatedAt when unset. An empty
// UserID records the row as anonymous.
func (r *Recorder) Append(rec *model.ProcessingRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return r.db.InsertHistory(rec)
}

// List returns records newest-first. An empty userID returns only
// anonymous records, not a merged feed.
func (r *Recorder) List(userID string, limit int) ([]*model.ProcessingRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return r.db.ListHistory(userID, limit)
}
