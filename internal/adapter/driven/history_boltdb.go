package driven

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/umdl/umd-host/internal/history"
)

const historyBucket = "download_history"

// HistoryBoltDBRepository implements the HistoryRepository port using
// BoltDB. Records are keyed by finish timestamp so a reverse cursor
// walk yields them most recent first.
type HistoryBoltDBRepository struct {
	db *bbolt.DB
}

// NewHistoryBoltDBRepository creates a new BoltDB-backed history
// repository. It initializes the required bucket if it doesn't exist.
func NewHistoryBoltDBRepository(db *bbolt.DB) (*HistoryBoltDBRepository, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}

	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(historyBucket))
		return err
	})
	if err != nil {
		return nil, err
	}

	return &HistoryBoltDBRepository{db: db}, nil
}

// historyDTO is the JSON serialization format for a download record.
type historyDTO struct {
	ResourceID   string `json:"resource_id"`
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	Completed    bool   `json:"completed"`
	ErrorMessage string `json:"error_message,omitempty"`
	FinishedAt   int64  `json:"finished_at"`
}

// Save persists a terminal download record.
func (r *HistoryBoltDBRepository) Save(ctx context.Context, rec history.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		if b == nil {
			return errors.New("history bucket not found")
		}

		dto := historyDTO{
			ResourceID:   rec.ResourceID(),
			URL:          rec.URL(),
			Filename:     rec.Filename(),
			Completed:    rec.Completed(),
			ErrorMessage: rec.ErrorMessage(),
			FinishedAt:   rec.FinishedAt().UnixNano(),
		}

		data, err := json.Marshal(dto)
		if err != nil {
			return err
		}

		return b.Put(timestampKey(rec.FinishedAt(), rec.ResourceID()), data)
	})
}

// FindRecent retrieves up to limit records, most recent first.
func (r *HistoryBoltDBRepository) FindRecent(ctx context.Context, limit int) ([]history.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	var records []history.Record
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		if b == nil {
			return errors.New("history bucket not found")
		}

		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var dto historyDTO
			if err := json.Unmarshal(v, &dto); err != nil {
				return fmt.Errorf("decoding history record: %w", err)
			}
			records = append(records, history.ReconstructRecord(
				dto.ResourceID,
				dto.URL,
				dto.Filename,
				dto.Completed,
				dto.ErrorMessage,
				time.Unix(0, dto.FinishedAt),
			))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Ping verifies the database is reachable by opening a read
// transaction against the history bucket.
func (r *HistoryBoltDBRepository) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(historyBucket)) == nil {
			return errors.New("history bucket not found")
		}
		return nil
	})
}

// timestampKey builds a sortable key from the finish time, with the
// resource ID as a tiebreaker for records finishing in the same
// nanosecond.
func timestampKey(t time.Time, resourceID string) []byte {
	key := make([]byte, 8, 8+len(resourceID))
	binary.BigEndian.PutUint64(key, uint64(t.UnixNano()))
	return append(key, resourceID...)
}
