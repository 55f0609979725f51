package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
)

// AppendConflict appends an audit record and trims the history to
// maxLen entries, dropping the oldest first
func (s *Storage) AppendConflict(ctx context.Context, record *models.ConflictRecord, maxLen int) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict record: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		if err := bucket.Put(key, data); err != nil {
			return fmt.Errorf("failed to save conflict record: %w", err)
		}

		// Обрезаем историю: удаляем старейшие записи сверх лимита.
		// Stats().KeyN не видит незакоммиченные Put, считаем курсором.
		if maxLen > 0 {
			total := 0
			cursor := bucket.Cursor()
			for k, _ := cursor.First(); k != nil; k, _ = cursor.Next() {
				total++
			}

			excess := total - maxLen
			for k, _ := cursor.First(); k != nil && excess > 0; k, _ = cursor.Next() {
				if err := cursor.Delete(); err != nil {
					return fmt.Errorf("failed to trim conflict history: %w", err)
				}
				excess--
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("conflict transaction failed: %w", err)
	}

	return nil
}

// RecentConflicts returns up to limit newest audit records, newest first
func (s *Storage) RecentConflicts(ctx context.Context, limit int) ([]*models.ConflictRecord, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var records []*models.ConflictRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketConflicts).Cursor()

		for k, v := cursor.Last(); k != nil && len(records) < limit; k, v = cursor.Prev() {
			var record models.ConflictRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal conflict record: %w", err)
			}
			records = append(records, &record)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to read conflict history: %w", err)
	}

	return records, nil
}
