package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/offsync/internal/client/storage"
)

// SaveCursor saves the pull cursor for a table
func (s *Storage) SaveCursor(ctx context.Context, table string, cursor int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCursors)

		// Конвертируем int64 в bytes
		cursorBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(cursorBytes, uint64(cursor))

		if err := bucket.Put([]byte(table), cursorBytes); err != nil {
			return fmt.Errorf("failed to save cursor: %w", err)
		}

		return nil
	})
}

// GetCursor retrieves the pull cursor for a table
// Returns 0 if the table has never been pulled
func (s *Storage) GetCursor(ctx context.Context, table string) (int64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var cursor int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		cursorBytes := tx.Bucket(bucketCursors).Get([]byte(table))
		if cursorBytes == nil {
			// Первая синхронизация таблицы
			cursor = 0
			return nil
		}

		cursor = int64(binary.BigEndian.Uint64(cursorBytes))
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to get cursor: %w", err)
	}

	return cursor, nil
}
