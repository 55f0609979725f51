package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
)

// opKey кодирует ID операции в big-endian ключ, сохраняющий порядок
func opKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// AppendOperation durably appends an operation to the queue and
// assigns its monotonic local ID from the bucket sequence
func (s *Storage) AppendOperation(ctx context.Context, op *models.Operation) (uint64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var id uint64

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		op.ID = seq

		// Операции сериализуются в msgpack: bucket высокочастотный,
		// компактность важнее читаемости
		data, err := msgpack.Marshal(op)
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}

		if err := bucket.Put(opKey(seq), data); err != nil {
			return fmt.Errorf("failed to save operation: %w", err)
		}

		id = seq
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("append transaction failed: %w", err)
	}

	return id, nil
}

// GroupOperations returns all queued operations for one entity in
// enqueue (ID) order
func (s *Storage) GroupOperations(ctx context.Context, table, entityID string) ([]*models.Operation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var ops []*models.Operation

	err := s.db.View(func(tx *bbolt.Tx) error {
		// Ключи big-endian, поэтому ForEach обходит в порядке ID
		return tx.Bucket(bucketQueue).ForEach(func(k, v []byte) error {
			var op models.Operation
			if err := msgpack.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}

			if op.Table == table && op.EntityID == entityID {
				ops = append(ops, &op)
			}

			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to group operations: %w", err)
	}

	return ops, nil
}

// RemoveOperations deletes acknowledged operations by exact ID.
// Missing IDs are skipped: removal is optimistic and the application
// may have enqueued new operations since the group was read.
func (s *Storage) RemoveOperations(ctx context.Context, ids []uint64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		for _, id := range ids {
			if err := bucket.Delete(opKey(id)); err != nil {
				return fmt.Errorf("failed to delete operation %d: %w", id, err)
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("remove transaction failed: %w", err)
	}

	return nil
}

// UpdateRetryState persists retry bookkeeping after a failed push
func (s *Storage) UpdateRetryState(ctx context.Context, ids []uint64, retries int, nextRetryAt time.Time) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		for _, id := range ids {
			data := bucket.Get(opKey(id))
			if data == nil {
				// Операция уже подтверждена другим циклом
				continue
			}

			var op models.Operation
			if err := msgpack.Unmarshal(data, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}

			op.Retries = retries
			op.NextRetryAt = nextRetryAt

			updated, err := msgpack.Marshal(&op)
			if err != nil {
				return fmt.Errorf("failed to marshal operation: %w", err)
			}

			if err := bucket.Put(opKey(id), updated); err != nil {
				return fmt.Errorf("failed to save operation: %w", err)
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("retry update transaction failed: %w", err)
	}

	return nil
}

// PendingEntities returns the distinct (table, entityId) pairs with
// queued operations
func (s *Storage) PendingEntities(ctx context.Context) ([]models.EntityKey, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	seen := make(map[models.EntityKey]struct{})
	var keys []models.EntityKey

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(k, v []byte) error {
			var op models.Operation
			if err := msgpack.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}

			key := models.EntityKey{Table: op.Table, EntityID: op.EntityID}
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				keys = append(keys, key)
			}

			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list pending entities: %w", err)
	}

	return keys, nil
}

// CountOperations returns the number of queued operations
func (s *Storage) CountOperations(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var count int

	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketQueue).Stats().KeyN
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}

	return count, nil
}
