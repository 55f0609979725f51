package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/offsync/internal/server/storage"
	"github.com/iudanet/offsync/pkg/api"
)

// ApplyChange applies one coalesced client change to a row.
// Правила сведения на авторитетной реплике:
//   - delete всегда побеждает (tombstone, независимо от времени)
//   - increment всегда применяется аддитивно к текущему значению
//   - create/set принимаются, только если входящая версия
//     (updated_at, device_id) выигрывает у сохранённой - тот же
//     детерминированный last-write-wins, что и на клиентах
//
// Проигравший set не ошибка: сервер возвращает актуальную строку,
// клиент заберёт её следующим pull'ом.
func (s *Storage) ApplyChange(ctx context.Context, table, userID string, change api.Change, serverTime int64) (*api.Row, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	existing, err := getRowTx(ctx, tx, table, userID, change.EntityID)
	if err != nil && !errors.Is(err, storage.ErrRowNotFound) {
		return nil, fmt.Errorf("failed to read existing row: %w", err)
	}

	row := existing
	if row == nil {
		row = &api.Row{
			ID:        change.EntityID,
			UserID:    userID,
			DeviceID:  change.DeviceID,
			Fields:    make(map[string]any),
			CreatedAt: serverTime,
			UpdatedAt: change.UpdatedAt,
		}
	}

	accepted := false

	// Удаление побеждает независимо от времени. Следом может идти
	// create той же группы (пересоздание записи)
	if change.Delete {
		row.Deleted = true
		row.Fields = make(map[string]any)
		row.UpdatedAt = change.UpdatedAt
		row.DeviceID = change.DeviceID
		accepted = true
	}

	// create воскрешает строку и заменяет поля целиком; set только
	// дополняет и tombstone не снимает
	if change.Create != nil {
		if existing == nil || change.Delete || incomingWins(change, existing) {
			row.Deleted = false
			row.Fields = make(map[string]any, len(change.Create))
			for field, value := range change.Create {
				row.Fields[field] = value
			}
			row.UpdatedAt = change.UpdatedAt
			row.DeviceID = change.DeviceID
			accepted = true
		}
	} else if change.Set != nil {
		if existing == nil || change.Delete || incomingWins(change, existing) {
			for field, value := range change.Set {
				row.Fields[field] = value
			}
			row.UpdatedAt = change.UpdatedAt
			row.DeviceID = change.DeviceID
			accepted = true
		}
	}

	// Инкременты аддитивны: дельты конкурентных устройств
	// складываются, проигравших нет
	for field, delta := range change.Increment {
		base := 0.0
		if v, ok := row.Fields[field]; ok {
			base = toFloat(v)
		}
		row.Fields[field] = base + delta
		accepted = true
	}

	if accepted || existing == nil {
		row.ServerUpdatedAt = serverTime
		if err := upsertRowTx(ctx, tx, table, row); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return row, nil
}

// incomingWins сравнивает входящую версию с сохранённой: сначала
// updated_at, при равенстве лексикографически больший device_id
func incomingWins(change api.Change, existing *api.Row) bool {
	if change.UpdatedAt != existing.UpdatedAt {
		return change.UpdatedAt > existing.UpdatedAt
	}
	return change.DeviceID > existing.DeviceID
}

// toFloat приводит JSON-значение к float64 для аддитивного слияния
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

// GetRow retrieves a single row by primary key
func (s *Storage) GetRow(ctx context.Context, table, userID, id string) (*api.Row, error) {
	return getRow(ctx, s.db, table, userID, id)
}

// GetRowsSince retrieves all rows of a user changed after the cursor
func (s *Storage) GetRowsSince(ctx context.Context, table, userID string, since int64) ([]*api.Row, error) {
	query := `
		SELECT id, user_id, device_id, fields,
		       created_at, updated_at, server_updated_at, deleted
		FROM rows
		WHERE tbl = ? AND user_id = ? AND server_updated_at > ?
		ORDER BY server_updated_at
	`

	rows, err := s.db.QueryContext(ctx, query, table, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	result := []*api.Row{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return result, nil
}

// rowScanner абстрагирует *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRow читает одну строку результата в wire-форму
func scanRow(scanner rowScanner) (*api.Row, error) {
	var (
		row        api.Row
		fieldsJSON string
		deleted    int
	)

	err := scanner.Scan(
		&row.ID,
		&row.UserID,
		&row.DeviceID,
		&fieldsJSON,
		&row.CreatedAt,
		&row.UpdatedAt,
		&row.ServerUpdatedAt,
		&deleted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRowNotFound
		}
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &row.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	row.Deleted = deleted != 0

	return &row, nil
}

// queryer абстрагирует *sql.DB и *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getRow(ctx context.Context, q queryer, table, userID, id string) (*api.Row, error) {
	query := `
		SELECT id, user_id, device_id, fields,
		       created_at, updated_at, server_updated_at, deleted
		FROM rows
		WHERE tbl = ? AND user_id = ? AND id = ?
	`

	return scanRow(q.QueryRowContext(ctx, query, table, userID, id))
}

func getRowTx(ctx context.Context, tx *sql.Tx, table, userID, id string) (*api.Row, error) {
	return getRow(ctx, tx, table, userID, id)
}

func upsertRowTx(ctx context.Context, tx *sql.Tx, table string, row *api.Row) error {
	fieldsJSON, err := json.Marshal(row.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	query := `
		INSERT INTO rows (
			tbl, id, user_id, device_id, fields,
			created_at, updated_at, server_updated_at, deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tbl, id) DO UPDATE SET
			device_id = excluded.device_id,
			fields = excluded.fields,
			updated_at = excluded.updated_at,
			server_updated_at = excluded.server_updated_at,
			deleted = excluded.deleted
	`

	_, err = tx.ExecContext(ctx, query,
		table,
		row.ID,
		row.UserID,
		row.DeviceID,
		string(fieldsJSON),
		row.CreatedAt,
		row.UpdatedAt,
		row.ServerUpdatedAt,
		boolToInt(row.Deleted),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert row: %w", err)
	}

	return nil
}

// boolToInt конвертирует bool в int для SQLite
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
