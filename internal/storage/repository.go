package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertNotificationSQL = `INSERT INTO notifications (
        device_id,
        alert_id,
        symbol,
        title,
        body,
        sent_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, device_id, alert_id, symbol, title, body, sent_at;`

	listRecentNotificationsSQL = `SELECT
        id,
        device_id,
        alert_id,
        symbol,
        title,
        body,
        sent_at
    FROM notifications
    ORDER BY sent_at DESC
    LIMIT $1;`

	deleteNotificationsBeforeSQL = `DELETE FROM notifications WHERE sent_at < $1;`
)

// Store persists delivered notifications in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertNotification records one delivered push.
func (s *Store) InsertNotification(ctx context.Context, rec NotificationRecord) (NotificationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return NotificationRecord{}, err
	}

	row := pool.QueryRow(ctx, insertNotificationSQL,
		rec.DeviceID,
		rec.AlertID,
		rec.Symbol,
		rec.Title,
		rec.Body,
		rec.SentAt,
	)

	var out NotificationRecord
	if scanErr := row.Scan(
		&out.ID,
		&out.DeviceID,
		&out.AlertID,
		&out.Symbol,
		&out.Title,
		&out.Body,
		&out.SentAt,
	); scanErr != nil {
		return NotificationRecord{}, fmt.Errorf("insert notification: %w", scanErr)
	}
	return out, nil
}

// ListRecentNotifications lists the most recently delivered notifications.
func (s *Store) ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentNotificationsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent notifications: %w", queryErr)
	}
	defer rows.Close()

	records := make([]NotificationRecord, 0, limit)
	for rows.Next() {
		var rec NotificationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.DeviceID,
			&rec.AlertID,
			&rec.Symbol,
			&rec.Title,
			&rec.Body,
			&rec.SentAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// DeleteNotificationsBefore prunes historical notifications.
func (s *Store) DeleteNotificationsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteNotificationsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete notifications before: %w", execErr)
	}
	return nil
}

var _ NotificationStore = (*Store)(nil)
