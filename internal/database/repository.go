package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("database: record not found")

// DBQuerier defines the interface for database query operations.
// Both *sql.DB and *sql.Tx implement this interface.
type DBQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository provides database operations for the URLCache overflow store
// and the download-handle audit log.
type Repository struct {
	db DBQuerier
}

// NewRepository creates a new repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// WithTransaction executes a function within a database transaction.
func (r *Repository) WithTransaction(ctx context.Context, fn func(*Repository) error) error {
	sqlDB, ok := r.db.(*sql.DB)
	if !ok {
		return fmt.Errorf("repository not connected to sql.DB")
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txRepo := &Repository{db: tx}

	if err := fn(txRepo); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w): %w", err, rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CacheRecord mirrors a single URLCache entry persisted past process restart.
type CacheRecord struct {
	CacheKey    string
	ResolvedURL string
	StreamTitle string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// UpsertCacheRecord inserts or refreshes a cached resolved URL.
func (r *Repository) UpsertCacheRecord(ctx context.Context, rec *CacheRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cache_records (cache_key, resolved_url, stream_title, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			resolved_url = excluded.resolved_url,
			stream_title = excluded.stream_title,
			expires_at = excluded.expires_at
	`, rec.CacheKey, rec.ResolvedURL, rec.StreamTitle, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert cache record: %w", err)
	}
	return nil
}

// GetCacheRecord returns a non-expired cache record, or ErrNotFound.
func (r *Repository) GetCacheRecord(ctx context.Context, key string) (*CacheRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT cache_key, resolved_url, stream_title, expires_at, created_at
		FROM cache_records WHERE cache_key = ? AND expires_at > ?
	`, key, time.Now())

	rec := &CacheRecord{}
	if err := row.Scan(&rec.CacheKey, &rec.ResolvedURL, &rec.StreamTitle, &rec.ExpiresAt, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cache record: %w", err)
	}
	return rec, nil
}

// DeleteExpiredCacheRecords removes every cache record past its expiry and
// returns the number of rows removed.
func (r *Repository) DeleteExpiredCacheRecords(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cache_records WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("delete expired cache records: %w", err)
	}
	return res.RowsAffected()
}

// DownloadHandleRecord is the audit-log row for a DownloadHandle's lifecycle.
type DownloadHandleRecord struct {
	HandleID     string
	NZBUrl       string
	Title        string
	State        string
	ProgressPct  float64
	SABnzbdNzoID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpsertDownloadHandle records the current state of a download handle.
func (r *Repository) UpsertDownloadHandle(ctx context.Context, rec *DownloadHandleRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO download_handles (handle_id, nzb_url, title, state, progress_pct, sabnzbd_nzo_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(handle_id) DO UPDATE SET
			state = excluded.state,
			progress_pct = excluded.progress_pct,
			sabnzbd_nzo_id = excluded.sabnzbd_nzo_id,
			updated_at = excluded.updated_at
	`, rec.HandleID, rec.NZBUrl, rec.Title, rec.State, rec.ProgressPct, rec.SABnzbdNzoID, time.Now())
	if err != nil {
		return fmt.Errorf("upsert download handle: %w", err)
	}
	return nil
}

// GetDownloadHandle loads a single download handle by id.
func (r *Repository) GetDownloadHandle(ctx context.Context, handleID string) (*DownloadHandleRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT handle_id, nzb_url, title, state, progress_pct, sabnzbd_nzo_id, created_at, updated_at
		FROM download_handles WHERE handle_id = ?
	`, handleID)

	rec := &DownloadHandleRecord{}
	if err := row.Scan(&rec.HandleID, &rec.NZBUrl, &rec.Title, &rec.State, &rec.ProgressPct,
		&rec.SABnzbdNzoID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get download handle: %w", err)
	}
	return rec, nil
}

// ListDownloadHandlesByState returns every handle in a given state, oldest first.
func (r *Repository) ListDownloadHandlesByState(ctx context.Context, state string) ([]*DownloadHandleRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT handle_id, nzb_url, title, state, progress_pct, sabnzbd_nzo_id, created_at, updated_at
		FROM download_handles WHERE state = ? ORDER BY created_at ASC
	`, state)
	if err != nil {
		return nil, fmt.Errorf("list download handles: %w", err)
	}
	defer rows.Close()

	var out []*DownloadHandleRecord
	for rows.Next() {
		rec := &DownloadHandleRecord{}
		if err := rows.Scan(&rec.HandleID, &rec.NZBUrl, &rec.Title, &rec.State, &rec.ProgressPct,
			&rec.SABnzbdNzoID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan download handle: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteDownloadHandle removes a handle's audit row, e.g. after orphan cleanup.
func (r *Repository) DeleteDownloadHandle(ctx context.Context, handleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM download_handles WHERE handle_id = ?`, handleID)
	if err != nil {
		return fmt.Errorf("delete download handle: %w", err)
	}
	return nil
}
