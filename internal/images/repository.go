package images

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	repoTimeout           = 5 * time.Second
	defaultAcquireTimeout = 5 * time.Second
)

// ErrDuplicateFilename indicates a generated name that is already recorded.
var ErrDuplicateFilename = errors.New("duplicate image filename")

// Repository provides access to image metadata storage.
type Repository struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// NewRepository builds a repository over an injected pool. A non-positive
// acquireTimeout falls back to five seconds.
func NewRepository(pool *pgxpool.Pool, acquireTimeout time.Duration) *Repository {
	if acquireTimeout <= 0 {
		acquireTimeout = defaultAcquireTimeout
	}
	return &Repository{pool: pool, acquireTimeout: acquireTimeout}
}

// acquire borrows a pooled connection. Callers must Release it.
func (r *Repository) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("%w: pool not initialized", ErrConnectionUnavailable)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()

	conn, err := r.pool.Acquire(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionUnavailable, err)
	}
	return conn, nil
}

// Create inserts metadata for a stored image.
func (r *Repository) Create(ctx context.Context, rec NewRecord) (Record, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return Record{}, err
	}
	defer conn.Release()

	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO images (filename, original_name, size, file_type)
VALUES ($1, $2, $3, $4)
RETURNING id, filename, original_name, size, file_type, upload_time;`

	var stored Record
	err = conn.QueryRow(ctx, query, rec.Filename, rec.OriginalName, rec.Size, rec.FileType).Scan(
		&stored.ID,
		&stored.Filename,
		&stored.OriginalName,
		&stored.Size,
		&stored.FileType,
		&stored.UploadTime,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Record{}, fmt.Errorf("%w: %s", ErrDuplicateFilename, rec.Filename)
		}
		return Record{}, fmt.Errorf("create image metadata: %w", err)
	}
	return stored, nil
}

// Page returns up to limit records newest first, skipping offset, together
// with the total record count. Both queries share one borrowed connection.
func (r *Repository) Page(ctx context.Context, limit, offset int) ([]Record, int64, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Release()

	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var total int64
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM images;`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count images: %w", err)
	}
	if total == 0 || int64(offset) >= total {
		return []Record{}, total, nil
	}

	query := `
SELECT id, filename, original_name, size, file_type, upload_time
FROM images
ORDER BY upload_time DESC, id DESC
LIMIT $1 OFFSET $2;`

	rows, err := conn.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.OriginalName, &rec.Size, &rec.FileType, &rec.UploadTime); err != nil {
			return nil, 0, fmt.Errorf("scan image metadata: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate images: %w", err)
	}
	return records, total, nil
}

// FindFilename looks up the storage name of a record.
func (r *Repository) FindFilename(ctx context.Context, id int64) (string, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Release()

	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var filename string
	err = conn.QueryRow(ctx, `SELECT filename FROM images WHERE id = $1;`, id).Scan(&filename)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrImageNotFound
		}
		return "", fmt.Errorf("find image: %w", err)
	}
	return filename, nil
}

// Delete removes a record and returns its filename. Of two concurrent
// deletes of one id only one gets a row back; the other sees ErrImageNotFound.
func (r *Repository) Delete(ctx context.Context, id int64) (string, error) {
	conn, err := r.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Release()

	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var filename string
	err = conn.QueryRow(ctx, `DELETE FROM images WHERE id = $1 RETURNING filename;`, id).Scan(&filename)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrImageNotFound
		}
		return "", fmt.Errorf("delete image metadata: %w", err)
	}
	return filename, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
