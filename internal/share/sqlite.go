package share

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore implements the Store interface using SQLite. Conditional writes
// are expressed as single statements (INSERT OR IGNORE, UPDATE ... WHERE
// link_id AND owner_id) so uniqueness and ownership checks are atomic.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite share link store
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	// SQLite allows one writer at a time; a single connection serializes
	// concurrent mutations instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		return nil, err
	}
	return store, nil
}

// initialize creates the share_links table
func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS share_links (
		link_id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		photo_id TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_share_links_photo ON share_links(photo_id);
	CREATE INDEX IF NOT EXISTS idx_share_links_owner ON share_links(owner_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Put inserts a new share link; an existing link id is never overwritten
func (s *SQLiteStore) Put(ctx context.Context, link *ShareLink) error {
	query := `
		INSERT OR IGNORE INTO share_links (link_id, owner_id, photo_id, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		link.LinkID,
		link.OwnerID,
		link.PhotoID,
		link.ExpiresAt.Unix(),
		link.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert share link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrLinkExists
	}

	return nil
}

// GetByID retrieves a share link by id
func (s *SQLiteStore) GetByID(ctx context.Context, linkID string) (*ShareLink, error) {
	query := `
		SELECT link_id, owner_id, photo_id, expires_at, created_at
		FROM share_links
		WHERE link_id = ?
	`

	row := s.db.QueryRowContext(ctx, query, linkID)
	return scanShareLink(row)
}

// ListByPhoto returns all share links for a photo, expired ones included
func (s *SQLiteStore) ListByPhoto(ctx context.Context, photoID string) ([]*ShareLink, error) {
	query := `
		SELECT link_id, owner_id, photo_id, expires_at, created_at
		FROM share_links
		WHERE photo_id = ?
	`
	return s.list(ctx, query, photoID)
}

// ListByOwner returns all share links created by a caller
func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string) ([]*ShareLink, error) {
	query := `
		SELECT link_id, owner_id, photo_id, expires_at, created_at
		FROM share_links
		WHERE owner_id = ?
	`
	return s.list(ctx, query, ownerID)
}

func (s *SQLiteStore) list(ctx context.Context, query string, arg string) ([]*ShareLink, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*ShareLink
	for rows.Next() {
		link, err := scanShareLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

// UpdateExpiry sets a new expiry with an ownership-checked conditional update
func (s *SQLiteStore) UpdateExpiry(ctx context.Context, linkID, ownerID string, expiresAt time.Time) (*ShareLink, error) {
	query := `UPDATE share_links SET expires_at = ? WHERE link_id = ? AND owner_id = ?`

	result, err := s.db.ExecContext(ctx, query, expiresAt.Unix(), linkID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to update share link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, s.classifyMiss(ctx, linkID)
	}

	return s.GetByID(ctx, linkID)
}

// Delete removes the link with an ownership-checked conditional delete
func (s *SQLiteStore) Delete(ctx context.Context, linkID, ownerID string) error {
	query := `DELETE FROM share_links WHERE link_id = ? AND owner_id = ?`

	result, err := s.db.ExecContext(ctx, query, linkID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete share link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.classifyMiss(ctx, linkID)
	}

	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// classifyMiss distinguishes ErrLinkNotFound from ErrForbidden after a
// conditional write matched zero rows. The distinction feeds logs and metrics
// only; both collapse to the same client-visible outcome at the HTTP layer.
func (s *SQLiteStore) classifyMiss(ctx context.Context, linkID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM share_links WHERE link_id = ?`, linkID).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrLinkNotFound
	}
	if err != nil {
		return err
	}
	return ErrForbidden
}

// scanShareLink scans a share link from a database row
func scanShareLink(scanner interface {
	Scan(dest ...interface{}) error
}) (*ShareLink, error) {
	var link ShareLink
	var expiresAt, createdAt int64

	err := scanner.Scan(
		&link.LinkID,
		&link.OwnerID,
		&link.PhotoID,
		&expiresAt,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to scan share link: %w", err)
	}

	link.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	link.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &link, nil
}
