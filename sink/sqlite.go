package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/use-agent/lazcrawl/models"
)

// SQLite stores every batch in a single database file so runs can be
// queried together.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLite{db: db, path: path}
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		crawled_at DATETIME NOT NULL,
		total_products INTEGER NOT NULL,
		failed_urls INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id INTEGER NOT NULL REFERENCES batches(id),
		position INTEGER NOT NULL,
		source_url TEXT NOT NULL,
		title TEXT,
		description TEXT,
		regular_price TEXT,
		sale_price TEXT,
		delivery_estimate TEXT,
		external_id TEXT,
		in_stock INTEGER NOT NULL DEFAULT 0,
		image_url TEXT,
		image_count INTEGER NOT NULL DEFAULT 0,
		category_label TEXT,
		crawled_at DATETIME NOT NULL,
		elapsed_seconds REAL,
		UNIQUE(batch_id, source_url)
	);

	CREATE INDEX IF NOT EXISTS idx_products_external_id ON products(external_id);
	CREATE INDEX IF NOT EXISTS idx_products_source_url ON products(source_url);

	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id INTEGER NOT NULL REFERENCES batches(id),
		position INTEGER NOT NULL,
		url TEXT NOT NULL
	);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Persist stores out and returns "<path>#batch=<id>".
func (s *SQLite) Persist(ctx context.Context, out *models.BatchOutput) (string, error) {
	id, err := s.Insert(ctx, out)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s#batch=%d", s.path, id), nil
}

// Insert stores out in one transaction and returns the batch id.
func (s *SQLite) Insert(ctx context.Context, out *models.BatchOutput) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO batches (crawled_at, total_products, failed_urls) VALUES (?, ?, ?)`,
		out.CrawledAt.UTC(), out.TotalProducts, out.FailedURLs)
	if err != nil {
		return 0, fmt.Errorf("failed to insert batch: %w", err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read batch id: %w", err)
	}

	for i, p := range out.Products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (batch_id, position, source_url, title, description,
				regular_price, sale_price, delivery_estimate, external_id, in_stock,
				image_url, image_count, category_label, crawled_at, elapsed_seconds)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			batchID, i, p.SourceURL, p.Title, p.Description,
			p.RegularPrice, p.SalePrice, p.DeliveryEstimate, p.ExternalID, p.InStock,
			p.ImageURL, p.ImageCount, p.CategoryLabel, p.CrawledAt.UTC(), p.ElapsedSeconds)
		if err != nil {
			return 0, fmt.Errorf("failed to insert product %s: %w", p.SourceURL, err)
		}
	}
	for i, u := range out.Failed {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (batch_id, position, url) VALUES (?, ?, ?)`,
			batchID, i, u); err != nil {
			return 0, fmt.Errorf("failed to insert failure %s: %w", u, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return batchID, nil
}

// CountProducts returns the number of stored products for a batch.
func (s *SQLite) CountProducts(ctx context.Context, batchID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE batch_id = ?`, batchID).Scan(&n)
	return n, err
}

// FailedURLs returns a batch's failed URLs in recorded order.
func (s *SQLite) FailedURLs(ctx context.Context, batchID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM failures WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}
