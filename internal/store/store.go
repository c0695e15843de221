// Package store persists nesting projects per production order in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/piwi3910/SlabNest/internal/project"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout keeps updated_at fixed-width so text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no nesting is stored for an order.
var ErrNotFound = errors.New("nesting not found")

// Summary describes a stored nesting without its full project.
type Summary struct {
	OrderID    string    `json:"orderId"`
	Sheets     int       `json:"sheets"`
	Placed     int       `json:"placed"`
	Unplaced   int       `json:"unplaced"`
	Efficiency float64   `json:"efficiency"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// OpenSQLite opens the database file, creating its directory if needed.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Init applies the embedded migrations in file name order.
func (s *Store) Init(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, e := range entries {
		data, err := migrations.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveNesting stores the project of an order, replacing any earlier one.
func (s *Store) SaveNesting(ctx context.Context, orderID string, p project.ResultFile) error {
	if orderID == "" {
		return fmt.Errorf("order id is required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}

	r := p.Result
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO nestings (order_id, project, sheets, placed, unplaced, efficiency, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (order_id) DO UPDATE SET
            project = excluded.project,
            sheets = excluded.sheets,
            placed = excluded.placed,
            unplaced = excluded.unplaced,
            efficiency = excluded.efficiency,
            updated_at = excluded.updated_at
    `,
		orderID,
		string(data),
		len(r.Sheets),
		r.PlacedCount(),
		len(r.Failed)+len(r.Skipped),
		r.TotalEfficiency(),
		s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save nesting %s: %w", orderID, err)
	}
	return nil
}

// GetNesting returns the stored project of an order.
func (s *Store) GetNesting(ctx context.Context, orderID string) (project.ResultFile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT project FROM nestings WHERE order_id = ?`, orderID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return project.ResultFile{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return project.ResultFile{}, err
	}

	var p project.ResultFile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return project.ResultFile{}, fmt.Errorf("decode project %s: %w", orderID, err)
	}
	return p, nil
}

// ListNestings returns all stored nestings, most recently updated first.
func (s *Store) ListNestings(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT order_id, sheets, placed, unplaced, efficiency, updated_at
        FROM nestings
        ORDER BY updated_at DESC, order_id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var updated string
		if err := rows.Scan(&sum.OrderID, &sum.Sheets, &sum.Placed, &sum.Unplaced, &sum.Efficiency, &updated); err != nil {
			return nil, err
		}
		if sum.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
			return nil, fmt.Errorf("order %s: bad updated_at: %w", sum.OrderID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteNesting removes the stored project of an order.
func (s *Store) DeleteNesting(ctx context.Context, orderID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nestings WHERE order_id = ?`, orderID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return nil
}
