/*
Package sqlite provides a SQLite-backed catalog data source.

PURPOSE:
  Holds the property and unit catalog. The store is seeded at startup from a
  catalog file or the built-in demo data and is then read into memory with
  catalog.Load. There is no runtime mutation API; negotiations themselves
  are never persisted.

KEY TABLES:
  properties: id, name, display position
  units:      one row per unit with its table plan stored as decimal text

MONEY:
  Amounts are stored as TEXT produced by decimal.Decimal.String() so a
  round trip through the database is exact.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The connection pool is limited to one
  connection so ":memory:" databases are shared across calls.

USAGE:
  store, err := sqlite.New("./data/catalog.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  if err := store.Seed(ctx, catalog.Default()); err != nil { ... }
  cat, err := catalog.Load(ctx, store)

SEE ALSO:
  - catalog/catalog.go: Source interface
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/proposal-engine/catalog"
	"github.com/warp/proposal-engine/plan"
)

// Store implements catalog.Source using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS units (
		property_id TEXT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		area TEXT NOT NULL,
		total TEXT NOT NULL,
		down_payment TEXT NOT NULL,
		installments_value TEXT NOT NULL,
		installments_count INTEGER NOT NULL CHECK (installments_count >= 0),
		annual_value TEXT NOT NULL,
		annual_count INTEGER NOT NULL CHECK (annual_count >= 0),
		balloon TEXT NOT NULL,
		financed TEXT NOT NULL,
		PRIMARY KEY (property_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_units_property_position
		ON units(property_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WRITES (startup seeding only)
// =============================================================================

// Seed replaces the whole catalog atomically. The catalog is validated first;
// an invalid one leaves the stored catalog untouched.
func (s *Store) Seed(ctx context.Context, props []catalog.Property) error {
	if _, err := catalog.New(props); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM units"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM properties"); err != nil {
		return err
	}

	for i, p := range props {
		if err := saveProperty(ctx, tx, i, p); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func saveProperty(ctx context.Context, tx *sql.Tx, position int, p catalog.Property) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO properties (id, name, position, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, position = excluded.position`,
		p.ID, p.Name, position, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save property %s: %w", p.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM units WHERE property_id = ?", p.ID); err != nil {
		return err
	}

	for i, u := range p.Units {
		t := u.TablePlan
		_, err := tx.ExecContext(ctx, `
			INSERT INTO units (property_id, id, position, area, total, down_payment,
				installments_value, installments_count, annual_value, annual_count, balloon, financed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, u.ID, i, u.Area.String(), t.Total.String(), t.DownPayment.String(),
			t.Installments.Value.String(), t.Installments.Count,
			t.Annual.Value.String(), t.Annual.Count,
			t.Balloon.String(), t.Financed.String())
		if err != nil {
			return fmt.Errorf("failed to save unit %s/%s: %w", p.ID, u.ID, err)
		}
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// ListProperties returns every property with its units, in display order.
func (s *Store) ListProperties(ctx context.Context) ([]catalog.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM properties ORDER BY position, id")
	if err != nil {
		return nil, err
	}

	var props []catalog.Property
	for rows.Next() {
		var p catalog.Property
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			rows.Close()
			return nil, err
		}
		props = append(props, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range props {
		units, err := s.loadUnits(ctx, props[i].ID)
		if err != nil {
			return nil, err
		}
		props[i].Units = units
	}
	return props, nil
}

// Count returns the number of properties.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM properties").Scan(&n)
	return n, err
}

func (s *Store) loadUnits(ctx context.Context, propertyID string) ([]catalog.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, area, total, down_payment, installments_value, installments_count,
			annual_value, annual_count, balloon, financed
		FROM units WHERE property_id = ? ORDER BY position`, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []catalog.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit of %s: %w", propertyID, err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func scanUnit(rows *sql.Rows) (catalog.Unit, error) {
	var (
		u                                                         catalog.Unit
		area, total, down, instValue, annValue, balloon, financed string
		instCount, annCount                                       int
	)
	if err := rows.Scan(&u.ID, &area, &total, &down, &instValue, &instCount,
		&annValue, &annCount, &balloon, &financed); err != nil {
		return catalog.Unit{}, err
	}

	values := make([]decimal.Decimal, 7)
	for i, s := range []string{area, total, down, instValue, annValue, balloon, financed} {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return catalog.Unit{}, err
		}
		values[i] = v
	}

	u.Area = values[0]
	u.TablePlan = plan.PaymentPlan{
		Total:        values[1],
		DownPayment:  values[2],
		Installments: plan.PaymentDetail{Value: values[3], Count: instCount},
		Annual:       plan.PaymentDetail{Value: values[4], Count: annCount},
		Balloon:      values[5],
		Financed:     values[6],
	}
	return u, nil
}
