package leads

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// createdAtLayout is fixed width so stored timestamps sort as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	email               TEXT NOT NULL,
	phone               TEXT,
	project_description TEXT NOT NULL,
	preferred_date      TEXT NOT NULL,
	created_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS leads_created_at ON leads(created_at DESC);
`

// Lead is a stored record with its generated identity.
type Lead struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Record
}

// Stats summarises the stored leads.
type Stats struct {
	Total     int `json:"total"`
	Upcoming  int `json:"upcoming"`
	ThisMonth int `json:"this_month"`
}

// Store persists leads in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens (creating if needed) the lead database at path. ":memory:"
// opens a private in-memory database.
func OpenStore(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create lead store directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open lead store: %w", err)
	}
	// One connection keeps ":memory:" a single database and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise lead store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// SetClock replaces the clock used for created_at.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert stores rec under a new id and creation time.
func (s *Store) Insert(ctx context.Context, rec Record) (Lead, error) {
	lead := Lead{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Record:    rec,
	}

	var phone sql.NullString
	if rec.Phone != nil {
		phone = sql.NullString{String: *rec.Phone, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, name, email, phone, project_description, preferred_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, rec.Name, rec.Email, phone, rec.ProjectDescription, rec.PreferredDate,
		lead.CreatedAt.Format(createdAtLayout),
	)
	if err != nil {
		return Lead{}, fmt.Errorf("failed to insert lead: %w", err)
	}
	return lead, nil
}

// List returns up to limit leads, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Lead, error) {
	query := `SELECT id, name, email, phone, project_description, preferred_date, created_at
		FROM leads ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []Lead{}
	for rows.Next() {
		var (
			lead      Lead
			phone     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Email, &phone,
			&lead.ProjectDescription, &lead.PreferredDate, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to read lead: %w", err)
		}
		if phone.Valid {
			p := phone.String
			lead.Phone = &p
		}
		lead.CreatedAt, err = time.Parse(createdAtLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("lead %s has a bad created_at %q: %w", lead.ID, createdAt, err)
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// Stats counts all leads, those whose preferred date is today or later, and
// those created in now's calendar month.
func (s *Store) Stats(ctx context.Context, now time.Time) (Stats, error) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Format(DateLayout)
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, now.Location()).UTC().Format(createdAtLayout)
	monthEnd := time.Date(y, m+1, 1, 0, 0, 0, 0, now.Location()).UTC().Format(createdAtLayout)

	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN preferred_date >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? AND created_at < ? THEN 1 ELSE 0 END), 0)
		FROM leads`,
		today, monthStart, monthEnd,
	).Scan(&st.Total, &st.Upcoming, &st.ThisMonth)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute lead stats: %w", err)
	}
	return st, nil
}
