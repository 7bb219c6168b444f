package storage

import (
	"database/sql"

	_ "github.com/lib/pq"
)

type PostgresJournal struct {
	db *sql.DB
}

func NewPostgresJournal(dsn string) (*PostgresJournal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresJournal{db: db}, nil
}

// Migrate creates the journal table if missing.
func (p *PostgresJournal) Migrate() error {
	_, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS session_events(
		id BIGSERIAL PRIMARY KEY,
		driver_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		request_id TEXT,
		at TIMESTAMPTZ NOT NULL
	)`)
	return err
}

func (p *PostgresJournal) Append(e SessionEvent) error {
	_, err := p.db.Exec(`INSERT INTO session_events(driver_id, session_id, kind, request_id, at) VALUES($1,$2,$3,$4,$5)`,
		e.DriverID, e.SessionID, e.Kind, e.RequestID, e.At)
	return err
}

func (p *PostgresJournal) Close() error { return p.db.Close() }
