package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/encops/updatectl/pkg/types"

	_ "github.com/mattn/go-sqlite3"
)

// RunRecord is one audited invocation: which mode ran, whether a downtime
// was active, whether the run was refused, and how many hosts changed.
type RunRecord struct {
	ID        string
	StartedAt time.Time
	Mode      types.Mode
	Downtime  string
	Refused   bool
	DryRun    bool
	Changed   int
	Total     int
}

type dbRunRecord struct {
	ID        string `db:"id"`
	StartedAt int64  `db:"started_at"`
	Mode      string `db:"mode"`
	Downtime  string `db:"downtime"`
	Refused   bool   `db:"refused"`
	DryRun    bool   `db:"dry_run"`
	Changed   int    `db:"changed"`
	Total     int    `db:"total"`
}

// HistoryStore persists run records in a local SQLite database.
type HistoryStore struct {
	db *sqlx.DB
}

func NewHistoryStore(dbpath string) (*HistoryStore, error) {
	db, err := sqlx.Open("sqlite3", dbpath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

func (s *HistoryStore) InitializeDB() error {
	createSQL := `CREATE TABLE IF NOT EXISTS run (
	  "id" TEXT PRIMARY KEY,
	  "started_at" INTEGER NOT NULL,
	  "mode" TEXT NOT NULL,
	  "downtime" TEXT,
	  "refused" INTEGER NOT NULL,
	  "dry_run" INTEGER NOT NULL,
	  "changed" INTEGER NOT NULL,
	  "total" INTEGER NOT NULL
	)`

	statement, err := s.db.Prepare(createSQL)
	if err != nil {
		return fmt.Errorf("failed to initialize db: %w", err)
	}
	_, err = statement.Exec()
	if err != nil {
		return fmt.Errorf("failed to initialize db: %w", err)
	}
	return nil
}

func (s *HistoryStore) CloseDB() error {
	return s.db.Close()
}

// StoreRun appends one run record. A missing ID is filled with a fresh UUID.
func (s *HistoryStore) StoreRun(r *RunRecord) (*RunRecord, error) {
	q := `INSERT INTO run (id, started_at, mode, downtime, refused, dry_run, changed, total) VALUES (:id, :started_at, :mode, :downtime, :refused, :dry_run, :changed, :total)`
	st := convertToDbStruct(r)

	if st.StartedAt <= 0 {
		return nil, fmt.Errorf("invalid run record: start time must be set")
	}

	_, err := s.db.NamedExec(q, st)
	if err != nil {
		return nil, fmt.Errorf("unable to store run record: %w", err)
	}

	return convertFromDbStruct(&st), nil
}

// ListRuns returns the runs started within [from, to), newest first.
func (s *HistoryStore) ListRuns(from time.Time, to time.Time) ([]*RunRecord, error) {
	results := []dbRunRecord{}

	err := s.db.Select(&results, "SELECT * FROM run WHERE started_at >= ? AND started_at < ? ORDER BY started_at DESC", from.Unix(), to.Unix())
	if err != nil {
		return []*RunRecord{}, fmt.Errorf("error while querying run records: %w", err)
	}

	converted := make([]*RunRecord, len(results))
	for i, r := range results {
		converted[i] = convertFromDbStruct(&r)
	}
	return converted, nil
}

func convertToDbStruct(r *RunRecord) dbRunRecord {
	nr := dbRunRecord{
		ID:       r.ID,
		Mode:     string(r.Mode),
		Downtime: r.Downtime,
		Refused:  r.Refused,
		DryRun:   r.DryRun,
		Changed:  r.Changed,
		Total:    r.Total,
	}
	if !r.StartedAt.IsZero() {
		nr.StartedAt = r.StartedAt.Unix()
	}
	if len(nr.ID) == 0 {
		nr.ID = uuid.New().String()
	}
	return nr
}

func convertFromDbStruct(r *dbRunRecord) *RunRecord {
	return &RunRecord{
		ID:        r.ID,
		StartedAt: time.Unix(r.StartedAt, 0).UTC(),
		Mode:      types.Mode(r.Mode),
		Downtime:  r.Downtime,
		Refused:   r.Refused,
		DryRun:    r.DryRun,
		Changed:   r.Changed,
		Total:     r.Total,
	}
}
