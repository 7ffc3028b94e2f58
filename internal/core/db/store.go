package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/querykit/internal/log"
	"github.com/solatis/querykit/internal/types"
)

// ErrRecordNotFound is returned by Get for an unknown record ID.
var ErrRecordNotFound = errors.New("log record not found")

// MaxListLimit caps a single List call.
const MaxListLimit = 10000

// Store persists log records. It implements log.Writer, so it can sit behind
// a log.MultiWriter next to the zap writer.
type Store struct {
	queries *Queries
}

// NewStore loads the named queries over db. The schema must be migrated.
func NewStore(db *sqlx.DB) (*Store, error) {
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Store{queries: q}, nil
}

// recordRow is the column layout of log_records.
type recordRow struct {
	ID         string `db:"id"`
	LoggedAt   int64  `db:"logged_at"`
	Level      int    `db:"level"`
	Logger     string `db:"logger"`
	Message    string `db:"message"`
	Properties string `db:"properties"`
}

func toRow(rec log.Record) (recordRow, error) {
	props := []byte("{}")
	if len(rec.Properties) > 0 {
		var err error
		if props, err = json.Marshal(rec.Properties); err != nil {
			return recordRow{}, fmt.Errorf("encode properties: %w", err)
		}
	}
	return recordRow{
		ID:         string(rec.ID),
		LoggedAt:   rec.Time.UTC().UnixNano(),
		Level:      int(rec.Level),
		Logger:     rec.Logger,
		Message:    rec.Message,
		Properties: string(props),
	}, nil
}

func (r recordRow) record() (log.Record, error) {
	rec := log.Record{
		ID:      types.RecordID(r.ID),
		Time:    time.Unix(0, r.LoggedAt).UTC(),
		Level:   log.Level(r.Level),
		Logger:  r.Logger,
		Message: r.Message,
	}
	if r.Properties != "" && r.Properties != "{}" {
		if err := json.Unmarshal([]byte(r.Properties), &rec.Properties); err != nil {
			return log.Record{}, fmt.Errorf("decode properties of %s: %w", r.ID, err)
		}
	}
	return rec, nil
}

// Insert stores rec. A record without ID gets a fresh one; a zero time
// becomes now.
func (s *Store) Insert(ctx context.Context, rec log.Record) (log.Record, error) {
	if rec.ID == "" {
		rec.ID = types.NewRecordID()
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	row, err := toRow(rec)
	if err != nil {
		return log.Record{}, err
	}
	_, err = s.queries.Exec(ctx, "insert-log-record",
		row.ID, row.LoggedAt, row.Level, row.Logger, row.Message, row.Properties)
	if err != nil {
		return log.Record{}, fmt.Errorf("insert log record: %w", err)
	}
	return rec, nil
}

// Write implements log.Writer.
func (s *Store) Write(ctx context.Context, rec log.Record) error {
	_, err := s.Insert(ctx, rec)
	return err
}

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id types.RecordID) (log.Record, error) {
	var row recordRow
	err := s.queries.Get(ctx, "get-log-record", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return log.Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return log.Record{}, fmt.Errorf("get log record: %w", err)
	}
	return row.record()
}

// List returns up to limit records, newest first. limit <= 0 or above
// MaxListLimit is clamped to MaxListLimit.
func (s *Store) List(ctx context.Context, limit int) ([]log.Record, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	var rows []recordRow
	if err := s.queries.Select(ctx, "list-log-records", &rows, limit); err != nil {
		return nil, fmt.Errorf("list log records: %w", err)
	}
	out := make([]log.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Prune deletes records older than before and returns how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.queries.Exec(ctx, "delete-log-records-before", before.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune log records: %w", err)
	}
	return res.RowsAffected()
}
