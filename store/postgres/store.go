// Package postgres provides a PostgreSQL implementation of store.Store.
//
// The sequence invariant is enforced with a conditional UPDATE:
// UPDATE ... WHERE uid = $1 AND sequence = $2. A writer that lost the race
// affects zero rows and receives store.ErrConflict.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rbaliyan/calendar/store"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new PostgreSQL store with the provided database connection.
// Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:     db,
		opts:   o,
		logger: o.logger,
	}
}

// NewFromDB creates a new PostgreSQL store from a standard sql.DB connection.
// This wraps the sql.DB with sqlx for enhanced functionality.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Connect initializes the schema and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	s.logger.Info("connected to PostgreSQL", "table", s.opts.table)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the database connection.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureSchema creates the required table and indexes.
func (s *Store) ensureSchema(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			uid VARCHAR(255) PRIMARY KEY,
			organizer_email VARCHAR(255) NOT NULL,
			organizer_name VARCHAR(255) NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			start_time BIGINT NOT NULL DEFAULT 0,
			end_time BIGINT NOT NULL DEFAULT 0,
			method VARCHAR(50) NOT NULL DEFAULT 'publish',
			sequence BIGINT NOT NULL DEFAULT 0,
			attendees JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, s.opts.table)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_organizer ON %s(organizer_email)`, s.opts.table, s.opts.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_method ON %s(method)`, s.opts.table, s.opts.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created ON %s(created_at)`, s.opts.table, s.opts.table),
	}

	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.logger.Warn("failed to create index", "error", err, "sql", idx)
		}
	}

	return nil
}

// checkConnected returns error if not connected.
func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// row is the database representation of an event record.
type row struct {
	UID            string    `db:"uid"`
	OrganizerEmail string    `db:"organizer_email"`
	OrganizerName  string    `db:"organizer_name"`
	Summary        string    `db:"summary"`
	Description    string    `db:"description"`
	Location       string    `db:"location"`
	StartTime      int64     `db:"start_time"`
	EndTime        int64     `db:"end_time"`
	Method         string    `db:"method"`
	Sequence       int64     `db:"sequence"`
	Attendees      []byte    `db:"attendees"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// toEvent converts a database row to a store event.
func (r *row) toEvent() (*store.Event, error) {
	var attendees []store.Attendee
	if len(r.Attendees) > 0 {
		if err := json.Unmarshal(r.Attendees, &attendees); err != nil {
			return nil, fmt.Errorf("decode attendees: %w", err)
		}
	}
	return &store.Event{
		UID:         r.UID,
		Organizer:   store.Mailbox{Email: r.OrganizerEmail, Name: r.OrganizerName},
		Summary:     r.Summary,
		Description: r.Description,
		Location:    r.Location,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Method:      store.Method(r.Method),
		Sequence:    r.Sequence,
		Attendees:   attendees,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}, nil
}

// fromEvent converts a store event to a database row.
func fromEvent(ev *store.Event) (*row, error) {
	attendees := ev.Attendees
	if attendees == nil {
		attendees = []store.Attendee{}
	}
	data, err := json.Marshal(attendees)
	if err != nil {
		return nil, fmt.Errorf("encode attendees: %w", err)
	}
	return &row{
		UID:            ev.UID,
		OrganizerEmail: ev.Organizer.Email,
		OrganizerName:  ev.Organizer.Name,
		Summary:        ev.Summary,
		Description:    ev.Description,
		Location:       ev.Location,
		StartTime:      ev.StartTime,
		EndTime:        ev.EndTime,
		Method:         string(ev.Method),
		Sequence:       ev.Sequence,
		Attendees:      data,
		CreatedAt:      ev.CreatedAt,
		UpdatedAt:      ev.UpdatedAt,
	}, nil
}

// Get retrieves an event by UID.
func (s *Store) Get(ctx context.Context, uid string) (*store.Event, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, store.ErrInvalidID
	}

	query := fmt.Sprintf(`SELECT * FROM %s WHERE uid = $1`, s.opts.table)

	var r row
	if err := s.db.GetContext(ctx, &r, query, uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	return r.toEvent()
}

// Create inserts a new event record.
// The primary key constraint provides the uniqueness guarantee.
func (s *Store) Create(ctx context.Context, ev *store.Event) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if ev == nil || ev.UID == "" {
		return store.ErrInvalidID
	}

	r, err := fromEvent(ev)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			uid, organizer_email, organizer_name, summary, description, location,
			start_time, end_time, method, sequence, attendees, created_at, updated_at
		) VALUES (
			:uid, :organizer_email, :organizer_name, :summary, :description, :location,
			:start_time, :end_time, :method, :sequence, :attendees, :created_at, :updated_at
		)
	`, s.opts.table)

	if _, err := s.db.NamedExecContext(ctx, query, r); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return store.ErrDuplicateID
		}
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// Update atomically replaces the record if the stored sequence still matches.
func (s *Store) Update(ctx context.Context, ev *store.Event, expectedSequence int64) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if ev == nil || ev.UID == "" {
		return store.ErrInvalidID
	}

	r, err := fromEvent(ev)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			summary = $1, description = $2, location = $3,
			start_time = $4, end_time = $5, method = $6,
			sequence = $7, attendees = $8, updated_at = $9
		WHERE uid = $10 AND sequence = $11
	`, s.opts.table)

	res, err := s.db.ExecContext(ctx, query,
		r.Summary, r.Description, r.Location,
		r.StartTime, r.EndTime, r.Method,
		r.Sequence, r.Attendees, r.UpdatedAt,
		r.UID, expectedSequence,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows: either the record is gone or its sequence moved on.
	var exists bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE uid = $1)`, s.opts.table)
	if err := s.db.GetContext(ctx, &exists, existsQuery, ev.UID); err != nil {
		return fmt.Errorf("check existence: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

// Delete permanently removes an event record.
func (s *Store) Delete(ctx context.Context, uid string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if uid == "" {
		return store.ErrInvalidID
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE uid = $1`, s.opts.table)
	res, err := s.db.ExecContext(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Scan returns all event records ordered by creation time then UID.
func (s *Store) Scan(ctx context.Context) ([]*store.Event, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY created_at, uid`, s.opts.table)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}

	events := make([]*store.Event, 0, len(rows))
	for i := range rows {
		ev, err := rows[i].toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
