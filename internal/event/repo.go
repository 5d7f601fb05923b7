package event

import (
	"context"
	"database/sql"
	"errors"

	"bridgesheet/internal/model"
	"bridgesheet/internal/store"
)

// Repository persists events in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new event. A duplicate id maps to ErrConflict.
func (r *Repository) Insert(ctx context.Context, evt model.Event) (model.Event, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO events (id, name, date, teacher, location, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, evt.ID, evt.Name, evt.Date, evt.Teacher, evt.Location, evt.Type)
	if err := row.Scan(&evt.CreatedAt); err != nil {
		if store.IsUniqueViolation(err) {
			return model.Event{}, model.ErrConflict
		}
		return model.Event{}, err
	}
	return evt, nil
}

// Get returns a single event by id.
func (r *Repository) Get(ctx context.Context, id string) (model.Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, date::text, teacher, location, type, created_at
		FROM events WHERE id = $1
	`, id)
	var evt model.Event
	err := row.Scan(&evt.ID, &evt.Name, &evt.Date, &evt.Teacher, &evt.Location, &evt.Type, &evt.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, model.ErrNotFound
	}
	if err != nil {
		return model.Event{}, err
	}
	return evt, nil
}

// List returns events newest-date first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, date::text, teacher, location, type, created_at
		FROM events
		ORDER BY date DESC, created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var evt model.Event
		if err := rows.Scan(&evt.ID, &evt.Name, &evt.Date, &evt.Teacher, &evt.Location, &evt.Type, &evt.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}
