package roster

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"bridgesheet/internal/model"
)

// Repository persists students, attendance, mailing-list entries, and the
// imported member roster in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// StudentByName returns the student with exactly this name, or nil.
// The match is case-sensitive; callers own any trimming.
func (r *Repository) StudentByName(ctx context.Context, name string) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, first_event_id, created_at
		FROM students
		WHERE name = $1
		ORDER BY created_at
		LIMIT 1
	`, name)
	var st model.Student
	err := row.Scan(&st.ID, &st.Name, &st.Email, &st.FirstEventID, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CreateStudent inserts a new student, remembering which event caused the
// creation.
func (r *Repository) CreateStudent(ctx context.Context, name, firstEventID string) (model.Student, error) {
	st := model.Student{
		ID:           uuid.NewString(),
		Name:         name,
		FirstEventID: firstEventID,
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, name, first_event_id)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, st.ID, st.Name, st.FirstEventID)
	if err := row.Scan(&st.CreatedAt); err != nil {
		return model.Student{}, err
	}
	return st, nil
}

// AttendanceExists reports whether an attendance row exists for the pair.
// This check is advisory: the unique constraint in the store is what
// actually settles concurrent inserts.
func (r *Repository) AttendanceExists(ctx context.Context, eventID, studentID string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM attendance WHERE event_id = $1 AND student_id = $2
	`, eventID, studentID)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertAttendance writes a new attendance row. Unique-constraint errors
// pass through untranslated so callers can map them per context.
func (r *Repository) InsertAttendance(ctx context.Context, att model.Attendance) (model.Attendance, error) {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (id, event_id, student_id, table_number, seat, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, att.ID, att.EventID, att.StudentID, att.TableNumber, att.Seat, att.Source)
	if err := row.Scan(&att.CreatedAt); err != nil {
		return model.Attendance{}, err
	}
	return att, nil
}

// ListAttendance returns attendance rows for an event with student names.
func (r *Repository) ListAttendance(ctx context.Context, eventID string) ([]model.Attendance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.event_id, a.student_id, s.name, a.table_number, a.seat, a.source, a.created_at
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		WHERE a.event_id = $1
		ORDER BY a.created_at
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Attendance
	for rows.Next() {
		var att model.Attendance
		if err := rows.Scan(&att.ID, &att.EventID, &att.StudentID, &att.StudentName,
			&att.TableNumber, &att.Seat, &att.Source, &att.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, att)
	}
	return res, rows.Err()
}

// MailingEntryExists reports whether a signup with this email exists.
// Advisory, like AttendanceExists.
func (r *Repository) MailingEntryExists(ctx context.Context, email string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM mailing_list_entries WHERE email = $1
	`, email)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertMailingEntry writes a new signup.
func (r *Repository) InsertMailingEntry(ctx context.Context, entry model.MailingListEntry) (model.MailingListEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO mailing_list_entries (id, name, email, event_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, entry.ID, entry.Name, entry.Email, entry.EventID)
	if err := row.Scan(&entry.CreatedAt); err != nil {
		return model.MailingListEntry{}, err
	}
	return entry, nil
}

// UpsertMember writes one roster row from a bulk import. Re-imports
// converge on the latest export, so email conflicts update in place.
func (r *Repository) UpsertMember(ctx context.Context, m model.Member) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO members (id, name, email, joined_date, declined)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			joined_date = EXCLUDED.joined_date,
			declined = EXCLUDED.declined
	`, m.ID, m.Name, m.Email, m.JoinedDate, m.Declined)
	return err
}

// RosterRow is one line of the cross-reference: a historical attendee of
// the class joined against the member roster by lower-cased name.
type RosterRow struct {
	Student  model.Student `json:"student"`
	IsMember bool          `json:"is_member"`
	Declined bool          `json:"declined"`
}

// CrossReference returns the distinct students who have ever attended any
// event sharing this class name, each matched against members
// case-insensitively. The bridge is approximate by design: two free-text
// name spaces, exact match only.
func (r *Repository) CrossReference(ctx context.Context, className string) ([]RosterRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (s.id)
			s.id, s.name, s.email, s.first_event_id, s.created_at,
			(m.id IS NOT NULL) AS is_member,
			COALESCE(m.declined, FALSE) AS declined
		FROM students s
		JOIN attendance a ON a.student_id = s.id
		JOIN events e ON e.id = a.event_id
		LEFT JOIN members m ON LOWER(m.name) = LOWER(s.name)
		WHERE e.name = $1
		ORDER BY s.id
	`, className)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []RosterRow
	for rows.Next() {
		var row RosterRow
		if err := rows.Scan(&row.Student.ID, &row.Student.Name, &row.Student.Email,
			&row.Student.FirstEventID, &row.Student.CreatedAt,
			&row.IsMember, &row.Declined); err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}
