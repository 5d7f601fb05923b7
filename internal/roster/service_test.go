package roster

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"bridgesheet/internal/model"
)

const eventID = "A1B2C3D4"

var now = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

func newServiceWithMock(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(NewRepository(db)), mock
}

func studentColumns() []string {
	return []string{"id", "name", "email", "first_event_id", "created_at"}
}

func expectStudentMiss(mock sqlmock.Sqlmock, name string) {
	mock.ExpectQuery(`SELECT id, name, email, first_event_id, created_at`).
		WithArgs(name).
		WillReturnRows(sqlmock.NewRows(studentColumns()))
}

func expectStudentHit(mock sqlmock.Sqlmock, id, name string) {
	mock.ExpectQuery(`SELECT id, name, email, first_event_id, created_at`).
		WithArgs(name).
		WillReturnRows(sqlmock.NewRows(studentColumns()).AddRow(id, name, nil, eventID, now))
}

func expectCreateStudent(mock sqlmock.Sqlmock, name string) {
	mock.ExpectQuery(`INSERT INTO students`).
		WithArgs(sqlmock.AnyArg(), name, eventID).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
}

func TestConfirmCreatesNewAttendance(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	table := 3
	seat := "north"

	expectStudentMiss(mock, "Alice Johnson")
	expectCreateStudent(mock, "Alice Johnson")
	mock.ExpectQuery(`SELECT 1 FROM attendance`).
		WithArgs(eventID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(`INSERT INTO attendance`).
		WithArgs(sqlmock.AnyArg(), eventID, sqlmock.AnyArg(), &table, "N", model.SourceExtracted).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	report, err := svc.Confirm(context.Background(), eventID,
		[]AttendanceInput{{StudentName: "  Alice Johnson ", TableNumber: &table, Seat: &seat}}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, report.Attendance.Created)
	require.Equal(t, 0, report.Attendance.Skipped)
	require.Equal(t, []EntryResult{{Name: "Alice Johnson", Status: StatusCreated}}, report.Attendance.Entries)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmSkipsExistingAttendance(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	expectStudentHit(mock, "st-1", "Alice Johnson")
	mock.ExpectQuery(`SELECT 1 FROM attendance`).
		WithArgs(eventID, "st-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	report, err := svc.Confirm(context.Background(), eventID,
		[]AttendanceInput{{StudentName: "Alice Johnson"}}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, report.Attendance.Created)
	require.Equal(t, 1, report.Attendance.Skipped)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmTreatsUniqueViolationAsSkipped(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	// advisory check sees nothing, then a concurrent confirm wins the insert
	expectStudentHit(mock, "st-1", "Alice Johnson")
	mock.ExpectQuery(`SELECT 1 FROM attendance`).
		WithArgs(eventID, "st-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(`INSERT INTO attendance`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	report, err := svc.Confirm(context.Background(), eventID,
		[]AttendanceInput{{StudentName: "Alice Johnson"}}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, report.Attendance.Created)
	require.Equal(t, 1, report.Attendance.Skipped)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmDropsEmptyNamesSilently(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	report, err := svc.Confirm(context.Background(), eventID,
		[]AttendanceInput{{StudentName: "   "}, {StudentName: ""}},
		[]MailingInput{{Name: "x", Email: "  "}, {Name: "", Email: "a@b.c"}})
	require.NoError(t, err)
	require.Empty(t, report.Attendance.Entries)
	require.Empty(t, report.MailingList.Entries)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmIdempotent(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	attendance := []AttendanceInput{{StudentName: "Alice Johnson"}, {StudentName: "Bob Smith"}}
	mailing := []MailingInput{{Name: "Carol", Email: "Carol@Example.com"}}

	// first confirm: everything is new
	expectStudentMiss(mock, "Alice Johnson")
	expectCreateStudent(mock, "Alice Johnson")
	mock.ExpectQuery(`SELECT 1 FROM attendance`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(`INSERT INTO attendance`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	expectStudentMiss(mock, "Bob Smith")
	expectCreateStudent(mock, "Bob Smith")
	mock.ExpectQuery(`SELECT 1 FROM attendance`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(`INSERT INTO attendance`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery(`SELECT 1 FROM mailing_list_entries`).
		WithArgs("carol@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(`INSERT INTO mailing_list_entries`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	report, err := svc.Confirm(context.Background(), eventID, attendance, mailing)
	require.NoError(t, err)
	require.Equal(t, 2, report.Attendance.Created)
	require.Equal(t, 0, report.Attendance.Skipped)
	require.Equal(t, 1, report.MailingList.Created)
	require.Equal(t, 0, report.MailingList.Skipped)

	// identical second confirm: every entry already on record
	expectStudentHit(mock, "st-1", "Alice Johnson")
	mock.ExpectQuery(`SELECT 1 FROM attendance`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	expectStudentHit(mock, "st-2", "Bob Smith")
	mock.ExpectQuery(`SELECT 1 FROM attendance`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT 1 FROM mailing_list_entries`).
		WithArgs("carol@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	report, err = svc.Confirm(context.Background(), eventID, attendance, mailing)
	require.NoError(t, err)
	require.Equal(t, 0, report.Attendance.Created)
	require.Equal(t, 2, report.Attendance.Skipped)
	require.Equal(t, 0, report.MailingList.Created)
	require.Equal(t, 1, report.MailingList.Skipped)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmMailingFirstWriteWins(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	// A and A2 share an email modulo case; only the first is stored
	mock.ExpectQuery(`SELECT 1 FROM mailing_list_entries`).
		WithArgs("x@y.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(`INSERT INTO mailing_list_entries`).
		WithArgs(sqlmock.AnyArg(), "A", "x@y.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery(`SELECT 1 FROM mailing_list_entries`).
		WithArgs("x@y.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	report, err := svc.Confirm(context.Background(), eventID, nil,
		[]MailingInput{{Name: "A", Email: "x@y.com"}, {Name: "A2", Email: "X@Y.COM"}})
	require.NoError(t, err)
	require.Equal(t, 1, report.MailingList.Created)
	require.Equal(t, 1, report.MailingList.Skipped)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAttendanceConflict(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	expectStudentHit(mock, "st-1", "Alice Johnson")
	mock.ExpectQuery(`INSERT INTO attendance`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := svc.RecordAttendance(context.Background(), eventID, "Alice Johnson", nil, nil, model.SourceManual)
	require.ErrorIs(t, err, model.ErrConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAttendanceValidation(t *testing.T) {
	svc, _ := newServiceWithMock(t)

	_, err := svc.RecordAttendance(context.Background(), eventID, "  ", nil, nil, "")
	require.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.RecordAttendance(context.Background(), eventID, "Alice", nil, nil, "extracted")
	require.ErrorIs(t, err, model.ErrInvalidInput, "extracted is reserved for the confirm path")
}

func TestResolveOrCreateIsCaseSensitive(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	// "alice johnson" does not match the existing "Alice Johnson"
	expectStudentMiss(mock, "alice johnson")
	expectCreateStudent(mock, "alice johnson")

	st, err := svc.ResolveOrCreate(context.Background(), "alice johnson", eventID)
	require.NoError(t, err)
	require.Equal(t, "alice johnson", st.Name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterForNeedsSignup(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	cols := []string{"id", "name", "email", "first_event_id", "created_at", "is_member", "declined"}
	mock.ExpectQuery(`SELECT DISTINCT ON \(s.id\)`).
		WithArgs("Tuesday Beginner").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("st-1", "Alice Johnson", nil, eventID, now, true, false).
			AddRow("st-2", "Bob Smith", nil, eventID, now, false, false).
			AddRow("st-3", "Carol Davis", nil, eventID, now, false, true))

	rows, err := svc.RosterFor(context.Background(), model.Event{ID: eventID, Name: "Tuesday Beginner"})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.False(t, rows[0].NeedsSignup, "matched member needs no signup")
	require.True(t, rows[1].NeedsSignup, "unmatched attendee needs a signup")
	require.False(t, rows[2].NeedsSignup, "declined attendee is left alone")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportMembersSkipsBlankRows(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectExec(`INSERT INTO members`).
		WithArgs(sqlmock.AnyArg(), "Alice Johnson", "alice@example.com", nil, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	imported, err := svc.ImportMembers(context.Background(), []MemberInput{
		{Name: "Alice Johnson", Email: " ALICE@example.com "},
		{Name: "", Email: "noname@example.com"},
		{Name: "No Email", Email: ""},
	})
	require.NoError(t, err)
	require.Equal(t, 1, imported)

	require.NoError(t, mock.ExpectationsWereMet())
}
