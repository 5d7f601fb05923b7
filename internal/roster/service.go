package roster

import (
	"context"
	"fmt"
	"strings"

	"bridgesheet/internal/extract"
	"bridgesheet/internal/metrics"
	"bridgesheet/internal/model"
	"bridgesheet/internal/store"
)

// Entry statuses in a confirm report.
const (
	StatusCreated = "created"
	StatusSkipped = "skipped"
)

// AttendanceInput is one reviewed attendance entry from the confirm step.
type AttendanceInput struct {
	StudentName string  `json:"student_name"`
	TableNumber *int    `json:"table_number,omitempty"`
	Seat        *string `json:"seat,omitempty"`
}

// MailingInput is one reviewed mailing-list signup from the confirm step.
type MailingInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EntryResult reports what happened to one entry.
type EntryResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// SectionReport aggregates one list's outcome.
type SectionReport struct {
	Created int           `json:"created"`
	Skipped int           `json:"skipped"`
	Entries []EntryResult `json:"entries"`
}

// ConfirmReport is the full response to a confirm call.
type ConfirmReport struct {
	Attendance  SectionReport `json:"attendance"`
	MailingList SectionReport `json:"mailing_list"`
}

// Service commits human-reviewed extractions into attendance and
// mailing-list records, resolves names to students, and cross-references
// attendees against the member roster.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// ResolveOrCreate maps a name to its student, creating one on first
// sighting with the originating event recorded. The lookup is exact and
// case-sensitive, so callers must trim names first; "Alice" and "alice"
// resolve to different students.
func (s *Service) ResolveOrCreate(ctx context.Context, name, originEventID string) (model.Student, error) {
	existing, err := s.repo.StudentByName(ctx, name)
	if err != nil {
		return model.Student{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	return s.repo.CreateStudent(ctx, name, originEventID)
}

// Confirm commits a reviewed extraction. It is built for repeatable
// submission: entries already on record report skipped, never error, so
// re-sending the same review is harmless. Entries with an empty name (or
// for signups, empty email) are dropped silently.
//
// The existence checks here are advisory. When two confirms race on the
// same pair, the store's unique constraint rejects the loser and that
// rejection degrades to skipped.
func (s *Service) Confirm(ctx context.Context, eventID string, attendance []AttendanceInput, mailing []MailingInput) (ConfirmReport, error) {
	report := ConfirmReport{
		Attendance:  SectionReport{Entries: []EntryResult{}},
		MailingList: SectionReport{Entries: []EntryResult{}},
	}

	for _, in := range attendance {
		name := strings.TrimSpace(in.StudentName)
		if name == "" {
			continue
		}

		status, err := s.confirmAttendance(ctx, eventID, name, in)
		if err != nil {
			return report, fmt.Errorf("confirm attendance for %q: %w", name, err)
		}
		report.Attendance.add(name, status)
		metrics.ConfirmResults.WithLabelValues("attendance", status).Inc()
	}

	for _, in := range mailing {
		name := strings.TrimSpace(in.Name)
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if name == "" || email == "" {
			continue
		}

		status, err := s.confirmSignup(ctx, eventID, name, email)
		if err != nil {
			return report, fmt.Errorf("confirm signup for %q: %w", email, err)
		}
		report.MailingList.add(email, status)
		metrics.ConfirmResults.WithLabelValues("mailing_list", status).Inc()
	}

	return report, nil
}

func (s *Service) confirmAttendance(ctx context.Context, eventID, name string, in AttendanceInput) (string, error) {
	student, err := s.ResolveOrCreate(ctx, name, eventID)
	if err != nil {
		return "", err
	}

	exists, err := s.repo.AttendanceExists(ctx, eventID, student.ID)
	if err != nil {
		return "", err
	}
	if exists {
		return StatusSkipped, nil
	}

	var seat *string
	if in.Seat != nil {
		seat = extract.NormalizeSeat(*in.Seat)
	}
	_, err = s.repo.InsertAttendance(ctx, model.Attendance{
		EventID:     eventID,
		StudentID:   student.ID,
		TableNumber: in.TableNumber,
		Seat:        seat,
		Source:      model.SourceExtracted,
	})
	if store.IsUniqueViolation(err) {
		// lost the race to a concurrent confirm; already recorded
		return StatusSkipped, nil
	}
	if err != nil {
		return "", err
	}
	return StatusCreated, nil
}

func (s *Service) confirmSignup(ctx context.Context, eventID, name, email string) (string, error) {
	exists, err := s.repo.MailingEntryExists(ctx, email)
	if err != nil {
		return "", err
	}
	if exists {
		return StatusSkipped, nil
	}

	_, err = s.repo.InsertMailingEntry(ctx, model.MailingListEntry{
		Name:    name,
		Email:   email,
		EventID: &eventID,
	})
	if store.IsUniqueViolation(err) {
		return StatusSkipped, nil
	}
	if err != nil {
		return "", err
	}
	return StatusCreated, nil
}

// RecordAttendance is the direct single-record path, used for deliberate
// manual or remote check-ins. Unlike Confirm, a duplicate here is a
// mistake the caller should hear about, so it surfaces as ErrConflict.
func (s *Service) RecordAttendance(ctx context.Context, eventID, studentName string, tableNumber *int, seat *string, source string) (model.Attendance, error) {
	name := strings.TrimSpace(studentName)
	if name == "" {
		return model.Attendance{}, fmt.Errorf("%w: student_name required", model.ErrInvalidInput)
	}
	switch source {
	case "":
		source = model.SourceManual
	case model.SourceManual, model.SourceRemote:
	default:
		return model.Attendance{}, fmt.Errorf("%w: source must be manual or remote", model.ErrInvalidInput)
	}

	student, err := s.ResolveOrCreate(ctx, name, eventID)
	if err != nil {
		return model.Attendance{}, err
	}

	var normalized *string
	if seat != nil {
		normalized = extract.NormalizeSeat(*seat)
	}
	att, err := s.repo.InsertAttendance(ctx, model.Attendance{
		EventID:     eventID,
		StudentID:   student.ID,
		TableNumber: tableNumber,
		Seat:        normalized,
		Source:      source,
	})
	if store.IsUniqueViolation(err) {
		return model.Attendance{}, model.ErrConflict
	}
	if err != nil {
		return model.Attendance{}, err
	}
	att.StudentName = student.Name
	return att, nil
}

// ListAttendance returns the recorded attendance for an event.
func (s *Service) ListAttendance(ctx context.Context, eventID string) ([]model.Attendance, error) {
	return s.repo.ListAttendance(ctx, eventID)
}

// MemberInput is one row of a bulk roster import.
type MemberInput struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	JoinedDate *string `json:"joined_date,omitempty"`
	Declined   bool    `json:"declined"`
}

// ImportMembers upserts the bulk-imported roster by email and returns the
// number of rows written. Rows missing name or email are dropped.
func (s *Service) ImportMembers(ctx context.Context, inputs []MemberInput) (int, error) {
	imported := 0
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if name == "" || email == "" {
			continue
		}
		err := s.repo.UpsertMember(ctx, model.Member{
			Name:       name,
			Email:      email,
			JoinedDate: in.JoinedDate,
			Declined:   in.Declined,
		})
		if err != nil {
			return imported, fmt.Errorf("import member %q: %w", email, err)
		}
		imported++
	}
	return imported, nil
}

// RosterStatus is one attendee of a class with their mailing-list standing.
type RosterStatus struct {
	Student     model.Student `json:"student"`
	IsMember    bool          `json:"is_member"`
	Declined    bool          `json:"declined"`
	NeedsSignup bool          `json:"needs_signup"`
}

// RosterFor returns every student who has ever attended any occurrence of
// this event's class, flagged with whether they still need a mailing-list
// invitation. Matching against members is by exact lower-cased name, so
// spelling variants across the two rosters stay invisible here.
func (s *Service) RosterFor(ctx context.Context, evt model.Event) ([]RosterStatus, error) {
	rows, err := s.repo.CrossReference(ctx, evt.Name)
	if err != nil {
		return nil, err
	}
	res := make([]RosterStatus, 0, len(rows))
	for _, row := range rows {
		res = append(res, RosterStatus{
			Student:     row.Student,
			IsMember:    row.IsMember,
			Declined:    row.Declined,
			NeedsSignup: !row.IsMember && !row.Declined,
		})
	}
	return res, nil
}

func (sr *SectionReport) add(name, status string) {
	sr.Entries = append(sr.Entries, EntryResult{Name: name, Status: status})
	if status == StatusCreated {
		sr.Created++
	} else {
		sr.Skipped++
	}
}
