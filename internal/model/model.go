package model

import "time"

// Event types.
const (
	EventInPerson = "in_person"
	EventRemote   = "remote"
)

// Attendance sources.
const (
	SourceExtracted = "extracted"
	SourceManual    = "manual"
	SourceRemote    = "remote"
)

// Event is one scheduled class occurrence. The id is the 8-character
// uppercase hex token printed on the sheet's QR code. Events are immutable
// once created.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Date      string    `json:"date"`
	Teacher   string    `json:"teacher"`
	Location  string    `json:"location,omitempty"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Student is a person who has attended at least one event. Created lazily
// the first time a name shows up on a confirmed sheet; never deleted.
type Student struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        *string   `json:"email,omitempty"`
	FirstEventID string    `json:"first_event_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Attendance joins a student to an event. At most one row per
// (event, student) pair, enforced by a unique constraint in the store.
type Attendance struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name,omitempty"`
	TableNumber *int      `json:"table_number,omitempty"`
	Seat        *string   `json:"seat,omitempty"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

// Member is a row in the canonical mailing-list roster, imported in bulk.
// It shares no key with Student; the two are bridged only by
// case-insensitive name match.
type Member struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	JoinedDate *string `json:"joined_date,omitempty"`
	Declined   bool    `json:"declined"`
}

// MailingListEntry is a signup captured from a sheet or confirm step.
// Unique by email; first write wins.
type MailingListEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	EventID   *string   `json:"event_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
