package store

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
//
// The UNIQUE constraints here are load-bearing: attendance(event_id,
// student_id), members(email), and mailing_list_entries(email) are the
// authoritative duplicate guards. Application-level existence checks that
// precede inserts are advisory only.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const schema = `
-- Class occurrences. The id is the 8-char uppercase hex token printed on
-- the sheet's QR code.
CREATE TABLE IF NOT EXISTS events (
    id CHAR(8) PRIMARY KEY,
    name TEXT NOT NULL,
    date DATE NOT NULL,
    teacher TEXT NOT NULL,
    location TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL DEFAULT 'in_person' CHECK (type IN ('in_person', 'remote')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- People who have attended at least one event. Created lazily on first
-- sighting of a name; never deleted.
CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT,
    first_event_id CHAR(8) NOT NULL REFERENCES events(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_students_name ON students(name);

-- One row per (event, student). The unique constraint, not the advisory
-- existence check, settles races between concurrent confirms.
CREATE TABLE IF NOT EXISTS attendance (
    id UUID PRIMARY KEY,
    event_id CHAR(8) NOT NULL REFERENCES events(id),
    student_id UUID NOT NULL REFERENCES students(id),
    table_number INT,
    seat CHAR(1) CHECK (seat IN ('N', 'S', 'E', 'W')),
    source TEXT NOT NULL DEFAULT 'extracted' CHECK (source IN ('extracted', 'manual', 'remote')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (event_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_attendance_event ON attendance(event_id);

-- Canonical mailing-list roster, bulk-imported out of band. Bridged to
-- students only by case-insensitive name match, never by foreign key.
CREATE TABLE IF NOT EXISTS members (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    joined_date DATE,
    declined BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_members_name_lower ON members(LOWER(name));

-- Ad-hoc signups captured from sheets or the confirm step. First write
-- wins per email.
CREATE TABLE IF NOT EXISTS mailing_list_entries (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    event_id CHAR(8) REFERENCES events(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- One extraction attempt per uploaded photo. Status only moves forward:
-- pending -> processing -> complete | failed.
CREATE TABLE IF NOT EXISTS ocr_jobs (
    id UUID PRIMARY KEY,
    event_id CHAR(8) NOT NULL REFERENCES events(id),
    image_url TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processing', 'complete', 'failed')),
    result JSONB,
    error TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ocr_jobs_event ON ocr_jobs(event_id);
`
