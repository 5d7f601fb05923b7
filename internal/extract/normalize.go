// Package extract turns the raw, free-form output of the vision extraction
// service into the one canonical shape the rest of the system trusts.
//
// The producer is a generative model with no structural contract: fields
// may be missing, mistyped, or extra. Normalize is best-effort coercion,
// not validation - it never fails, it defaults. Downstream code may assume
// the canonical shape and never re-check types.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Form types recognized on a sheet photo.
const (
	FormBlank  = "blank"
	FormRoster = "roster"
)

const defaultConfidence = 0.5

// AttendanceEntry is one hand-written attendance row from a sheet.
type AttendanceEntry struct {
	Name        string  `json:"name"`
	TableNumber *int    `json:"table_number"`
	Seat        *string `json:"seat"`
	IsChecked   *bool   `json:"is_checked"`
	Confidence  float64 `json:"confidence"`
}

// MailingEntry is one hand-written mailing-list signup row.
type MailingEntry struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Confidence float64 `json:"confidence"`
}

// Result is the canonical extraction result stored on a completed job.
type Result struct {
	QrData      any               `json:"qr_data"`
	FormType    string            `json:"form_type"`
	Attendance  []AttendanceEntry `json:"attendance"`
	MailingList []MailingEntry    `json:"mailing_list"`
	Confidence  float64           `json:"confidence"`
	Notes       string            `json:"notes"`
}

// Parse decodes raw model output and normalizes it. Models habitually wrap
// JSON in markdown fences, so those are stripped first. A decode failure is
// the only error path; once the text parses, Normalize cannot fail.
func Parse(text string) (Result, error) {
	cleaned := stripFences(text)
	var raw any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return Result{}, fmt.Errorf("unparsable extraction output: %w", err)
	}
	return Normalize(raw), nil
}

// Normalize coerces an arbitrary parsed JSON value into a Result. Every
// field gets a tagged default; rows without usable identity are dropped.
func Normalize(raw any) Result {
	res := Result{
		FormType:    FormBlank,
		Attendance:  []AttendanceEntry{},
		MailingList: []MailingEntry{},
		Confidence:  defaultConfidence,
		Notes:       "",
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return res
	}

	if ft, ok := obj["form_type"].(string); ok && ft == FormRoster {
		res.FormType = FormRoster
	}
	if qr, ok := obj["qr_data"]; ok {
		res.QrData = qr
	}
	if conf, ok := asNumber(obj["confidence"]); ok {
		res.Confidence = conf
	}
	if notes, ok := obj["notes"].(string); ok {
		res.Notes = notes
	}

	if rows, ok := obj["attendance"].([]any); ok {
		for _, row := range rows {
			entry, ok := normalizeAttendanceRow(row)
			if !ok {
				continue
			}
			res.Attendance = append(res.Attendance, entry)
		}
	}

	if rows, ok := obj["mailing_list"].([]any); ok {
		for _, row := range rows {
			entry, ok := normalizeMailingRow(row)
			if !ok {
				continue
			}
			res.MailingList = append(res.MailingList, entry)
		}
	}

	return res
}

// normalizeAttendanceRow coerces one attendance row. Rows whose name is
// empty after trimming are dropped.
func normalizeAttendanceRow(raw any) (AttendanceEntry, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return AttendanceEntry{}, false
	}

	name := strings.TrimSpace(asString(obj["name"]))
	if name == "" {
		return AttendanceEntry{}, false
	}

	entry := AttendanceEntry{Name: name, Confidence: defaultConfidence}

	if n, ok := asNumber(obj["table_number"]); ok {
		table := int(n)
		entry.TableNumber = &table
	}
	entry.Seat = NormalizeSeat(obj["seat"])
	if checked, ok := obj["is_checked"].(bool); ok {
		entry.IsChecked = &checked
	}
	if conf, ok := asNumber(obj["confidence"]); ok {
		entry.Confidence = conf
	}
	return entry, true
}

// normalizeMailingRow coerces one signup row. Rows missing either name or
// email after trimming are dropped; emails are lower-cased so the store's
// uniqueness constraint sees one spelling per address.
func normalizeMailingRow(raw any) (MailingEntry, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return MailingEntry{}, false
	}

	name := strings.TrimSpace(asString(obj["name"]))
	email := strings.ToLower(strings.TrimSpace(asString(obj["email"])))
	if name == "" || email == "" {
		return MailingEntry{}, false
	}

	entry := MailingEntry{Name: name, Email: email, Confidence: defaultConfidence}
	if conf, ok := asNumber(obj["confidence"]); ok {
		entry.Confidence = conf
	}
	return entry, true
}

// NormalizeSeat maps whatever the model saw in the seat column onto the
// N/S/E/W domain. Full compass words and single letters are accepted in
// any case; everything else is null.
func NormalizeSeat(raw any) *string {
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "N", "NORTH":
		return seatPtr("N")
	case "S", "SOUTH":
		return seatPtr("S")
	case "E", "EAST":
		return seatPtr("E")
	case "W", "WEST":
		return seatPtr("W")
	}
	return nil
}

func seatPtr(s string) *string { return &s }

// asString returns the value if it is a JSON string, else "".
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asNumber reports whether the value is a JSON number.
func asNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
