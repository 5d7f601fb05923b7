package event

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"bridgesheet/internal/model"
)

// idPattern is the token printed on the sheet: 8 uppercase hex characters.
var idPattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

// GenerateID derives a fresh 8-character uppercase hex event id, the same
// token the printed sheets carry in their QR codes.
func GenerateID() string {
	raw := uuid.New()
	return strings.ToUpper(fmt.Sprintf("%x", raw[:4]))
}

// ValidID reports whether s is a well-formed event id.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}

// Service validates and creates class occurrences. Events have no update
// path: once a sheet is printed with an event id, the record behind it
// must not drift.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Create validates the fields and inserts the event. The id may be
// caller-supplied (a sheet generated offline) or left blank to generate.
func (s *Service) Create(ctx context.Context, evt model.Event) (model.Event, error) {
	evt.Name = strings.TrimSpace(evt.Name)
	evt.Teacher = strings.TrimSpace(evt.Teacher)
	if evt.Name == "" {
		return model.Event{}, fmt.Errorf("%w: name required", model.ErrInvalidInput)
	}
	if evt.Teacher == "" {
		return model.Event{}, fmt.Errorf("%w: teacher required", model.ErrInvalidInput)
	}

	if evt.ID == "" {
		evt.ID = GenerateID()
	} else if !ValidID(evt.ID) {
		return model.Event{}, fmt.Errorf("%w: event id must be 8 uppercase hex characters", model.ErrInvalidInput)
	}

	if evt.Date == "" {
		evt.Date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", evt.Date); err != nil {
		return model.Event{}, fmt.Errorf("%w: date must be YYYY-MM-DD", model.ErrInvalidInput)
	}

	switch evt.Type {
	case "":
		evt.Type = model.EventInPerson
	case model.EventInPerson, model.EventRemote:
	default:
		return model.Event{}, fmt.Errorf("%w: type must be in_person or remote", model.ErrInvalidInput)
	}

	return s.repo.Insert(ctx, evt)
}

// Get returns an event by id.
func (s *Service) Get(ctx context.Context, id string) (model.Event, error) {
	return s.repo.Get(ctx, id)
}

// List returns events with basic pagination.
func (s *Service) List(ctx context.Context, limit, offset int) ([]model.Event, error) {
	return s.repo.List(ctx, limit, offset)
}
