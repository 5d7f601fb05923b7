package ocr

import (
	"context"
	"encoding/json"
	"log"

	"bridgesheet/internal/extract"
	"bridgesheet/internal/metrics"
)

// Extractor is the vision collaborator: it turns a photo URL into raw
// model output. Satisfied by visionclient.Client.
type Extractor interface {
	ExtractSheet(ctx context.Context, imageURL string) (string, error)
}

// Service drives one extraction attempt through its lifecycle. Extraction
// runs synchronously inside the request that uploaded the photo; there is
// no queue and no retry. A failed job stays failed - the caller re-uploads
// to try again, and the photo URL on the job means nothing is lost.
type Service struct {
	repo   *Repository
	vision Extractor
}

// NewService creates a service backed by a repository and a vision client.
func NewService(repo *Repository, vision Extractor) *Service {
	return &Service{repo: repo, vision: vision}
}

// Run creates a job for the uploaded photo and processes it to a terminal
// state. The returned job reflects the outcome; err is only non-nil for
// store failures. An extraction failure is not an error here - it is
// recorded on the job, and the upload still counts as accepted.
func (s *Service) Run(ctx context.Context, eventID, imageURL string) (Job, error) {
	job, err := s.repo.Create(ctx, eventID, imageURL)
	if err != nil {
		return Job{}, err
	}
	metrics.SheetUploads.Inc()

	s.process(ctx, &job)
	return s.repo.Get(ctx, job.ID)
}

// Get returns a job by id.
func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	return s.repo.Get(ctx, id)
}

// ListByEvent returns all extraction attempts for an event.
func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]Job, error) {
	return s.repo.ListByEvent(ctx, eventID)
}

func (s *Service) process(ctx context.Context, job *Job) {
	if err := s.repo.MarkProcessing(ctx, job.ID); err != nil {
		log.Printf("job %s: mark processing failed: %v", job.ID, err)
		return
	}

	output, err := s.vision.ExtractSheet(ctx, job.ImageURL)
	if err != nil {
		s.fail(ctx, job.ID, err.Error())
		return
	}

	result, err := extract.Parse(output)
	if err != nil {
		s.fail(ctx, job.ID, err.Error())
		return
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		s.fail(ctx, job.ID, err.Error())
		return
	}

	if err := s.repo.MarkComplete(ctx, job.ID, encoded); err != nil {
		log.Printf("job %s: mark complete failed: %v", job.ID, err)
		return
	}
	metrics.JobOutcomes.WithLabelValues(StatusComplete).Inc()
	log.Printf("job %s: extracted %d attendance, %d mailing entries",
		job.ID, len(result.Attendance), len(result.MailingList))
}

func (s *Service) fail(ctx context.Context, id, msg string) {
	log.Printf("job %s: extraction failed: %s", id, msg)
	if err := s.repo.MarkFailed(ctx, id, msg); err != nil {
		log.Printf("job %s: mark failed failed: %v", id, err)
	}
	metrics.JobOutcomes.WithLabelValues(StatusFailed).Inc()
}
