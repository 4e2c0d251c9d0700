// Package complaint provides user-report ticketing: plain create/list/remove
// over Redis records, with an optional notifier pushing new reports to the
// admin channel.
package complaint

import (
	"context"
	"log"

	"omilia/backend/internal/metrics"
	"omilia/backend/internal/models"
	"omilia/backend/internal/storage"
)

// Notifier receives every newly created complaint. The Telegram admin bot
// implements it; a nil notifier disables pushing.
type Notifier interface {
	ComplaintCreated(c models.Complaint)
}

// Service handles the business logic for complaints.
type Service struct {
	Storage  storage.Storage
	notifier Notifier
}

// NewService creates a new complaint service.
func NewService(s storage.Storage) *Service {
	return &Service{Storage: s}
}

// SetNotifier wires the admin notifier in after construction.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Create records a new complaint and returns its assigned ID.
func (s *Service) Create(ctx context.Context, reporterID, targetUserID, messageID, reason string) (int64, error) {
	c := &models.Complaint{
		ReporterID:   reporterID,
		TargetUserID: targetUserID,
		MessageID:    messageID,
		Reason:       reason,
	}
	if err := s.Storage.CreateComplaint(ctx, c); err != nil {
		log.Printf("ERROR: failed to create complaint from %s: %v", reporterID, err)
		return 0, err
	}

	metrics.ComplaintsTotal.Inc()
	log.Printf("INFO: user %s submitted complaint ID=%d", reporterID, c.ID)
	if s.notifier != nil {
		s.notifier.ComplaintCreated(*c)
	}
	return c.ID, nil
}

// List returns all complaints ordered by ID.
func (s *Service) List(ctx context.Context) ([]models.Complaint, error) {
	return s.Storage.ListComplaints(ctx)
}

// Remove deletes one complaint; the bool reports whether it existed.
func (s *Service) Remove(ctx context.Context, id int64) (bool, error) {
	return s.Storage.RemoveComplaint(ctx, id)
}
