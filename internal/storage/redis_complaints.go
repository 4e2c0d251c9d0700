package storage

import (
	"context"
	"log"
	"sort"
	"strconv"
	"time"

	"omilia/backend/internal/models"
)

const (
	complaintCounterKey = "complaint_id_counter"
	complaintIndexKey   = "complaints:all"
)

// CreateComplaint allocates the next complaint ID and stores the record.
// The assigned ID and creation time are written back into c.
func (s *Service) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	id, err := s.Redis.Incr(ctx, complaintCounterKey).Result()
	if err != nil {
		return wrap(err)
	}
	c.ID = id
	if c.CreatedAt == "" {
		c.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	pipe := s.Redis.TxPipeline()
	pipe.HSet(ctx, complaintKey(id),
		"reporter_id", c.ReporterID,
		"target_user_id", c.TargetUserID,
		"message_id", c.MessageID,
		"reason", c.Reason,
		"created_at", c.CreatedAt,
	)
	pipe.SAdd(ctx, complaintIndexKey, id)
	_, err = pipe.Exec(ctx)
	return wrap(err)
}

// ListComplaints returns every stored complaint, ordered by ID.
func (s *Service) ListComplaints(ctx context.Context) ([]models.Complaint, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ids, err := s.Redis.SMembers(ctx, complaintIndexKey).Result()
	if err != nil {
		return nil, wrap(err)
	}

	complaints := make([]models.Complaint, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("WARNING: skipping malformed complaint id %q", raw)
			continue
		}
		fields, err := s.Redis.HGetAll(ctx, complaintKey(id)).Result()
		if err != nil {
			return nil, wrap(err)
		}
		if len(fields) == 0 {
			// Index entry without a record; an interrupted delete left it.
			continue
		}
		complaints = append(complaints, models.Complaint{
			ID:           id,
			ReporterID:   fields["reporter_id"],
			TargetUserID: fields["target_user_id"],
			MessageID:    fields["message_id"],
			Reason:       fields["reason"],
			CreatedAt:    fields["created_at"],
		})
	}
	sort.Slice(complaints, func(i, j int) bool { return complaints[i].ID < complaints[j].ID })
	return complaints, nil
}

// RemoveComplaint deletes one complaint. The bool reports whether it existed.
func (s *Service) RemoveComplaint(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	exists, err := s.Redis.Exists(ctx, complaintKey(id)).Result()
	if err != nil {
		return false, wrap(err)
	}
	if exists == 0 {
		return false, nil
	}

	pipe := s.Redis.TxPipeline()
	pipe.Del(ctx, complaintKey(id))
	pipe.SRem(ctx, complaintIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, wrap(err)
	}
	return true, nil
}
