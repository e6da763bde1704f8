package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"greencity/internal/model"
	"greencity/internal/repository"

	"github.com/google/uuid"
)

type Notifications struct {
	mu        sync.RWMutex
	items     []model.Notification
	processed map[string]bool
}

func (s *Notifications) Create(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, *n)
	return nil
}

func (s *Notifications) ListByUser(_ context.Context, userID string, limit int) ([]model.Notification, error) {
	s.mu.RLock()
	out := []model.Notification{}
	for _, n := range s.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Notifications) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *Notifications) MarkAsRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].UserID == userID {
			s.items[i].IsRead = true
			return nil
		}
	}
	return model.NotFound("Notification not found")
}

func (s *Notifications) MarkAllAsRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].UserID == userID {
			s.items[i].IsRead = true
		}
	}
	return nil
}

func (s *Notifications) MarkProcessed(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processed[messageID] {
		return false, nil
	}
	s.processed[messageID] = true
	return true, nil
}

type Outbox struct {
	mu    sync.Mutex
	items []repository.OutboxMessage
	now   func() time.Time
}

func (s *Outbox) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Outbox) Append(_ context.Context, entry repository.OutboxEntry) error {
	data, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, repository.OutboxMessage{
		ID:            uuid.NewString(),
		RoutingKey:    entry.RoutingKey,
		AggregateType: entry.AggregateType,
		AggregateID:   entry.AggregateID,
		Payload:       data,
		CreatedAt:     s.clock(),
		Status:        repository.OutboxPending,
	})
	return nil
}

func (s *Outbox) Claim(_ context.Context, limit int, lease time.Duration) ([]repository.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	expired := now.Add(-lease)
	var out []repository.OutboxMessage
	for i := range s.items {
		m := &s.items[i]
		stale := m.Status == repository.OutboxRelaying && m.ClaimedAt != nil && m.ClaimedAt.Before(expired)
		if m.Status != repository.OutboxPending && !stale {
			continue
		}
		claimed := now
		m.Status = repository.OutboxRelaying
		m.ClaimedAt = &claimed
		out = append(out, *m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Outbox) find(id string) *repository.OutboxMessage {
	for i := range s.items {
		if s.items[i].ID == id {
			return &s.items[i]
		}
	}
	return nil
}

func (s *Outbox) MarkAsPublished(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.find(id); m != nil {
		now := s.clock()
		m.Status = repository.OutboxPublished
		m.PublishedAt = &now
		m.ClaimedAt = nil
	}
	return nil
}

func (s *Outbox) MarkAsFailed(_ context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.find(id); m != nil {
		m.RetryCount++
		msg := errMsg
		m.LastError = &msg
		m.ClaimedAt = nil
		m.Status = repository.OutboxPending
		if m.RetryCount >= repository.MaxOutboxRetries {
			m.Status = repository.OutboxFailed
		}
	}
	return nil
}

func (s *Outbox) DeletePublished(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.clock().Add(-olderThan)
	kept := s.items[:0]
	var deleted int64
	for _, m := range s.items {
		if m.Status == repository.OutboxPublished && m.PublishedAt != nil && m.PublishedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	s.items = kept
	return deleted, nil
}

func (s *Outbox) Stats(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make(map[string]int)
	for _, m := range s.items {
		stats[m.Status]++
	}
	return stats, nil
}
