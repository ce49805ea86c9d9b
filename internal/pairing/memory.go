package pairing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps pairing requests in process memory. Suitable for tests
// and storeless development runs; approvals do not survive restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]Request
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]Request)}
}

func memoryKey(channel, accountID, senderID string) string {
	return fmt.Sprintf("%s|%s|%s", channel, accountID, senderID)
}

func (s *MemoryStore) Upsert(_ context.Context, req Request) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(req.Channel, req.AccountID, req.SenderID)
	if existing, ok := s.requests[key]; ok {
		existing.UpdatedAt = time.Now()
		s.requests[key] = existing
		return UpsertResult{Code: existing.Code, Created: false}, nil
	}
	now := time.Now()
	req.Status = StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now
	s.requests[key] = req
	return UpsertResult{Code: req.Code, Created: true}, nil
}

func (s *MemoryStore) Approve(_ context.Context, channel, accountID, code string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, req := range s.requests {
		if req.Channel != channel || req.AccountID != accountID {
			continue
		}
		if req.Status != StatusPending || !strings.EqualFold(req.Code, code) {
			continue
		}
		req.Status = StatusApproved
		req.UpdatedAt = time.Now()
		s.requests[key] = req
		return req, nil
	}
	return Request{}, ErrNotFound
}

func (s *MemoryStore) Revoke(_ context.Context, channel, accountID, senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(channel, accountID, senderID)
	if _, ok := s.requests[key]; !ok {
		return ErrNotFound
	}
	delete(s.requests, key)
	return nil
}

func (s *MemoryStore) ListRequests(_ context.Context, channel, accountID string, status Status) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Request
	for _, req := range s.requests {
		if req.Channel != channel || req.AccountID != accountID {
			continue
		}
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ReadAllowFrom(_ context.Context, channel, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, req := range s.requests {
		if req.Channel != channel || req.AccountID != accountID {
			continue
		}
		if req.Status != StatusApproved {
			continue
		}
		out = append(out, req.SenderID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, req := range s.requests {
		if req.Status == StatusPending && req.UpdatedAt.Before(cutoff) {
			delete(s.requests, key)
			removed++
		}
	}
	return removed, nil
}
