package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sitecloner/api/internal/model"
)

// MemoryStore keeps sessions in process memory. It backs tests and
// deployments without Redis; state does not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*model.Session)}
}

func (m *MemoryStore) Create(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.SessionID]; ok {
		return fmt.Errorf("session %s already exists", s.SessionID)
	}
	m.sessions[s.SessionID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Update runs the mutator under the store lock, which serializes all
// writers to the same session.
func (m *MemoryStore) Update(ctx context.Context, id string, mutate func(*model.Session)) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	mutate(s)
	return s.Clone(), nil
}

func (m *MemoryStore) List(ctx context.Context, q ListQuery) ([]*model.Session, int, error) {
	m.mu.RLock()
	all := make([]*model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if q.Status != "" && s.Status != q.Status {
			continue
		}
		all = append(all, s.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].SessionID < all[j].SessionID
	})

	total := len(all)
	if q.Offset >= total {
		return []*model.Session{}, total, nil
	}
	end := q.Offset + q.Limit
	if q.Limit <= 0 || end > total {
		end = total
	}
	return all[q.Offset:end], total, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}
