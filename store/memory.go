package store

import (
	"context"
	"sync"
	"time"

	"github.com/itakecare/leazr-docgen/model"
)

// Memory is an in-process TemplateStore. It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	templates map[string]*model.Template
	order     []string
	now       func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		templates: make(map[string]*model.Template),
		now:       time.Now,
	}
}

func (m *Memory) TemplatesForTenant(_ context.Context, tenantID string) ([]model.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Template
	for _, id := range m.order {
		if t := m.templates[id]; t.TenantID == tenantID {
			out = append(out, *t.Clone())
		}
	}
	return out, nil
}

func (m *Memory) TemplateByID(_ context.Context, id string) (*model.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (m *Memory) SaveTemplate(_ context.Context, t *model.Template) (*model.Template, error) {
	c, err := prepare(t, m.now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.templates[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else {
		m.order = append(m.order, c.ID)
	}
	m.templates[c.ID] = c
	return c.Clone(), nil
}

func (m *Memory) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[id]; !ok {
		return nil
	}
	delete(m.templates, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
