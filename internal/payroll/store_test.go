package payroll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]PayrollEntry
	order   []uuid.UUID
	putErr  error
	byDate  int
	puts    int
	// failPut, when set, can fail the nth Put (1-based).
	failPut func(n int) error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[uuid.UUID]PayrollEntry)}
}

func (m *memStore) Put(_ context.Context, entry PayrollEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	if m.failPut != nil {
		if err := m.failPut(m.puts); err != nil {
			return err
		}
	}
	if _, ok := m.entries[entry.ID]; ok {
		return nil
	}
	if entry.Supersedes != nil {
		old, ok := m.entries[*entry.Supersedes]
		if !ok {
			return fmt.Errorf("%w: superseded entry %s", ErrNotFound, entry.Supersedes)
		}
		if old.SupersededBy != nil {
			return fmt.Errorf("%w: %s", ErrAlreadySuperseded, entry.Supersedes)
		}
		id := entry.ID
		old.SupersededBy = &id
		m.entries[old.ID] = old
	}
	m.entries[entry.ID] = entry
	m.order = append(m.order, entry.ID)
	return nil
}

func (m *memStore) GetByDate(_ context.Context, date time.Time, projectID string) ([]PayrollEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byDate++
	var out []PayrollEntry
	for _, id := range m.order {
		e := m.entries[id]
		if !Day(e.Date).Equal(Day(date)) || (projectID != "" && e.ProjectID != projectID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (PayrollEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return PayrollEntry{}, ErrNotFound
	}
	return e, nil
}

func (m *memStore) ListByState(_ context.Context, states []ReviewState, projectID string) ([]PayrollEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PayrollEntry
	for _, id := range m.order {
		e := m.entries[id]
		if !e.Active() || (projectID != "" && e.ProjectID != projectID) {
			continue
		}
		for _, s := range states {
			if e.ReviewState == s {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) CASUpdateState(_ context.Context, id uuid.UUID, expected, next ReviewState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false, ErrNotFound
	}
	if e.ReviewState != expected {
		return false, nil
	}
	e.ReviewState = next
	m.entries[id] = e
	return true, nil
}

func (m *memStore) dateReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byDate
}
