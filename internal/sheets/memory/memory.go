// Package memory is an in-process LedgerMirror used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"finboard/internal/core"
	ports "finboard/internal/sheets"
)

type Mirror struct {
	mu    sync.Mutex
	order []string
	rows  map[string][]any

	// failNext counts calls still to fail.
	failNext int
	upserts  int
	deletes  int
}

// ErrUnavailable simulates an outage of the remote sheet.
var ErrUnavailable = errors.New("mirror unavailable")

var _ ports.LedgerMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: make(map[string][]any)}
}

func (m *Mirror) Upsert(_ context.Context, t core.Transaction) (string, error) {
	if t.ID == "" {
		return "", errors.New("transaction without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked(); err != nil {
		return "", err
	}
	if _, ok := m.rows[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	m.rows[t.ID] = ports.Row(t)
	m.upserts++
	return fmt.Sprintf("mem:%s", t.ID), nil
}

func (m *Mirror) Delete(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked(); err != nil {
		return err
	}
	if _, ok := m.rows[transactionID]; !ok {
		return nil
	}
	delete(m.rows, transactionID)
	for i, id := range m.order {
		if id == transactionID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.deletes++
	return nil
}

// FailNext arranges for the next n calls to return ErrUnavailable.
func (m *Mirror) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

func (m *Mirror) failLocked() error {
	if m.failNext > 0 {
		m.failNext--
		return ErrUnavailable
	}
	return nil
}

// IDs returns the mirrored transaction ids in first-written order.
func (m *Mirror) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Row returns the mirrored row for id.
func (m *Mirror) Row(id string) ([]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	return row, ok
}

// Counts reports how many upserts and deletes succeeded.
func (m *Mirror) Counts() (upserts, deletes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts, m.deletes
}
