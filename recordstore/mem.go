package recordstore

import (
	"context"
	"fmt"
	"sync"
)

// MemDataset is an in-memory Dataset used in tests.
type MemDataset struct {
	mu      sync.RWMutex
	headers []string
	rows    []map[string]string
}

func NewMemDataset() *MemDataset {
	return &MemDataset{}
}

func (m *MemDataset) EnsureHeaders(ctx context.Context, headers []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.headers == nil {
		m.headers = append([]string(nil), headers...)
	}
	return nil
}

// Headers reports the dataset header, nil before first use.
func (m *MemDataset) Headers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.headers
}

func (m *MemDataset) Rows(ctx context.Context) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := make([]Row, 0, len(m.rows))
	for i, cells := range m.rows {
		cp := make(map[string]string, len(cells))
		for k, v := range cells {
			cp[k] = v
		}
		rows = append(rows, Row{Num: i + 1, Cells: cp})
	}
	return rows, nil
}

func (m *MemDataset) Update(ctx context.Context, num int, cells map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if num < 1 || num > len(m.rows) {
		return fmt.Errorf("row %d does not exist", num)
	}
	for k, v := range cells {
		m.rows[num-1][k] = v
	}
	return nil
}

func (m *MemDataset) Append(ctx context.Context, cells map[string]string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]string, len(cells))
	for k, v := range cells {
		cp[k] = v
	}
	m.rows = append(m.rows, cp)
	return len(m.rows), nil
}
