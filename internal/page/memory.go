package page

import (
	"context"
	"fmt"
	"sync"

	"linkboard/internal/domain"
)

// Memory is an in-process Document. It also renders and alerts into memory,
// so a headless session can be inspected after the fact.
type Memory struct {
	mu       sync.Mutex
	values   map[string]string
	checked  map[string]bool
	rendered []domain.Link
	renders  int
	alerts   []string
}

// NewMemory returns a document holding every known control at its neutral
// value and an empty list.
func NewMemory() *Memory {
	return &Memory{
		values: map[string]string{
			PlatformFilter:  domain.FilterAll,
			UserFilter:      domain.FilterAll,
			LikeFilter:      domain.FilterAll,
			GuaranteeFilter: domain.FilterAll,
			DateFilter:      "",
			LinkURL:         "",
			LinkMemo:        "",
		},
		checked: map[string]bool{
			GuaranteeInsurance: false,
		},
	}
}

func (m *Memory) Value(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[id]
	if !ok {
		return "", fmt.Errorf("%w: #%s", ErrElementNotFound, id)
	}
	return v, nil
}

func (m *Memory) SetValue(_ context.Context, id, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[id]; !ok {
		return fmt.Errorf("%w: #%s", ErrElementNotFound, id)
	}
	m.values[id] = value
	return nil
}

func (m *Memory) Checked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.checked[id]
	if !ok {
		return false, fmt.Errorf("%w: #%s", ErrElementNotFound, id)
	}
	return v, nil
}

func (m *Memory) SetChecked(_ context.Context, id string, checked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checked[id]; !ok {
		return fmt.Errorf("%w: #%s", ErrElementNotFound, id)
	}
	m.checked[id] = checked
	return nil
}

// Count only understands LinkItemsSelector.
func (m *Memory) Count(_ context.Context, selector string) (int, error) {
	if selector != LinkItemsSelector {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedSelector, selector)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rendered), nil
}

// DisplayLinks replaces the rendered list.
func (m *Memory) DisplayLinks(_ context.Context, links []domain.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rendered = append([]domain.Link(nil), links...)
	m.renders++
	return nil
}

// Alert records message.
func (m *Memory) Alert(_ context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, message)
	return nil
}

// Rendered returns a copy of the currently rendered links.
func (m *Memory) Rendered() []domain.Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Link(nil), m.rendered...)
}

// Renders reports how many times DisplayLinks was called.
func (m *Memory) Renders() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders
}

// Alerts returns every recorded alert message in order.
func (m *Memory) Alerts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.alerts...)
}
