package clip

import (
	"fmt"
	"slices"
	"sync"
)

// Memory is an in-process clipboard that holds any number of formats at once.
// It backs headless hosts and tests. Every Write or Set signals Watch.
//
// The Fail* hooks inject transient errors for the next n calls, mimicking a
// native clipboard that is briefly owned by another process.
type Memory struct {
	mu      sync.Mutex
	items   []Item
	watchCh chan struct{}

	emptyFor   int
	failWrites int
	failReads  map[string]int
	listCalls  int
	readCalls  map[string]int
	writeCalls int
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory {
	return &Memory{
		watchCh:   make(chan struct{}, 1),
		failReads: make(map[string]int),
		readCalls: make(map[string]int),
	}
}

func (m *Memory) Name() string { return "in-memory (headless)" }

// Set replaces the contents as if another application copied items.
func (m *Memory) Set(items ...Item) {
	m.mu.Lock()
	m.items = cloneItems(items)
	m.mu.Unlock()
	notify(m.watchCh)
}

func (m *Memory) AvailableFormats() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.emptyFor > 0 {
		m.emptyFor--
		return nil, nil
	}
	formats := make([]string, 0, len(m.items))
	for _, it := range m.items {
		formats = append(formats, it.Format)
	}
	return formats, nil
}

func (m *Memory) GetRaw(format string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls[format]++
	if m.failReads[format] > 0 {
		m.failReads[format]--
		return nil, fmt.Errorf("%w: %s busy", ErrFormatUnavailable, format)
	}
	for _, it := range m.items {
		if it.Format == format {
			return slices.Clone(it.Data), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFormatUnavailable, format)
}

func (m *Memory) Write(items []Item) error {
	m.mu.Lock()
	m.writeCalls++
	if m.failWrites > 0 {
		m.failWrites--
		m.mu.Unlock()
		return fmt.Errorf("clipboard busy")
	}
	m.items = cloneItems(items)
	m.mu.Unlock()
	notify(m.watchCh)
	return nil
}

func (m *Memory) Watch() <-chan struct{} { return m.watchCh }
func (m *Memory) Close()                 {}

// Items returns a copy of the current contents.
func (m *Memory) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneItems(m.items)
}

// EmptyFor makes the next n AvailableFormats calls report an empty clipboard.
func (m *Memory) EmptyFor(n int) {
	m.mu.Lock()
	m.emptyFor = n
	m.mu.Unlock()
}

// FailWrites makes the next n Write calls fail.
func (m *Memory) FailWrites(n int) {
	m.mu.Lock()
	m.failWrites = n
	m.mu.Unlock()
}

// FailReads makes the next n GetRaw calls for format fail.
func (m *Memory) FailReads(format string, n int) {
	m.mu.Lock()
	m.failReads[format] = n
	m.mu.Unlock()
}

// ListCalls returns how many times AvailableFormats was called.
func (m *Memory) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// ReadCalls returns how many times GetRaw was called for format.
func (m *Memory) ReadCalls(format string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCalls[format]
}

// WriteCalls returns how many times Write was called, including failures.
func (m *Memory) WriteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeCalls
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{Format: it.Format, Data: slices.Clone(it.Data)}
	}
	return out
}
