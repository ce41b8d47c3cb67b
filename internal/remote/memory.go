package remote

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrInjected is returned by Memory calls failed through FailPuts/FailGets.
var ErrInjected = errors.New("injected remote failure")

// Memory is an in-process store for tests and the mem:// URL.
type Memory struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failPuts map[string]int
	failGets map[string]int
	puts     []string
	gets     []string
}

func NewMemory() *Memory {
	return &Memory{
		objects:  make(map[string][]byte),
		failPuts: make(map[string]int),
		failGets: make(map[string]int),
	}
}

func (m *Memory) Put(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts = append(m.puts, p)
	if m.failPuts[p] > 0 {
		m.failPuts[p]--
		return fmt.Errorf("put %s: %w", p, ErrInjected)
	}
	m.objects[p] = slices.Clone(data)
	return nil
}

func (m *Memory) Get(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets = append(m.gets, p)
	if m.failGets[p] > 0 {
		m.failGets[p]--
		return nil, fmt.Errorf("get %s: %w", p, ErrInjected)
	}
	data, ok := m.objects[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return slices.Clone(data), nil
}

// FailPuts makes the next n Puts to p fail.
func (m *Memory) FailPuts(p string, n int) {
	m.mu.Lock()
	m.failPuts[p] = n
	m.mu.Unlock()
}

// FailGets makes the next n Gets of p fail.
func (m *Memory) FailGets(p string, n int) {
	m.mu.Lock()
	m.failGets[p] = n
	m.mu.Unlock()
}

// Object returns the stored bytes for p.
func (m *Memory) Object(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[p]
	return slices.Clone(data), ok
}

// Puts returns every Put path in call order, failed ones included.
func (m *Memory) Puts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.puts)
}

// Gets returns every Get path in call order.
func (m *Memory) Gets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.gets)
}
