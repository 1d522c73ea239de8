package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It backs offline classroom mode and tests.
type Memory struct {
	mu   sync.Mutex
	root any
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

// LoadMemory seeds a store from a JSON export of the database.
func LoadMemory(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	m := NewMemory()
	if err := json.Unmarshal(data, &m.root); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}
	return m, nil
}

// Get returns a snapshot of path.
func (m *Memory) Get(ctx context.Context, path string) (Node, error) {
	if err := ctx.Err(); err != nil {
		return Node{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	segs := Split(path)
	cur := m.root
	for _, s := range segs {
		obj, ok := cur.(map[string]any)
		if !ok {
			return Node{Key: lastSegment(segs)}, nil
		}
		cur = obj[s]
	}
	raw, err := json.Marshal(cur)
	if err != nil {
		return Node{}, fmt.Errorf("snapshot %q: %w", path, err)
	}
	return NewNode(lastSegment(segs), raw), nil
}

// Push stores v under a time-ordered generated key.
func (m *Memory) Push(ctx context.Context, path string, v any) (string, error) {
	key, err := newPushKey()
	if err != nil {
		return "", err
	}
	if err := m.Set(ctx, Join(path, key), v); err != nil {
		return "", err
	}
	return key, nil
}

// Set replaces the value at path, creating parents as needed.
func (m *Memory) Set(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := normalize(v)
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	segs := Split(path)
	if len(segs) == 0 {
		m.root = val
		return nil
	}
	obj, ok := m.root.(map[string]any)
	if !ok {
		obj = map[string]any{}
		m.root = obj
	}
	for _, s := range segs[:len(segs)-1] {
		next, ok := obj[s].(map[string]any)
		if !ok {
			next = map[string]any{}
			obj[s] = next
		}
		obj = next
	}
	last := segs[len(segs)-1]
	if val == nil {
		delete(obj, last)
	} else {
		obj[last] = val
	}
	return nil
}

// normalize turns v into the generic JSON tree stored in memory.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func newPushKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate push key: %w", err)
	}
	return id.String(), nil
}

func lastSegment(segs []string) string {
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}
