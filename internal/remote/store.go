// Package remote talks to the hierarchical JSON store that holds the question
// bank, game sessions and answer logs.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Store is a keyed hierarchical JSON store, in the shape of the Firebase
// Realtime Database.
type Store interface {
	// Get returns the node at path. A missing path is not an error: the node
	// reports Exists() == false.
	Get(ctx context.Context, path string) (Node, error)
	// Push stores v under a new generated child of path and returns its key.
	Push(ctx context.Context, path string, v any) (string, error)
	// Set replaces the node at path with v.
	Set(ctx context.Context, path string, v any) error
}

// Paths used by the quiz.
const (
	SessionsPath = "game_sessions"
	AnswersChild = "answers"
)

// SessionPath returns the node holding one session.
func SessionPath(sessionID string) string {
	return Join(SessionsPath, sessionID)
}

// AnswersPath returns the answer log of one session.
func AnswersPath(sessionID string) string {
	return Join(SessionsPath, sessionID, AnswersChild)
}

// Join builds a slash separated path, ignoring empty parts and stray slashes.
func Join(parts ...string) string {
	var segs []string
	for _, p := range parts {
		segs = append(segs, Split(p)...)
	}
	return strings.Join(segs, "/")
}

// Split returns the non-empty segments of path.
func Split(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// ErrNotObject is returned when children are requested from a leaf.
var ErrNotObject = errors.New("node is not an object")

// Node is a snapshot of one location in the store.
type Node struct {
	Key string
	raw json.RawMessage
}

// NewNode wraps raw JSON. Empty input or JSON null is an absent node.
func NewNode(key string, raw []byte) Node {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Node{Key: key}
	}
	return Node{Key: key, raw: json.RawMessage(trimmed)}
}

// Exists reports whether the location holds a value.
func (n Node) Exists() bool { return len(n.raw) > 0 }

// Raw returns the JSON value, nil when absent.
func (n Node) Raw() json.RawMessage { return n.raw }

// Decode unmarshals the value into v.
func (n Node) Decode(v any) error {
	if !n.Exists() {
		return fmt.Errorf("decode %q: node does not exist", n.Key)
	}
	if err := json.Unmarshal(n.raw, v); err != nil {
		return fmt.Errorf("decode %q: %w", n.Key, err)
	}
	return nil
}

// Children returns the child nodes ordered by key. Arrays, which the store
// produces for sequential integer keys, yield children keyed "0", "1", ….
func (n Node) Children() ([]Node, error) {
	if !n.Exists() {
		return nil, nil
	}
	switch n.raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(n.raw, &obj); err != nil {
			return nil, fmt.Errorf("children of %q: %w", n.Key, err)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]Node, 0, len(keys))
		for _, k := range keys {
			if child := NewNode(k, obj[k]); child.Exists() {
				out = append(out, child)
			}
		}
		return out, nil
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(n.raw, &arr); err != nil {
			return nil, fmt.Errorf("children of %q: %w", n.Key, err)
		}
		out := make([]Node, 0, len(arr))
		for i, v := range arr {
			if child := NewNode(strconv.Itoa(i), v); child.Exists() {
				out = append(out, child)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("children of %q: %w", n.Key, ErrNotObject)
}

// Child returns the named child, absent if n has no such child.
func (n Node) Child(name string) (Node, error) {
	kids, err := n.Children()
	if err != nil {
		return Node{}, err
	}
	for _, k := range kids {
		if k.Key == name {
			return k, nil
		}
	}
	return Node{Key: name}, nil
}

// Has reports whether n has a non-null child named name.
func (n Node) Has(name string) bool {
	child, err := n.Child(name)
	return err == nil && child.Exists()
}

// String returns the value as text: strings unquoted, anything else as JSON.
func (n Node) String() string {
	if !n.Exists() {
		return ""
	}
	var s string
	if err := json.Unmarshal(n.raw, &s); err == nil {
		return s
	}
	return string(n.raw)
}
