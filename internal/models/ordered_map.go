package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Entry is a single key/value pair of an OrderedMap.
type Entry struct {
	Key   string
	Value string
}

// OrderedMap is a string to string mapping that remembers insertion order.
// Manual rules and the payee memory both rely on "first match wins" over this order.
// The zero value is ready to use. OrderedMap is not safe for concurrent use.
type OrderedMap struct {
	keys   []string
	values map[string]string
}

// NewOrderedMap creates an OrderedMap filled with the given entries in order.
func NewOrderedMap(entries ...Entry) *OrderedMap {
	m := &OrderedMap{}
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the value stored under key.
func (m *OrderedMap) Get(key string) (string, bool) {
	if m == nil || m.values == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key. An existing key keeps its position, a new key is appended.
// It reports whether the mapping changed.
func (m *OrderedMap) Set(key, value string) bool {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if old, ok := m.values[key]; ok {
		if old == value {
			return false
		}
		m.values[key] = value
		return true
	}
	m.keys = append(m.keys, key)
	m.values[key] = value
	return true
}

// Delete removes key, keeping the relative order of the others.
func (m *OrderedMap) Delete(key string) bool {
	if m == nil || m.values == nil {
		return false
	}
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns a copy of the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Entries returns the entries in insertion order.
func (m *OrderedMap) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Entry{Key: k, Value: m.values[k]})
	}
	return out
}

// Clone returns an independent copy.
func (m *OrderedMap) Clone() *OrderedMap {
	return NewOrderedMap(m.Entries()...)
}

// Merge sets every entry of other into m, in other's order.
func (m *OrderedMap) Merge(other *OrderedMap) {
	for _, e := range other.Entries() {
		m.Set(e.Key, e.Value)
	}
}

// MarshalYAML encodes the map as a YAML mapping node in insertion order.
func (m *OrderedMap) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range m.Entries() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Value},
		)
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping of scalars, keeping document order.
func (m *OrderedMap) UnmarshalYAML(value *yaml.Node) error {
	m.keys = nil
	m.values = make(map[string]string)

	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping, got %s", value.Line, kindName(value.Kind))
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: mapping entries must be scalars", k.Line)
		}
		m.Set(k.Value, v.Value)
	}
	return nil
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
