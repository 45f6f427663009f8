package domain

import (
	"encoding/json"
	"fmt"
)

// resultSetVersion is the serialized shape version. Bump it when the entry
// layout changes and teach UnmarshalJSON the migration.
const resultSetVersion = 1

// ResultSet is an ordered mapping from model display key to ModelResult.
// Insertion order is completion order and survives serialization.
// The zero value is an empty, ready-to-use set.
type ResultSet struct {
	keys    []string
	entries map[string]ModelResult
}

// Set inserts or replaces the result for key. A new key is appended to the
// iteration order; replacing an existing key keeps its position.
func (rs *ResultSet) Set(key string, result ModelResult) {
	if rs.entries == nil {
		rs.entries = make(map[string]ModelResult)
	}
	if _, exists := rs.entries[key]; !exists {
		rs.keys = append(rs.keys, key)
	}
	rs.entries[key] = result
}

// Get returns the result stored under key.
func (rs ResultSet) Get(key string) (ModelResult, bool) {
	result, ok := rs.entries[key]
	return result, ok
}

// Len returns the number of entries.
func (rs ResultSet) Len() int {
	return len(rs.keys)
}

// Keys returns the display keys in insertion order.
func (rs ResultSet) Keys() []string {
	keys := make([]string, len(rs.keys))
	copy(keys, rs.keys)
	return keys
}

type resultSetEntry struct {
	Model  string      `json:"model"`
	Result ModelResult `json:"result"`
}

type resultSetDoc struct {
	Version int              `json:"version"`
	Entries []resultSetEntry `json:"entries"`
}

// MarshalJSON serializes the set as a versioned entry list so the on-disk
// shape stays explicit and ordered.
func (rs ResultSet) MarshalJSON() ([]byte, error) {
	doc := resultSetDoc{
		Version: resultSetVersion,
		Entries: make([]resultSetEntry, 0, len(rs.keys)),
	}
	for _, key := range rs.keys {
		doc.Entries = append(doc.Entries, resultSetEntry{Model: key, Result: rs.entries[key]})
	}
	return json.Marshal(doc)
}

// UnmarshalJSON restores a set serialized by MarshalJSON.
func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	var doc resultSetDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode result set: %w", err)
	}
	if doc.Version != resultSetVersion {
		return fmt.Errorf("unsupported result set version: %d", doc.Version)
	}

	rs.keys = nil
	rs.entries = make(map[string]ModelResult, len(doc.Entries))
	for _, entry := range doc.Entries {
		rs.Set(entry.Model, entry.Result)
	}
	return nil
}
