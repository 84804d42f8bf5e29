package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// JSONLStore persists collections as line-delimited JSON records under
// logical paths relative to a data root. Every mutation is crash-safe:
// content is written to a temporary sibling and moved into place with a
// single rename, so a file always holds either the old content or the new
// content, never a truncated mix.
//
// The store does not support concurrent writers to the same path; callers
// serialize access per logical path.
type JSONLStore struct {
	root   string
	logger *slog.Logger
}

// NewJSONLStore creates the store, ensuring the data root exists.
func NewJSONLStore(root string, logger *slog.Logger) (*JSONLStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}
	return &JSONLStore{root: root, logger: logger}, nil
}

// Root returns the data root directory.
func (s *JSONLStore) Root() string {
	return s.root
}

func (s *JSONLStore) resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(s.root, rel)
}

// atomicWrite writes content to a temp sibling, then renames it over the
// target. If the temp write fails the target is untouched.
func (s *JSONLStore) atomicWrite(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}

	return nil
}

func encodeLines(items []map[string]any) ([]byte, error) {
	if len(items) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

// Append reads existing records (if any), concatenates the new ones, and
// rewrites the whole file atomically. This is read-modify-write, not a true
// append, which is what makes the atomicity guarantee possible.
func (s *JSONLStore) Append(rel string, items []map[string]any) error {
	if len(items) == 0 {
		return nil
	}

	existing, err := s.ReadAll(rel)
	if err != nil {
		return fmt.Errorf("read existing %s: %w", rel, err)
	}

	content, err := encodeLines(append(existing, items...))
	if err != nil {
		return err
	}

	return s.atomicWrite(s.resolve(rel), content)
}

// Write atomically overwrites the file with the given records.
func (s *JSONLStore) Write(rel string, items []map[string]any) error {
	content, err := encodeLines(items)
	if err != nil {
		return err
	}
	return s.atomicWrite(s.resolve(rel), content)
}

// ReadAll returns every record in the file. A missing file yields an empty
// collection. Malformed lines are skipped and logged so one corrupt record
// never blocks the rest.
func (s *JSONLStore) ReadAll(rel string) ([]map[string]any, error) {
	raw, err := os.ReadFile(s.resolve(rel))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}

	var items []map[string]any
	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var item map[string]any
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping malformed line", "path", rel, "line", i+1, "error", err)
			}
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// RemoveByID filters out records whose named field equals idValue and
// rewrites the file atomically. Reports whether anything was removed.
func (s *JSONLStore) RemoveByID(rel, idField, idValue string) (bool, error) {
	items, err := s.ReadAll(rel)
	if err != nil {
		return false, err
	}

	remaining := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if fmt.Sprintf("%v", item[idField]) == idValue {
			continue
		}
		remaining = append(remaining, item)
	}

	if len(remaining) == len(items) {
		return false, nil
	}

	if err := s.Write(rel, remaining); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateField locates the record whose idField equals idValue, sets one
// field, and rewrites atomically. Reports whether an update occurred.
func (s *JSONLStore) UpdateField(rel, idField, idValue, field string, value any) (bool, error) {
	items, err := s.ReadAll(rel)
	if err != nil {
		return false, err
	}

	updated := false
	for _, item := range items {
		if fmt.Sprintf("%v", item[idField]) == idValue {
			item[field] = value
			updated = true
			break
		}
	}

	if !updated {
		return false, nil
	}

	if err := s.Write(rel, items); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the file for the given logical path if it exists.
func (s *JSONLStore) Remove(rel string) error {
	err := os.Remove(s.resolve(rel))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", rel, err)
	}
	return nil
}

// Decode unmarshals raw records into typed values, skipping records that do
// not fit the target shape.
func Decode[T any](items []map[string]any, logger *slog.Logger) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			if logger != nil {
				logger.Warn("skipping record of unexpected shape", "error", err)
			}
			continue
		}
		out = append(out, v)
	}
	return out
}

// Encode marshals typed values into the raw record form the store accepts.
func Encode[T any](items []T) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for _, v := range items {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("normalize record: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
