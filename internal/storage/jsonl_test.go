package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *JSONLStore {
	t.Helper()
	store, err := NewJSONLStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewJSONLStore: %v", err)
	}
	return store
}

func TestAppendAndReadAll(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	if err := store.Append("items.jsonl", []map[string]any{{"id": "1"}, {"id": "2"}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append("items.jsonl", []map[string]any{{"id": "3"}}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	items, err := store.ReadAll("items.jsonl")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[2]["id"] != "3" {
		t.Fatalf("got %v last, want id 3", items[2])
	}
}

func TestReadAllMissingFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	items, err := store.ReadAll("absent.jsonl")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("got %d items, want none", len(items))
	}
}

func TestReadAllSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	path := filepath.Join(store.Root(), "items.jsonl")
	content := `{"id":"1"}` + "\nnot json\n" + `{"id":"2"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	items, err := store.ReadAll("items.jsonl")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 with the corrupt line skipped", len(items))
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	if err := store.Write("items.jsonl", []map[string]any{{"id": "1"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file %s left behind", e.Name())
		}
	}
}

func TestRemoveByID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seed := []map[string]any{{"id": "1"}, {"id": "2"}, {"id": "3"}}
	if err := store.Write("items.jsonl", seed); err != nil {
		t.Fatalf("Write: %v", err)
	}

	removed, err := store.RemoveByID("items.jsonl", "id", "2")
	if err != nil {
		t.Fatalf("RemoveByID: %v", err)
	}
	if !removed {
		t.Fatal("expected a removal")
	}

	items, _ := store.ReadAll("items.jsonl")
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	removed, err = store.RemoveByID("items.jsonl", "id", "missing")
	if err != nil {
		t.Fatalf("RemoveByID: %v", err)
	}
	if removed {
		t.Fatal("removal reported for a missing id")
	}
}

func TestUpdateField(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.Write("items.jsonl", []map[string]any{{"id": "1", "cursor": nil}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	updated, err := store.UpdateField("items.jsonl", "id", "1", "cursor", "2026-01-02T00:00:00Z")
	if err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	if !updated {
		t.Fatal("expected an update")
	}

	items, _ := store.ReadAll("items.jsonl")
	if items[0]["cursor"] != "2026-01-02T00:00:00Z" {
		t.Fatalf("got cursor %v, want the new value", items[0]["cursor"])
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	type pair struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	rows, err := Encode([]pair{{Name: "a", Count: 2}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out := Decode[pair](rows, testLogger())
	if len(out) != 1 || out[0].Name != "a" || out[0].Count != 2 {
		t.Fatalf("got %+v, want the original value back", out)
	}
}
