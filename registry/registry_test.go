package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, content string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewStore(path, nil)
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"), nil)
	if _, err := store.Load(); !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
	if _, err := store.List(); !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing from List, got %v", err)
	}
}

func TestAddToNullFile(t *testing.T) {
	store := newTestStore(t, "null")

	entries, err := store.List()
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty registry, got %v (%v)", entries, err)
	}
	if _, err := store.Add("iris", "http://x/iris.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, err := store.Get("iris")
	if err != nil || entry.URL != "http://x/iris.csv" {
		t.Fatalf("unexpected entry %+v (%v)", entry, err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t, `{"iris":{"name":"iris","url":"http://x/iris.csv"},"wine":{"name":"wine","url":"http://x/wine.csv"}}`)

	before, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Save(before); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("round trip changed content: %v != %v", before, after)
	}

	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "\n    \"iris\"") {
		t.Fatalf("expected four-space indentation, got %s", raw)
	}
}

func TestAddGetScenario(t *testing.T) {
	store := newTestStore(t, `{}`)

	entries, err := store.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty list, got %v", entries)
	}

	if _, err := store.Add("iris", "http://x/iris.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string]map[string]string
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatal(err)
	}
	want := map[string]map[string]string{"iris": {"name": "iris", "url": "http://x/iris.csv"}}
	if !reflect.DeepEqual(onDisk, want) {
		t.Fatalf("unexpected file content: %v", onDisk)
	}

	entry, err := store.Get("iris")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.URL != "http://x/iris.csv" {
		t.Fatalf("unexpected url: %s", entry.URL)
	}

	if _, err := store.Add("iris", "http://y/other.csv"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	entry, _ = store.Get("iris")
	if entry.URL != "http://x/iris.csv" {
		t.Fatalf("conflicting add mutated the store: %s", entry.URL)
	}
}

func TestUpdate(t *testing.T) {
	store := newTestStore(t, `{"iris":{"name":"iris","url":"http://x/iris.csv"}}`)

	if _, err := store.Update("wine", "http://x/wine.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	cfg, _ := store.Load()
	if _, ok := cfg["wine"]; ok {
		t.Fatal("update of absent name must not insert it")
	}

	entry, err := store.Update("iris", "http://y/iris.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.URL != "http://y/iris.csv" || entry.Name != "iris" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	got, _ := store.Get("iris")
	if got.URL != "http://y/iris.csv" {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t, `{}`)
	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSorted(t *testing.T) {
	store := newTestStore(t, `{"b":{"name":"b","url":"u2"},"a":{"name":"a","url":"u1"}}`)
	entries, err := store.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Entry{{Name: "a", URL: "u1"}, {Name: "b", URL: "u2"}}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("got %v, want %v", entries, want)
	}
}
