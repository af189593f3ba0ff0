package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"flowerlab/registry"
)

const irisSample = `5.1,3.5,1.4,0.2,Iris-setosa
4.9,3.0,1.4,0.2,Iris-setosa
7.0,3.2,4.7,1.4,Iris-versicolor
6.4,3.2,4.5,1.5,Iris-versicolor
6.3,3.3,6.0,2.5,Iris-virginica
5.8,2.7,5.1,1.9,Iris-virginica

`

func csvServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLoadFromURL(t *testing.T) {
	server := csvServer(t, irisSample)
	loader := NewLoader(server.Client(), nil, "", nil)

	table, err := loader.LoadFromURL(context.Background(), server.URL+"/iris.data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 6 {
		t.Fatalf("expected 6 rows, got %d", table.Len())
	}
	if strings.Join(table.Columns, ",") != "0,1,2,3,4" {
		t.Fatalf("expected positional columns, got %v", table.Columns)
	}
	if table.Rows[0][0] != 5.1 {
		t.Fatalf("expected numeric cell, got %#v", table.Rows[0][0])
	}
	if table.Rows[0][4] != "Iris-setosa" {
		t.Fatalf("expected string label, got %#v", table.Rows[0][4])
	}
}

func TestLoadNamed(t *testing.T) {
	server := csvServer(t, irisSample)
	loader := NewLoader(server.Client(), nil, "", nil)

	table, err := loader.LoadNamed(context.Background(), server.URL+"/iris.data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Columns[4] != "species" {
		t.Fatalf("expected Iris column names, got %v", table.Columns)
	}

	wide := csvServer(t, "1,2,3\n")
	if _, err := NewLoader(wide.Client(), nil, "", nil).LoadNamed(context.Background(), wide.URL); !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad for wrong width, got %v", err)
	}
}

func TestReadCSVMissingAndMixed(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("1,a,\n2,NA,x\n3\n"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %v", table.Columns)
	}
	if table.Rows[0][2] != nil || table.Rows[1][1] != nil {
		t.Fatalf("expected missing cells to be nil: %v", table.Rows)
	}
	if table.Rows[2][1] != nil || table.Rows[2][2] != nil {
		t.Fatalf("expected short row to be padded: %v", table.Rows[2])
	}
	if table.Rows[1][2] != "x" || table.Rows[0][0] != 1.0 {
		t.Fatalf("unexpected cell types: %v", table.Rows)
	}
}

func TestReadCSVHeader(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("Id,Species\n1,setosa\n"), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Columns[1] != "Species" || table.Len() != 1 {
		t.Fatalf("unexpected table %+v", table)
	}
}

func TestLoadDatasetRouting(t *testing.T) {
	server := csvServer(t, irisSample)
	dir := t.TempDir()
	regPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(regPath, []byte(`{"iris": {"name": "iris", "url": "`+server.URL+`/iris.data"}}`), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	loader := NewLoader(server.Client(), registry.NewStore(regPath, nil), "", nil)
	ctx := context.Background()

	table, err := loader.LoadDataset(ctx, LoadRequest{DatasetName: "iris", URL: server.URL + "/missing.csv"})
	if err != nil {
		t.Fatalf("expected name to win over url: %v", err)
	}
	if table.Len() != 6 {
		t.Fatalf("expected 6 rows, got %d", table.Len())
	}

	if _, err := loader.LoadDataset(ctx, LoadRequest{DatasetName: "unknown"}); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := loader.LoadDataset(ctx, LoadRequest{}); !errors.Is(err, ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
	if _, err := loader.LoadDataset(ctx, LoadRequest{URL: server.URL + "/missing.csv"}); !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad for 404, got %v", err)
	}
	if _, err := loader.LoadDataset(ctx, LoadRequest{URL: server.URL, Encoding: "no-such-charset"}); !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad for unknown encoding, got %v", err)
	}
}

func TestLoadDatasetSchema(t *testing.T) {
	server := csvServer(t, irisSample)
	loader := NewLoader(server.Client(), nil, "", nil)
	ctx := context.Background()

	table, err := loader.LoadDataset(ctx, LoadRequest{URL: server.URL + "/iris.data", Schema: SchemaIris})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Columns[4] != "species" {
		t.Fatalf("expected iris column names, got %v", table.Columns)
	}
	if _, err := loader.LoadDataset(ctx, LoadRequest{URL: server.URL + "/iris.data", Schema: "wine"}); !errors.Is(err, ErrUnknownSchema) {
		t.Fatalf("expected ErrUnknownSchema, got %v", err)
	}
}

func TestLoadLocalFileWithEncoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin1.csv")
	// "Bégonia" in ISO-8859-1
	if err := os.WriteFile(path, []byte("1,B\xe9gonia\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loader := NewLoader(nil, nil, "latin1", nil)
	table, err := loader.LoadFromURL(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Rows[0][1] != "Bégonia" {
		t.Fatalf("expected decoded text, got %q", table.Rows[0][1])
	}
}
