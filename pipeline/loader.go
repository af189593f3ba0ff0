package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"flowerlab/registry"
)

var (
	ErrLoad          = errors.New("an error occurred while loading the dataset")
	ErrMissingSource = errors.New("either 'url' or 'dataset_name' must be provided")
	ErrNoCSV         = errors.New("no CSV file found in the downloaded dataset")
	ErrEmptyDataset  = errors.New("the CSV file is empty")
	ErrUnknownSchema = errors.New("unknown schema")
)

// IrisColumns is the fixed five-column schema every processed dataset uses.
var IrisColumns = []string{"sepal_length", "sepal_width", "petal_length", "petal_width", "species"}

// naValues are the cell contents read as missing.
var naValues = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// SchemaIris names the columns of a loaded table after IrisColumns.
const SchemaIris = "iris"

// LoadRequest selects a dataset by URL or by registered name. The name wins
// when both are set. Schema is empty (positional column names) or SchemaIris.
type LoadRequest struct {
	URL         string
	DatasetName string
	Encoding    string
	Schema      string
}

// Loader fetches headerless CSV files over HTTP or from local paths.
type Loader struct {
	client   *http.Client
	registry *registry.Store
	encoding string
	logger   *zap.Logger
}

func NewLoader(client *http.Client, reg *registry.Store, encoding string, logger *zap.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{client: client, registry: reg, encoding: encoding, logger: logger}
}

// LoadFromURL reads a CSV without a header. Columns are named by position.
func (l *Loader) LoadFromURL(ctx context.Context, source string) (*Table, error) {
	return l.load(ctx, source, l.encoding)
}

// LoadNamed reads a CSV without a header and names its columns after the
// Iris schema.
func (l *Loader) LoadNamed(ctx context.Context, source string) (*Table, error) {
	t, err := l.load(ctx, source, l.encoding)
	if err != nil {
		return nil, err
	}
	return applyIrisSchema(t)
}

func applyIrisSchema(t *Table) (*Table, error) {
	if len(t.Columns) != len(IrisColumns) {
		return nil, fmt.Errorf("%w: expected %d columns, got %d", ErrLoad, len(IrisColumns), len(t.Columns))
	}
	t.Columns = append([]string(nil), IrisColumns...)
	return t, nil
}

// LoadDataset resolves req against the registry and loads the result.
func (l *Loader) LoadDataset(ctx context.Context, req LoadRequest) (*Table, error) {
	if req.Schema != "" && req.Schema != SchemaIris {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, req.Schema)
	}
	source := req.URL
	if req.DatasetName != "" {
		if l.registry == nil {
			return nil, fmt.Errorf("%w: '%s'", registry.ErrNotFound, req.DatasetName)
		}
		entry, err := l.registry.Get(req.DatasetName)
		if err != nil {
			return nil, err
		}
		source = entry.URL
	}
	if source == "" {
		return nil, ErrMissingSource
	}

	encoding := req.Encoding
	if encoding == "" {
		encoding = l.encoding
	}
	t, err := l.load(ctx, source, encoding)
	if err != nil {
		return nil, err
	}
	if req.Schema == SchemaIris {
		return applyIrisSchema(t)
	}
	return t, nil
}

func (l *Loader) load(ctx context.Context, source, encoding string) (*Table, error) {
	body, err := l.open(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer body.Close()

	reader, err := decodeCharset(body, encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	t, err := ReadCSV(reader, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	l.logger.Info("dataset loaded",
		zap.String("source", source),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns)))
	return t, nil
}

func (l *Loader) open(ctx context.Context, source string) (io.ReadCloser, error) {
	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP Error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return resp.Body, nil
	}
	if err == nil && u.Scheme == "file" {
		source = u.Path
	}
	return os.Open(source)
}

// decodeCharset wraps r so it yields UTF-8. Names follow the WHATWG encoding
// labels ("latin1", "gbk", "shift_jis", ...).
func decodeCharset(r io.Reader, name string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// ReadCSV parses r into a table. Without a header, columns are named "0",
// "1", ...; rows shorter than the widest row are padded with nil. A column
// whose non-missing cells all parse as numbers holds float64 values,
// otherwise strings.
func ReadCSV(r io.Reader, header bool) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	t := &Table{}
	if header {
		if len(records) == 0 {
			return t, nil
		}
		t.Columns = append([]string(nil), records[0]...)
		records = records[1:]
	} else {
		width := 0
		for _, rec := range records {
			if len(rec) > width {
				width = len(rec)
			}
		}
		t.Columns = make([]string, width)
		for i := range t.Columns {
			t.Columns[i] = strconv.Itoa(i)
		}
	}

	width := len(t.Columns)
	cells := make([][]string, len(records))
	for i, rec := range records {
		if len(rec) > width {
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", i+1, width, len(rec))
		}
		cells[i] = rec
	}

	numeric := make([]bool, width)
	for j := range numeric {
		numeric[j] = true
		for _, rec := range cells {
			if j >= len(rec) || naValues[rec[j]] {
				continue
			}
			if _, ok := parseNumber(rec[j]); !ok {
				numeric[j] = false
				break
			}
		}
	}

	t.Rows = make([][]any, len(cells))
	for i, rec := range cells {
		row := make([]any, width)
		for j := range row {
			if j >= len(rec) || naValues[rec[j]] {
				continue
			}
			if numeric[j] {
				row[j], _ = parseNumber(rec[j])
			} else {
				row[j] = rec[j]
			}
		}
		t.Rows[i] = row
	}
	return t, nil
}

// parseNumber accepts finite decimal numbers only; JSON has no infinities.
func parseNumber(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
