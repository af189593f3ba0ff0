package pipeline

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"flowerlab/config"
)

// KaggleClient downloads public Kaggle datasets and reads their first CSV.
type KaggleClient struct {
	baseURL     string
	credentials string
	dataDir     string
	client      *http.Client
	logger      *zap.Logger
}

type kaggleCredentials struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

func NewKaggleClient(cfg config.KaggleConfig, dataDir string, client *http.Client, logger *zap.Logger) *KaggleClient {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KaggleClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		credentials: cfg.Credentials,
		dataDir:     dataDir,
		client:      client,
		logger:      logger,
	}
}

// DatasetSpec returns "owner/name" and "name" from a dataset page URL such as
// https://www.kaggle.com/datasets/uciml/iris.
func DatasetSpec(datasetURL string) (string, string, error) {
	parts := strings.Split(strings.TrimRight(datasetURL, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-1] == "" || parts[len(parts)-2] == "" {
		return "", "", fmt.Errorf("cannot derive a dataset from %q", datasetURL)
	}
	owner, name := parts[len(parts)-2], parts[len(parts)-1]
	for _, segment := range []string{owner, name} {
		if segment == "." || segment == ".." || strings.ContainsAny(segment, `/\`) {
			return "", "", fmt.Errorf("invalid dataset segment %q in %q", segment, datasetURL)
		}
	}
	return owner + "/" + name, name, nil
}

// Download fetches the dataset archive, extracts it under dataDir/name and
// returns the first CSV file, read with a header row.
func (k *KaggleClient) Download(ctx context.Context, datasetURL string) (*Table, error) {
	spec, name, err := DatasetSpec(datasetURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	creds, err := k.loadCredentials()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	destination := filepath.Join(k.dataDir, name)
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	k.logger.Info("downloading dataset", zap.String("dataset", spec), zap.String("destination", destination))
	archive, err := k.fetchArchive(ctx, spec, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer os.Remove(archive)

	if err := extractZip(archive, destination); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	csvPath, err := firstCSV(destination)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer file.Close()

	t, err := ReadCSV(file, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if t.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	k.logger.Info("dataset downloaded", zap.String("file", csvPath), zap.Int("rows", t.Len()))
	return t, nil
}

func (k *KaggleClient) loadCredentials() (kaggleCredentials, error) {
	var creds kaggleCredentials
	if k.credentials != "" {
		data, err := os.ReadFile(k.credentials)
		if err == nil {
			if err := json.Unmarshal(data, &creds); err != nil {
				return creds, fmt.Errorf("parse %s: %w", k.credentials, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return creds, err
		}
	}
	if creds.Username == "" {
		creds.Username = os.Getenv("KAGGLE_USERNAME")
	}
	if creds.Key == "" {
		creds.Key = os.Getenv("KAGGLE_KEY")
	}
	if creds.Username == "" || creds.Key == "" {
		return creds, errors.New("could not find kaggle credentials")
	}
	return creds, nil
}

func (k *KaggleClient) fetchArchive(ctx context.Context, spec string, creds kaggleCredentials) (string, error) {
	endpoint := fmt.Sprintf("%s/datasets/download/%s", k.baseURL, spec)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(creds.Username, creds.Key)

	resp, err := k.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("kaggle returned %d for %s", resp.StatusCode, spec)
	}

	tmp, err := os.CreateTemp("", "kaggle-*.zip")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// extractZip unpacks archive into dir. Entries escaping dir are rejected.
func extractZip(archive, dir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	for _, f := range r.File {
		target := filepath.Join(root, f.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path in archive: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// firstCSV returns the lexically first *.csv directly under dir.
func firstCSV(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrNoCSV
	}
	sort.Strings(matches)
	return matches[0], nil
}
