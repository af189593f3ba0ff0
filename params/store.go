package params

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

var ErrNotFound = errors.New("parameters not found")

// Store applies the add/update rules on top of a Document. Reads and writes
// are not transactional: concurrent callers can lose updates.
type Store struct {
	doc    Document
	logger *zap.Logger
}

func NewStore(doc Document, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{doc: doc, logger: logger}
}

// Get returns the stored parameters.
func (s *Store) Get(ctx context.Context) (map[string]any, error) {
	values, found, err := s.doc.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return values, nil
}

// Add inserts every key of params not yet stored. The returned map holds one
// message per requested key.
func (s *Store) Add(ctx context.Context, params map[string]any) (map[string]string, error) {
	current, _, err := s.doc.Get(ctx)
	if err != nil {
		return nil, err
	}

	response := make(map[string]string, len(params))
	added := make(map[string]any)
	for key, value := range params {
		if _, ok := current[key]; ok {
			response[key] = fmt.Sprintf("Parameter '%s' already exists. Please update it.", key)
			continue
		}
		added[key] = value
		response[key] = fmt.Sprintf("Parameter '%s' added successfully.", key)
	}

	if err := s.doc.SetMerge(ctx, added); err != nil {
		return nil, err
	}
	if len(added) > 0 {
		s.logger.Info("parameters added", zap.Strings("keys", keys(added)))
	}
	return response, nil
}

// Update overwrites keys that already exist and rejects the others. It
// returns the per-key messages and the document after the write.
func (s *Store) Update(ctx context.Context, params map[string]any) (map[string]string, map[string]any, error) {
	current, _, err := s.doc.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		current = make(map[string]any)
	}

	response := make(map[string]string, len(params))
	changed := make(map[string]any)
	for key, value := range params {
		if _, ok := current[key]; !ok {
			response[key] = fmt.Sprintf("Parameter '%s' does not exist. Use add instead.", key)
			continue
		}
		changed[key] = value
		current[key] = value
		response[key] = fmt.Sprintf("Parameter '%s' updated successfully.", key)
	}

	if err := s.doc.SetMerge(ctx, changed); err != nil {
		return nil, nil, err
	}
	if len(changed) > 0 {
		s.logger.Info("parameters updated", zap.Strings("keys", keys(changed)))
	}
	return response, current, nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
