package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
)

// validateIntegrity checks an on-disk index before it is opened.
// Returns nil if the directory is absent or looks healthy.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError reports whether a bleve open error means the index
// files are damaged rather than inaccessible.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}

// openResult reports how an index was opened.
type openResult struct {
	index   bleve.Index
	created bool
	cleared bool
}

// openBleve opens the index at path, creating it when missing. An empty
// path gives an in-memory index. A corrupt index is cleared and recreated;
// the caller must rebuild it from the system of record.
func openBleve(path string) (*openResult, error) {
	m := NewMapping()
	if path == "" {
		idx, err := bleve.NewMemOnly(m)
		if err != nil {
			return nil, apperr.New(apperr.ErrCodeIndexFailed, "failed to create in-memory index", err)
		}
		return &openResult{index: idx, created: true}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.New(apperr.ErrCodeIndexFailed, "failed to create index directory", err)
	}

	res := &openResult{}
	if validErr := validateIntegrity(path); validErr != nil {
		slog.Warn("search_index_corrupted",
			slog.String("path", path),
			slog.String("error", validErr.Error()))
		if err := clearIndex(path, validErr); err != nil {
			return nil, err
		}
		res.cleared = true
	}

	idx, err := bleve.Open(path)
	switch {
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		idx, err = bleve.New(path, m)
		res.created = true
	case err != nil && isCorruptionError(err):
		slog.Warn("search_index_open_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if clearErr := clearIndex(path, err); clearErr != nil {
			return nil, clearErr
		}
		res.cleared = true
		idx, err = bleve.New(path, m)
		res.created = true
	}
	if err != nil {
		return nil, apperr.New(apperr.ErrCodeIndexFailed, fmt.Sprintf("failed to open index at %s", path), err)
	}
	res.index = idx
	return res, nil
}

func clearIndex(path string, cause error) error {
	if err := os.RemoveAll(path); err != nil {
		return apperr.New(apperr.ErrCodeCorruptIndex,
			fmt.Sprintf("index at %s is corrupt and cannot be removed", path), err).
			WithDetail("corruption", cause.Error()).
			WithSuggestion("Delete the index directory manually and run 'invsearch reindex'")
	}
	slog.Info("search_index_cleared",
		slog.String("path", path),
		slog.String("reason", "corruption detected, rebuild required"))
	return nil
}
