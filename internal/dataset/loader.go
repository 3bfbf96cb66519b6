package dataset

import (
	"os"
	"sync"
	"time"

	"github.com/ragbench/rag-bench/internal/pkg/errors"
)

// Loader reads datasets from disk and memoizes them keyed by
// (path, last modified time). A touched file is re-read on next load;
// an unchanged file is served from memory. Safe for concurrent use.
type Loader struct {
	mu    sync.RWMutex
	cache map[string]cachedDataset
}

type cachedDataset struct {
	modTime time.Time
	dataset *Dataset
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{
		cache: make(map[string]cachedDataset),
	}
}

// Load returns the dataset at path, reading it from disk only when the
// file changed since the previous load.
func (l *Loader) Load(path string) (*Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.DatasetError("reading dataset file", err)
	}

	l.mu.RLock()
	entry, ok := l.cache[path]
	l.mu.RUnlock()
	if ok && entry.modTime.Equal(info.ModTime()) {
		return entry.dataset, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.DatasetError("reading dataset file", err)
	}

	ds, err := Parse(data, path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[path] = cachedDataset{modTime: info.ModTime(), dataset: ds}
	l.mu.Unlock()

	return ds, nil
}

// Invalidate drops the cached entry for path, if any.
func (l *Loader) Invalidate(path string) {
	l.mu.Lock()
	delete(l.cache, path)
	l.mu.Unlock()
}
