package storage

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"credit-analytics/models"
	"credit-analytics/utils"
)

// DatasetStore holds the current dataset. A successful load replaces it
// wholesale; readers always see either the old or the new dataset, never a mix.
type DatasetStore struct {
	current    atomic.Pointer[models.Dataset]
	generation atomic.Uint64

	mu          sync.Mutex
	subscribers []func(*models.Dataset)

	logger *slog.Logger
}

// NewDatasetStore creates an empty store.
func NewDatasetStore(logger *slog.Logger) *DatasetStore {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &DatasetStore{logger: logger.With(slog.String("component", "dataset_store"))}
}

// Replace makes ds the current dataset, stamping it with the next generation,
// then notifies subscribers in registration order. ds must not be shared with
// another store.
func (s *DatasetStore) Replace(ds *models.Dataset) *models.Dataset {
	s.mu.Lock()
	ds.Generation = s.generation.Add(1)
	prev := s.current.Swap(ds)
	subs := append([]func(*models.Dataset){}, s.subscribers...)
	s.mu.Unlock()

	attrs := []any{
		slog.String("dataset_id", ds.ID),
		slog.Uint64("generation", ds.Generation),
		slog.Int("records", ds.Len()),
	}
	if prev != nil {
		attrs = append(attrs, slog.String("replaced", prev.ID))
		if prev.Fingerprint == ds.Fingerprint {
			attrs = append(attrs, slog.Bool("same_content", true))
		}
	}
	s.logger.Info("dataset replaced", attrs...)

	for _, fn := range subs {
		fn(ds)
	}
	return ds
}

// Current returns the current dataset, if one has been loaded.
func (s *DatasetStore) Current() (*models.Dataset, bool) {
	ds := s.current.Load()
	return ds, ds != nil
}

// Generation returns the generation of the current dataset, 0 before any load.
func (s *DatasetStore) Generation() uint64 {
	if ds := s.current.Load(); ds != nil {
		return ds.Generation
	}
	return 0
}

// IsCurrent reports whether generation still names the current dataset.
func (s *DatasetStore) IsCurrent(generation uint64) bool {
	return generation != 0 && generation == s.Generation()
}

// Subscribe registers fn to be called after every Replace.
func (s *DatasetStore) Subscribe(fn func(*models.Dataset)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}
