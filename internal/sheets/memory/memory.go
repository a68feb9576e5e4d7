package memory

import (
	"context"
	"fmt"
	"sync"

	"housesplit/internal/core"
	ports "housesplit/internal/sheets"
)

var _ ports.SummaryExporter = (*Store)(nil)

// Store keeps the latest exported summary per month in memory.
type Store struct {
	mu      sync.Mutex
	exports int
	months  map[core.MonthKey]core.MonthSummary
}

func New() *Store {
	return &Store{months: map[core.MonthKey]core.MonthSummary{}}
}

// ExportMonth stores the summary and returns a synthetic reference.
func (s *Store) ExportMonth(_ context.Context, summary core.MonthSummary) (string, error) {
	if _, err := core.ParseMonthKey(string(summary.MonthKey)); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports++
	s.months[summary.MonthKey] = summary
	return fmt.Sprintf("mem:%s:%d", summary.MonthKey, s.exports), nil
}

// Get returns the last summary exported for month.
func (s *Store) Get(month core.MonthKey) (core.MonthSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.months[month]
	return sum, ok
}

// Exports counts calls to ExportMonth that succeeded.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}
