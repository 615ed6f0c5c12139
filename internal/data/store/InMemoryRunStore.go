package store

import (
	"context"
	"sync"

	"github.com/akolanti/docqa/internal/domain/jobModel"
	"github.com/akolanti/docqa/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem RunStore")

type InMemoryRunStore struct {
	mu     sync.RWMutex
	runs   map[string]jobModel.IngestRun
	latest string
}

func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{runs: make(map[string]jobModel.IngestRun)}
}

func (s *InMemoryRunStore) SaveRun(ctx context.Context, run jobModel.IngestRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.Id] = run
	s.latest = run.Id
	inMemLogger.Debug("Saved run", "runId", run.Id, "status", run.Status)
	return nil
}

func (s *InMemoryRunStore) GetRun(ctx context.Context, runId string) (jobModel.IngestRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, found := s.runs[runId]
	return run, found
}

func (s *InMemoryRunStore) LatestRun(ctx context.Context) (jobModel.IngestRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == "" {
		return jobModel.IngestRun{}, false
	}
	run, found := s.runs[s.latest]
	return run, found
}
