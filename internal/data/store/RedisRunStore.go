package store

import (
	"context"
	"encoding/json"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/data/redisStore"
	"github.com/akolanti/docqa/internal/domain/jobModel"
	"github.com/akolanti/docqa/pkg/logger_i"
)

const (
	runKeyPrefix = "ingest_run:"
	latestRunKey = "ingest_run:latest"
)

// RedisRunStore keeps ingest runs as JSON values with a TTL.
type RedisRunStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func NewRedisRunStore(store *redisStore.Store) *RedisRunStore {
	return &RedisRunStore{
		store:  store,
		logger: logger_i.NewLogger("RunStore"),
	}
}

func (s *RedisRunStore) SaveRun(ctx context.Context, run jobModel.IngestRun) error {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("runId", run.Id)
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, runKeyPrefix+run.Id, data, config.RedisRunStoreTTL); err != nil {
		log.Error("Could not save run", "error", err)
		return err
	}
	if err := s.store.Set(ctx, latestRunKey, run.Id, config.RedisRunStoreTTL); err != nil {
		return err
	}
	log.Debug("Saved run to Redis", "status", run.Status)
	return nil
}

func (s *RedisRunStore) GetRun(ctx context.Context, runId string) (jobModel.IngestRun, bool) {
	var run jobModel.IngestRun
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("runId", runId)

	val, err := s.store.Get(ctx, runKeyPrefix+runId)
	if s.store.IsNil(err) {
		return run, false
	} else if err != nil {
		log.Error("Could not read run", "error", err)
		return run, false
	}
	if err := json.Unmarshal([]byte(val), &run); err != nil {
		log.Error("Stored run is corrupt", "error", err)
		return run, false
	}
	return run, true
}

func (s *RedisRunStore) LatestRun(ctx context.Context) (jobModel.IngestRun, bool) {
	id, err := s.store.Get(ctx, latestRunKey)
	if err != nil {
		return jobModel.IngestRun{}, false
	}
	return s.GetRun(ctx, id)
}
