// Package store provides Redis-backed persistence for evaluation run history.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ragbench/rag-bench/internal/pkg/errors"
	"github.com/ragbench/rag-bench/internal/runner"
)

const (
	reportKeyPrefix = "ragbench:run:"
	indexKey        = "ragbench:runs"
)

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Dataset     string    `json:"dataset"`
	Variant     string    `json:"variant"`
	StartedAt   time.Time `json:"started_at"`
	Precision   float64   `json:"precision"`
	Recall      float64   `json:"recall"`
	F1          float64   `json:"f1"`
	MRR         float64   `json:"mrr"`
	QueryCount  int       `json:"query_count"`
	FailedCount int       `json:"failed_count"`
}

// RunStore persists evaluation reports to Redis.
type RunStore struct {
	client *redis.Client
	ttl    time.Duration // Retention window for stored runs
}

// NewRunStore creates a Redis-backed run store.
// Returns an error if the connection fails.
func NewRunStore(url string, ttl time.Duration) (*RunStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &RunStore{
		client: client,
		ttl:    ttl,
	}, nil
}

// SaveReport stores a run report and indexes it by start time.
// Runs older than the retention window are pruned from the index.
func (s *RunStore) SaveReport(ctx context.Context, report *runner.Report) error {
	if report == nil || report.RunID == "" {
		return errors.ValidationError("report has no run ID")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "marshaling report", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, reportKeyPrefix+report.RunID, data, s.ttl)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(report.StartedAt.UnixMilli()),
		Member: report.RunID,
	})

	// Drop index entries whose reports have expired
	minScore := time.Now().Add(-s.ttl).UnixMilli()
	pipe.ZRemRangeByScore(ctx, indexKey, "-inf", fmt.Sprintf("%d", minScore))

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(errors.CodeStorageError, "saving report", err)
	}

	return nil
}

// GetReport loads a stored run report by ID.
func (s *RunStore) GetReport(ctx context.Context, runID string) (*runner.Report, error) {
	data, err := s.client.Get(ctx, reportKeyPrefix+runID).Bytes()
	if err == redis.Nil {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("run not found: %s", runID))
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageError, "loading report", err)
	}

	var report runner.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "unmarshaling report", err)
	}

	return &report, nil
}

// ListRuns returns summaries of the most recent runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	ids, err := s.client.ZRevRange(ctx, indexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageError, "listing runs", err)
	}

	summaries := make([]RunSummary, 0, len(ids))
	for _, id := range ids {
		report, err := s.GetReport(ctx, id)
		if err != nil {
			// The report expired but the index entry has not been pruned yet
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		summaries = append(summaries, RunSummary{
			RunID:       report.RunID,
			Dataset:     report.Dataset,
			Variant:     report.Variant,
			StartedAt:   report.StartedAt,
			Precision:   report.Aggregate.Precision,
			Recall:      report.Aggregate.Recall,
			F1:          report.Aggregate.F1,
			MRR:         report.Aggregate.MRR,
			QueryCount:  report.Aggregate.QueryCount,
			FailedCount: report.FailedCount,
		})
	}

	return summaries, nil
}

// DeleteRun removes a stored run and its index entry.
func (s *RunStore) DeleteRun(ctx context.Context, runID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, reportKeyPrefix+runID)
	pipe.ZRem(ctx, indexKey, runID)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(errors.CodeStorageError, "deleting run", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RunStore) Close() error {
	return s.client.Close()
}
