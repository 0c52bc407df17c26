package migration

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"github.com/sirupsen/logrus"
)

// DefaultMaxConsecutiveMisses stops the id scan after this many ids in a row
// come back not-found. A termination heuristic, not a completeness guarantee:
// an administration with a gap larger than this will lose the ids behind it.
const DefaultMaxConsecutiveMisses = 50

const scanProgressInterval = 50

// ScanProgress is reported every scanProgressInterval ids so a scan across
// tens of thousands of ids shows liveness.
type ScanProgress struct {
	CurrentId    int
	Found        int
	NotFound     int
	TotalChecked int
}

// ScanResult summarizes one cache population pass.
type ScanResult struct {
	Cached    int
	Skipped   int
	NotFound  int
	StoppedAt int
}

// mutationFetcher is the slice of the API client the scanner needs.
type mutationFetcher interface {
	FetchMutationDetail(ctx context.Context, mutationId int) (*eboekhouden.Mutation, error)
}

type CacheScanner struct {
	fetcher              mutationFetcher
	logger               *logrus.Logger
	maxConsecutiveMisses int
	onProgress           func(ScanProgress)
}

func NewCacheScanner(fetcher mutationFetcher, logger *logrus.Logger) *CacheScanner {
	return &CacheScanner{
		fetcher:              fetcher,
		logger:               logger,
		maxConsecutiveMisses: DefaultMaxConsecutiveMisses,
	}
}

// OnProgress registers a progress callback.
func (s *CacheScanner) OnProgress(fn func(ScanProgress)) {
	s.onProgress = fn
}

// ScanAndCacheRange walks external mutation ids from startId upward, caching
// each found mutation immediately so a crash mid-scan loses at most the
// in-flight id. Already-cached ids are skipped without a fetch, which makes
// an interrupted scan resumable. The scan stops at maxId, at a run of
// consecutive not-found ids, or when the context is cancelled.
func (s *CacheScanner) ScanAndCacheRange(ctx context.Context, store Store, startId int, maxId int) (*ScanResult, error) {
	cached, err := store.CachedMutationIds(ctx)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{}
	consecutiveMisses := 0

	for id := startId; id <= maxId; id++ {
		if err := ctx.Err(); err != nil {
			result.StoppedAt = id
			return result, err
		}

		if _, ok := cached[strconv.Itoa(id)]; ok {
			result.Skipped++
			consecutiveMisses = 0
			continue
		}

		mutation, err := s.fetcher.FetchMutationDetail(ctx, id)
		if err != nil {
			if errors.Is(err, eboekhouden.ErrMutationNotFound) {
				result.NotFound++
				consecutiveMisses++
				if consecutiveMisses >= s.maxConsecutiveMisses {
					s.logger.WithFields(logrus.Fields{
						"stopped_at": id,
						"cached":     result.Cached,
					}).Info("mutation scan stopped after consecutive not-found run")
					result.StoppedAt = id
					return result, nil
				}
				continue
			}
			result.StoppedAt = id
			return result, err
		}
		consecutiveMisses = 0

		payload, err := json.Marshal(mutation)
		if err != nil {
			result.StoppedAt = id
			return result, err
		}
		mutationType := int(mutation.Type)
		mutationDate := mutation.Date
		entry := &models.MutationCacheEntry{
			MutationId:   strconv.Itoa(mutation.ID),
			MutationType: mutationType,
			MutationDate: &mutationDate,
			MutationData: payload,
		}
		if err := store.CacheMutation(ctx, entry); err != nil {
			result.StoppedAt = id
			return result, err
		}
		result.Cached++

		if s.onProgress != nil && (id-startId+1)%scanProgressInterval == 0 {
			s.onProgress(ScanProgress{
				CurrentId:    id,
				Found:        result.Cached,
				NotFound:     result.NotFound,
				TotalChecked: id - startId + 1,
			})
		}
	}

	result.StoppedAt = maxId
	return result, nil
}

// ParseCachedMutation decodes one cache entry back into a Mutation.
func ParseCachedMutation(entry *models.MutationCacheEntry) (*eboekhouden.Mutation, error) {
	var mutation eboekhouden.Mutation
	if err := json.Unmarshal(entry.MutationData, &mutation); err != nil {
		return nil, err
	}
	return &mutation, nil
}
