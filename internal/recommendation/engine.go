package recommendation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrBatchRunning = errors.New("recommendation batch already running")

const clickViewSource = "reco_click"

// Engine drives the whole pipeline: profile building, candidate generation,
// scoring, persistence and the nightly batch. It is safe for concurrent use;
// only the batch itself is single-flight guarded.
type Engine struct {
	repo       Repository
	cache      *RecoCache
	profiles   *ProfileBuilder
	candidates *CandidateGenerator
	scorer     *Scorer
	cfg        RecoConfig

	mu      sync.Mutex
	running bool
}

// NewEngine wires the engine. cache may be nil; the read path then goes
// straight to the store.
func NewEngine(repo Repository, cache *RecoCache, cfg RecoConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		repo:       repo,
		cache:      cache,
		profiles:   NewProfileBuilder(repo),
		candidates: NewCandidateGenerator(repo),
		scorer:     NewScorer(repo),
		cfg:        cfg,
	}, nil
}

// Profiles exposes the profile builder for callers that only need taste
// profiles (e.g. the admin UI).
func (e *Engine) Profiles() *ProfileBuilder {
	return e.profiles
}

// ComputeRecosForUser runs the full per-user pipeline and returns the ranked
// list. Cold-start users get the popularity list instead. An empty result is
// a valid, non-error outcome.
func (e *Engine) ComputeRecosForUser(ctx context.Context, userID int64, city string, override *RecoConfigOverride) ([]*ScoredRecommendation, error) {
	cfg, err := e.cfg.Merge(override)
	if err != nil {
		return nil, err
	}

	coldStart, err := e.scorer.IsColdStartUser(ctx, userID, cfg.ColdStartMinBookings)
	if err != nil {
		return nil, err
	}
	if coldStart {
		return e.scorer.GenerateColdStartRecos(ctx, city, cfg.MaxRecosPerUser)
	}

	return e.computeRecos(ctx, userID, city, cfg)
}

// computeRecos is the personalized pipeline on an already-merged config. The
// batch path calls it directly so a run's overrides reach every per-user step.
func (e *Engine) computeRecos(ctx context.Context, userID int64, city string, cfg RecoConfig) ([]*ScoredRecommendation, error) {
	profile, err := e.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.candidates.GenerateCandidates(ctx, userID, city, cfg.CandidatePoolSize)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	similar, err := e.candidates.FindSimilarUsers(ctx, profile, cfg.SimilarUsersLimit)
	if err != nil {
		return nil, err
	}

	bookedIDs, err := e.repo.GetBookedEventIDs(ctx, userID, excludedBookingStatuses)
	if err != nil {
		return nil, err
	}

	similarScores, err := e.candidates.CandidatesFromSimilarUsers(ctx, userID, similar, bookedIDs)
	if err != nil {
		return nil, err
	}

	// Merge the MF signal into the similar-user score pool at half weight.
	var mfContribution map[int64]float64
	if cfg.MFProvider != MFProviderNone {
		candidateIDs := make([]int64, len(candidates))
		for i, candidate := range candidates {
			candidateIDs[i] = candidate.ID
		}

		mfScores, err := NewMFProvider(cfg, e.repo).ComputeScores(ctx, userID, candidateIDs)
		if err != nil {
			return nil, err
		}

		mfContribution = make(map[int64]float64, len(mfScores))
		for eventID, score := range mfScores {
			weighted := score * mfMergeWeight
			mfContribution[eventID] = weighted

			entry, ok := similarScores[eventID]
			if !ok {
				entry = &SimilarUserScore{}
				similarScores[eventID] = entry
			}
			entry.Score += weighted
		}
	}

	recos := e.scorer.ScoreAllCandidates(candidates, profile, similarScores, cfg)

	// Relabel entries whose blended MF contribution is material. The raw
	// co-occurrence score still goes into the details.
	for _, reco := range recos {
		weighted, ok := mfContribution[reco.EventID]
		if !ok || weighted <= mfReasonThreshold {
			continue
		}
		reco.Reason.Type = ReasonMF
		if reco.Reason.Details == nil {
			reco.Reason.Details = map[string]interface{}{}
		}
		reco.Reason.Details["mfScore"] = round2(weighted / mfMergeWeight)
	}

	return recos, nil
}

// StoreUserRecos replaces the user's stored list (delete-then-insert, one
// transaction) and drops the cache entry.
func (e *Engine) StoreUserRecos(ctx context.Context, userID int64, recos []*ScoredRecommendation) error {
	if err := e.repo.ReplaceUserRecos(ctx, userID, recos); err != nil {
		return err
	}

	e.cache.Invalidate(ctx, userID)
	return nil
}

// RunBatchCompute recomputes every profile, then processes each user with at
// least one booking: chunked, concurrent within a chunk, sequential across
// chunks. Per-user failures are isolated into the error list; only the
// initial profile pass and user listing are fatal.
func (e *Engine) RunBatchCompute(ctx context.Context, override *RecoConfigOverride) (*BatchResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrBatchRunning
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	cfg, err := e.cfg.Merge(override)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &BatchResult{RunID: uuid.NewString(), Errors: []string{}}

	log.Printf("reco batch %s: starting profile pass", result.RunID)
	profileResult, err := e.profiles.BatchComputeProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("profile pass failed: %w", err)
	}
	result.Errors = append(result.Errors, profileResult.Errors...)

	userIDs, err := e.repo.GetUserIDsWithBookings(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("user listing failed: %w", err)
	}

	log.Printf("reco batch %s: %d profiles, %d users to process", result.RunID, profileResult.Processed, len(userIDs))

	var resultMu sync.Mutex
	for chunkStart := 0; chunkStart < len(userIDs); chunkStart += cfg.ChunkSize {
		chunkEnd := chunkStart + cfg.ChunkSize
		if chunkEnd > len(userIDs) {
			chunkEnd = len(userIDs)
		}

		var wg sync.WaitGroup
		for _, userID := range userIDs[chunkStart:chunkEnd] {
			wg.Add(1)
			go func(userID int64) {
				defer wg.Done()

				coldStart, recos, err := e.computeForBatchUser(ctx, userID, cfg)

				resultMu.Lock()
				defer resultMu.Unlock()

				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("user %d: %v", userID, err))
					return
				}

				result.UsersProcessed++
				result.RecosGenerated += len(recos)
				if coldStart {
					result.ColdStartUsers++
				}
			}(userID)
		}
		wg.Wait()
	}

	result.DurationMs = time.Since(start).Milliseconds()
	RecordBatchRun(result)
	log.Printf("reco batch %s: processed %d users (%d cold start, %d recos, %d errors) in %dms",
		result.RunID, result.UsersProcessed, result.ColdStartUsers,
		result.RecosGenerated, len(result.Errors), result.DurationMs)

	return result, nil
}

// computeForBatchUser is one user's batch step. A panic here must not take
// the whole run down, so it is recovered into an error.
func (e *Engine) computeForBatchUser(ctx context.Context, userID int64, cfg RecoConfig) (coldStart bool, recos []*ScoredRecommendation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	coldStart, err = e.scorer.IsColdStartUser(ctx, userID, cfg.ColdStartMinBookings)
	if err != nil {
		return false, nil, err
	}

	if coldStart {
		recos, err = e.scorer.GenerateColdStartRecos(ctx, "", cfg.MaxRecosPerUser)
	} else {
		recos, err = e.computeRecos(ctx, userID, "", cfg)
	}
	if err != nil {
		return coldStart, nil, err
	}

	if err := e.StoreUserRecos(ctx, userID, recos); err != nil {
		return coldStart, nil, err
	}

	return coldStart, recos, nil
}

// GetStoredRecos serves the read path: cache, then the stored list joined
// against live events, then the cold-start fallback. It never returns "no
// recommendations" as an empty-but-successful outcome for missing data.
func (e *Engine) GetStoredRecos(ctx context.Context, userID int64, limit int, city string) ([]*ScoredRecommendation, error) {
	if limit <= 0 || limit > e.cfg.MaxRecosPerUser {
		limit = e.cfg.MaxRecosPerUser
	}

	if cached, ok := e.cache.Get(ctx, userID); ok {
		if recos := filterStored(cached, limit, city); len(recos) > 0 {
			return recos, nil
		}
	}

	stored, err := e.repo.GetStoredRecos(ctx, userID, e.cfg.MaxRecosPerUser, "")
	if err != nil {
		return nil, err
	}

	if len(stored) > 0 {
		e.cache.Set(ctx, userID, stored)
		if recos := filterStored(stored, limit, city); len(recos) > 0 {
			return recos, nil
		}
	}

	return e.scorer.GenerateColdStartRecos(ctx, city, limit)
}

// LogRecoClick records a click as a view event for future tuning. The signal
// is fire-and-forget from the caller's perspective.
func (e *Engine) LogRecoClick(ctx context.Context, userID, eventID int64) error {
	source := clickViewSource
	view := &EventView{
		UserID:  userID,
		EventID: eventID,
		Source:  &source,
	}

	if err := e.repo.InsertEventView(ctx, view); err != nil {
		return err
	}

	RecordClick()
	return nil
}

// filterStored applies the city filter and limit to a cached full list.
func filterStored(recos []*ScoredRecommendation, limit int, city string) []*ScoredRecommendation {
	filtered := make([]*ScoredRecommendation, 0, len(recos))
	for _, reco := range recos {
		if city != "" && (reco.Event == nil || reco.Event.City != city) {
			continue
		}
		filtered = append(filtered, reco)
		if len(filtered) == limit {
			break
		}
	}
	return filtered
}
