package recommendation

import (
	"context"
	"math"
)

// Co-occurrence score normalization and the weight/threshold used when the
// signal is merged into the similar-user score pool.
const (
	mfScoreNorm       = 10.0
	mfMergeWeight     = 0.5
	mfReasonThreshold = 0.3
)

// MFProvider supplies a collaborative score per candidate event. Named after
// matrix factorization, but the local provider is deterministic co-occurrence
// counting over the booking history, not a trained decomposition. The
// interface exists so a real trained model can be swapped in later without
// touching the scoring contract.
type MFProvider interface {
	ComputeScores(ctx context.Context, userID int64, candidateIDs []int64) (map[int64]float64, error)
}

// NewMFProvider selects the provider for cfg.MFProvider.
func NewMFProvider(cfg RecoConfig, repo Repository) MFProvider {
	if cfg.MFProvider == MFProviderLocal {
		return &localMFProvider{repo: repo}
	}
	return noneMFProvider{}
}

type noneMFProvider struct{}

func (noneMFProvider) ComputeScores(ctx context.Context, userID int64, candidateIDs []int64) (map[int64]float64, error) {
	return nil, nil
}

// localMFProvider builds a binary user-by-event interaction matrix from all
// confirmed/attended bookings and scores each candidate by how many other
// users co-booked it alongside the target user's own events. Approximate and
// roughly O(users x events^2); batch use only.
type localMFProvider struct {
	repo Repository
}

func (p *localMFProvider) ComputeScores(ctx context.Context, userID int64, candidateIDs []int64) (map[int64]float64, error) {
	pairs, err := p.repo.GetBookingPairs(ctx, profileBookingStatuses)
	if err != nil {
		return nil, err
	}

	userEvents := make(map[int64]map[int64]bool)
	eventUsers := make(map[int64]map[int64]bool)
	for _, pair := range pairs {
		if userEvents[pair.UserID] == nil {
			userEvents[pair.UserID] = make(map[int64]bool)
		}
		userEvents[pair.UserID][pair.EventID] = true

		if eventUsers[pair.EventID] == nil {
			eventUsers[pair.EventID] = make(map[int64]bool)
		}
		eventUsers[pair.EventID][pair.UserID] = true
	}

	ownEvents := userEvents[userID]
	if len(ownEvents) == 0 {
		return nil, nil
	}

	scores := make(map[int64]float64, len(candidateIDs))
	for _, candidateID := range candidateIDs {
		candidateBookers := eventUsers[candidateID]
		if len(candidateBookers) == 0 {
			continue
		}

		cooccurrence := 0
		for eventID := range ownEvents {
			for bookerID := range eventUsers[eventID] {
				if bookerID == userID {
					continue
				}
				if candidateBookers[bookerID] {
					cooccurrence++
				}
			}
		}

		if cooccurrence > 0 {
			scores[candidateID] = math.Min(1, float64(cooccurrence)/mfScoreNorm)
		}
	}

	return scores, nil
}
