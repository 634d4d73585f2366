package recommendation

import (
	"context"
	"math"
	"sort"
	"time"
)

// Scoring shape constants. The base multi-factor score and the similar-user
// signal are blended 70/30; the similar-user sum is normalized against 5
// contributing neighbors.
const (
	baseScoreBlend    = 0.7
	similarScoreBlend = 0.3
	similarScoreNorm  = 5.0

	recencyHorizonDays = 90.0
	popularityBoost    = 1.5

	similarReasonThreshold = 0.5
	popularReasonMinPop    = 0.7
	popularReasonMaxCat    = 0.2

	coldStartScoreBoost    = 1.2
	coldStartPositionDecay = 0.3
)

// Band-distance step function for the price factor.
var priceDistanceScores = [...]float64{1.0, 0.7, 0.3}

// Scorer combines profile, candidates and collaborative signals into ranked,
// explained scores.
type Scorer struct {
	repo Repository
}

func NewScorer(repo Repository) *Scorer {
	return &Scorer{repo: repo}
}

// ScoreCandidate scores one candidate against a profile.
//
// similarScore is the raw summed CombinedSim of similar users who booked the
// candidate; similarUserIDs are the contributors, recorded for the
// explanation payload.
func (s *Scorer) ScoreCandidate(candidate *EventCandidate, profile *TasteProfile, similarScore float64, similarUserIDs []int64, cfg RecoConfig) *ScoredRecommendation {
	categoryScore := s.categoryScore(candidate, profile)
	priceScore := s.priceScore(candidate, profile)
	areaScore := s.areaScore(candidate, profile)
	recencyScore := s.recencyScore(candidate, time.Now())
	popularityScore := s.popularityScore(candidate)

	baseScore := categoryScore*cfg.Weights.Category +
		priceScore*cfg.Weights.Price +
		areaScore*cfg.Weights.Area +
		recencyScore*cfg.Weights.Recency +
		popularityScore*cfg.Weights.Popularity

	normalizedSimilar := math.Min(1, similarScore/similarScoreNorm)
	finalScore := baseScore*baseScoreBlend + normalizedSimilar*similarScoreBlend

	details := map[string]interface{}{
		"categoryScore":   round2(categoryScore),
		"priceScore":      round2(priceScore),
		"areaScore":       round2(areaScore),
		"recencyScore":    round2(recencyScore),
		"popularityScore": round2(popularityScore),
	}

	reasonType := ReasonCategoryMatch
	switch {
	case similarScore > similarReasonThreshold:
		reasonType = ReasonSimilarUsers
		details["similarUserIds"] = similarUserIDs
	case popularityScore > popularReasonMinPop && categoryScore < popularReasonMaxCat:
		reasonType = ReasonPopular
	}

	return &ScoredRecommendation{
		EventID: candidate.ID,
		Score:   round3(math.Min(1, math.Max(0, finalScore))),
		Reason: RecoReason{
			Type:    reasonType,
			Details: details,
		},
	}
}

// ScoreAllCandidates scores every candidate, drops entries below
// cfg.MinScore, sorts descending and truncates to cfg.MaxRecosPerUser.
func (s *Scorer) ScoreAllCandidates(candidates []*EventCandidate, profile *TasteProfile, similarScores map[int64]*SimilarUserScore, cfg RecoConfig) []*ScoredRecommendation {
	scored := make([]*ScoredRecommendation, 0, len(candidates))

	for _, candidate := range candidates {
		var (
			similarScore   float64
			similarUserIDs []int64
		)
		if entry, ok := similarScores[candidate.ID]; ok {
			similarScore = entry.Score
			similarUserIDs = entry.UserIDs
		}

		reco := s.ScoreCandidate(candidate, profile, similarScore, similarUserIDs, cfg)
		if reco.Score < cfg.MinScore {
			continue
		}

		RecordScore(reco.Score)
		scored = append(scored, reco)
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > cfg.MaxRecosPerUser {
		scored = scored[:cfg.MaxRecosPerUser]
	}

	return scored
}

// GenerateColdStartRecos serves users with too little history: the
// most-booked future published events, with a mild extra boost for
// earlier-ranked items.
func (s *Scorer) GenerateColdStartRecos(ctx context.Context, city string, limit int) ([]*ScoredRecommendation, error) {
	if limit <= 0 {
		return nil, nil
	}

	events, err := s.repo.GetTopBookedEvents(ctx, city, limit)
	if err != nil {
		return nil, err
	}

	recos := make([]*ScoredRecommendation, 0, len(events))
	for rank, event := range events {
		sellThrough := s.popularityRatio(event)
		positionBoost := 1 - (float64(rank)/float64(limit))*coldStartPositionDecay
		score := math.Min(1, sellThrough*coldStartScoreBoost) * positionBoost

		recos = append(recos, &ScoredRecommendation{
			EventID: event.ID,
			Score:   round3(score),
			Reason: RecoReason{
				Type: ReasonColdStart,
				Details: map[string]interface{}{
					"popularityScore": round2(sellThrough),
				},
			},
			Event: event,
		})
	}

	return recos, nil
}

// IsColdStartUser reports whether the user has fewer confirmed/attended
// bookings than minBookings.
func (s *Scorer) IsColdStartUser(ctx context.Context, userID int64, minBookings int) (bool, error) {
	count, err := s.repo.CountUserBookings(ctx, userID, profileBookingStatuses)
	if err != nil {
		return false, err
	}
	return count < minBookings, nil
}

// Factor scores, each in [0,1].

func (s *Scorer) categoryScore(candidate *EventCandidate, profile *TasteProfile) float64 {
	total := 0
	for _, count := range profile.CategoryFrequency {
		total += count
	}
	if total == 0 {
		return 0
	}
	return float64(profile.CategoryFrequency[candidate.Category]) / float64(total)
}

func (s *Scorer) priceScore(candidate *EventCandidate, profile *TasteProfile) float64 {
	distance := PriceBand(candidate.Price) - PriceBand(profile.MedianPrice)
	if distance < 0 {
		distance = -distance
	}
	if distance >= len(priceDistanceScores) {
		return 0
	}
	return priceDistanceScores[distance]
}

func (s *Scorer) areaScore(candidate *EventCandidate, profile *TasteProfile) float64 {
	for _, city := range profile.PreferredCities {
		if city == candidate.City {
			return 1
		}
	}
	return 0
}

// recencyScore decays linearly from 1 now to 0 at 90 days out. Candidates
// are pre-filtered to the future, so no clamping above 1 is needed.
func (s *Scorer) recencyScore(candidate *EventCandidate, now time.Time) float64 {
	days := candidate.StartDate.Sub(now).Hours() / 24
	return math.Max(0, 1-days/recencyHorizonDays)
}

func (s *Scorer) popularityScore(candidate *EventCandidate) float64 {
	return math.Min(1, s.popularityRatio(candidate)*popularityBoost)
}

func (s *Scorer) popularityRatio(candidate *EventCandidate) float64 {
	if candidate.TotalSeats <= 0 {
		return 0
	}
	return float64(candidate.BookedSeats) / float64(candidate.TotalSeats)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
