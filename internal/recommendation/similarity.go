package recommendation

import (
	"context"
	"sort"
)

// Similarity blend: category overlap dominates, price proximity refines.
const (
	jaccardWeight = 0.7
	cosineWeight  = 0.3
)

// Price bands in minor currency units (paise). Band comparison stands in for
// exact arithmetic distance between prices.
const (
	bandBudgetMax  = 50000  // [0, 500) rupees
	bandMidMax     = 150000 // [500, 1500)
	bandPremiumMax = 300000 // [1500, 3000)
)

var priceBandLabels = [...]string{"budget", "mid", "premium", "luxury"}

// PriceBand returns the ordered band index (0..3) for a price.
func PriceBand(price int64) int {
	switch {
	case price < bandBudgetMax:
		return 0
	case price < bandMidMax:
		return 1
	case price < bandPremiumMax:
		return 2
	default:
		return 3
	}
}

// PriceBandLabel returns the band name for a price.
func PriceBandLabel(price int64) string {
	return priceBandLabels[PriceBand(price)]
}

// ComputeJaccardSimilarity compares two category frequency maps by key set:
// |intersection| / |union|. Counts are ignored, only presence matters.
// Returns 0 if either set is empty.
func ComputeJaccardSimilarity(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for key := range a {
		if _, ok := b[key]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// ComputeCosineSimilarity scores price proximity as a banded step function:
// 1 for the same band, 0.5 for adjacent bands, 0 otherwise. The name is
// historical; this is not a true cosine distance.
func ComputeCosineSimilarity(price1, price2 int64) float64 {
	distance := PriceBand(price1) - PriceBand(price2)
	if distance < 0 {
		distance = -distance
	}

	switch distance {
	case 0:
		return 1
	case 1:
		return 0.5
	default:
		return 0
	}
}

// CombinedSimilarity blends the two signals as 0.7*jaccard + 0.3*cosine.
func CombinedSimilarity(jaccard, cosine float64) float64 {
	return jaccardWeight*jaccard + cosineWeight*cosine
}

// FindSimilarUsers compares the target profile against every other stored
// profile and returns the closest ones, sorted by combined similarity
// descending, truncated to limit. Users with zero combined similarity are
// dropped.
//
// This is an O(U) full-population scan per user. Acceptable inside the
// nightly batch; an interactive variant would need a precomputed
// category/price-band index.
func (g *CandidateGenerator) FindSimilarUsers(ctx context.Context, profile *TasteProfile, limit int) ([]*SimilarUser, error) {
	profiles, err := g.repo.GetAllTasteProfiles(ctx)
	if err != nil {
		return nil, err
	}

	similar := make([]*SimilarUser, 0, len(profiles))
	for _, other := range profiles {
		if other.UserID == profile.UserID {
			continue
		}

		jaccard := ComputeJaccardSimilarity(profile.CategoryFrequency, other.CategoryFrequency)
		cosine := ComputeCosineSimilarity(profile.MedianPrice, other.MedianPrice)
		combined := CombinedSimilarity(jaccard, cosine)
		if combined <= 0 {
			continue
		}

		similar = append(similar, &SimilarUser{
			UserID:      other.UserID,
			JaccardSim:  jaccard,
			CosineSim:   cosine,
			CombinedSim: combined,
		})
	}

	sort.Slice(similar, func(i, j int) bool {
		return similar[i].CombinedSim > similar[j].CombinedSim
	})

	if len(similar) > limit {
		similar = similar[:limit]
	}

	return similar, nil
}

// CandidatesFromSimilarUsers aggregates, per event booked by the similar
// users and not in excludeEventIDs, the summed CombinedSim of its bookers
// plus the contributing user ids for explainability.
func (g *CandidateGenerator) CandidatesFromSimilarUsers(ctx context.Context, userID int64, similar []*SimilarUser, excludeEventIDs []int64) (map[int64]*SimilarUserScore, error) {
	scores := make(map[int64]*SimilarUserScore)
	if len(similar) == 0 {
		return scores, nil
	}

	simByUser := make(map[int64]float64, len(similar))
	userIDs := make([]int64, 0, len(similar))
	for _, s := range similar {
		simByUser[s.UserID] = s.CombinedSim
		userIDs = append(userIDs, s.UserID)
	}

	pairs, err := g.repo.GetBookingPairsForUsers(ctx, userIDs, profileBookingStatuses)
	if err != nil {
		return nil, err
	}

	excluded := make(map[int64]bool, len(excludeEventIDs))
	for _, id := range excludeEventIDs {
		excluded[id] = true
	}

	for _, pair := range pairs {
		if pair.UserID == userID || excluded[pair.EventID] {
			continue
		}

		entry, ok := scores[pair.EventID]
		if !ok {
			entry = &SimilarUserScore{}
			scores[pair.EventID] = entry
		}
		entry.Score += simByUser[pair.UserID]
		entry.UserIDs = append(entry.UserIDs, pair.UserID)
	}

	return scores, nil
}
