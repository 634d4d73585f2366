package recommendation

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// MF provider selection.
const (
	MFProviderNone  = "none"
	MFProviderLocal = "local"
)

var validate = validator.New()

// Weights are the five scoring factor weights. They should sum to ~1.
type Weights struct {
	Category   float64 `json:"category" validate:"gte=0,lte=1"`
	Price      float64 `json:"price" validate:"gte=0,lte=1"`
	Area       float64 `json:"area" validate:"gte=0,lte=1"`
	Recency    float64 `json:"recency" validate:"gte=0,lte=1"`
	Popularity float64 `json:"popularity" validate:"gte=0,lte=1"`
}

// Sum returns the total factor weight.
func (w Weights) Sum() float64 {
	return w.Category + w.Price + w.Area + w.Recency + w.Popularity
}

// RecoConfig holds the engine tunables. It is immutable per run; per-invocation
// overrides are merged onto defaults field-by-field via Merge.
type RecoConfig struct {
	Weights              Weights `json:"weights"`
	MaxRecosPerUser      int     `json:"max_recos_per_user" validate:"gt=0"`
	MinScore             float64 `json:"min_score" validate:"gte=0,lte=1"`
	ColdStartMinBookings int     `json:"cold_start_min_bookings" validate:"gt=0"`
	SimilarUsersLimit    int     `json:"similar_users_limit" validate:"gt=0"`
	CandidatePoolSize    int     `json:"candidate_pool_size" validate:"gt=0"`
	ChunkSize            int     `json:"chunk_size" validate:"gt=0"`
	MFProvider           string  `json:"mf_provider" validate:"oneof=none local"`
}

// DefaultRecoConfig returns the production defaults.
func DefaultRecoConfig() RecoConfig {
	return RecoConfig{
		Weights: Weights{
			Category:   0.30,
			Price:      0.20,
			Area:       0.15,
			Recency:    0.20,
			Popularity: 0.15,
		},
		MaxRecosPerUser:      20,
		MinScore:             0.1,
		ColdStartMinBookings: 3,
		SimilarUsersLimit:    10,
		CandidatePoolSize:    200,
		ChunkSize:            100,
		MFProvider:           MFProviderNone,
	}
}

// Validate rejects configs that would produce silently-wrong scores:
// negative or out-of-range weights, weight sums far from 1, non-positive
// pool sizes, unknown MF providers.
func (c RecoConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid reco config: %w", err)
	}

	if sum := c.Weights.Sum(); math.Abs(sum-1.0) > 0.1 {
		return fmt.Errorf("invalid reco config: weights sum to %.3f, expected ~1.0", sum)
	}

	return nil
}

// RecoConfigOverride carries per-invocation overrides. Nil fields keep the
// base value; set fields replace it.
type RecoConfigOverride struct {
	Weights              *Weights `json:"weights,omitempty"`
	MaxRecosPerUser      *int     `json:"max_recos_per_user,omitempty"`
	MinScore             *float64 `json:"min_score,omitempty"`
	ColdStartMinBookings *int     `json:"cold_start_min_bookings,omitempty"`
	SimilarUsersLimit    *int     `json:"similar_users_limit,omitempty"`
	CandidatePoolSize    *int     `json:"candidate_pool_size,omitempty"`
	ChunkSize            *int     `json:"chunk_size,omitempty"`
	MFProvider           *string  `json:"mf_provider,omitempty"`
}

// Merge applies the override field-by-field onto c and validates the result.
func (c RecoConfig) Merge(o *RecoConfigOverride) (RecoConfig, error) {
	merged := c

	if o != nil {
		if o.Weights != nil {
			merged.Weights = *o.Weights
		}
		if o.MaxRecosPerUser != nil {
			merged.MaxRecosPerUser = *o.MaxRecosPerUser
		}
		if o.MinScore != nil {
			merged.MinScore = *o.MinScore
		}
		if o.ColdStartMinBookings != nil {
			merged.ColdStartMinBookings = *o.ColdStartMinBookings
		}
		if o.SimilarUsersLimit != nil {
			merged.SimilarUsersLimit = *o.SimilarUsersLimit
		}
		if o.CandidatePoolSize != nil {
			merged.CandidatePoolSize = *o.CandidatePoolSize
		}
		if o.ChunkSize != nil {
			merged.ChunkSize = *o.ChunkSize
		}
		if o.MFProvider != nil {
			merged.MFProvider = *o.MFProvider
		}
	}

	if err := merged.Validate(); err != nil {
		return RecoConfig{}, err
	}

	return merged, nil
}
