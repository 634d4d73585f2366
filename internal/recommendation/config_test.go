package recommendation

import "testing"

func TestDefaultRecoConfigValid(t *testing.T) {
	cfg := DefaultRecoConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if sum := cfg.Weights.Sum(); sum != 1.0 {
		t.Errorf("default weights sum to %v, want 1.0", sum)
	}
}

func TestRecoConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RecoConfig)
	}{
		{"negative weight", func(c *RecoConfig) { c.Weights.Category = -0.1 }},
		{"weight above one", func(c *RecoConfig) { c.Weights.Price = 1.5 }},
		{"weights sum far from one", func(c *RecoConfig) { c.Weights = Weights{Category: 0.5, Price: 0.1} }},
		{"zero max recos", func(c *RecoConfig) { c.MaxRecosPerUser = 0 }},
		{"negative min score", func(c *RecoConfig) { c.MinScore = -0.5 }},
		{"zero cold-start threshold", func(c *RecoConfig) { c.ColdStartMinBookings = 0 }},
		{"zero similar-users limit", func(c *RecoConfig) { c.SimilarUsersLimit = 0 }},
		{"zero candidate pool", func(c *RecoConfig) { c.CandidatePoolSize = 0 }},
		{"zero chunk size", func(c *RecoConfig) { c.ChunkSize = 0 }},
		{"unknown mf provider", func(c *RecoConfig) { c.MFProvider = "remote" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRecoConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestRecoConfigMerge(t *testing.T) {
	base := DefaultRecoConfig()

	// Nil override keeps the base untouched.
	merged, err := base.Merge(nil)
	if err != nil {
		t.Fatalf("Merge(nil): %v", err)
	}
	if merged != base {
		t.Errorf("nil override changed config: %+v", merged)
	}

	// Set fields replace; unset fields keep the base value.
	minScore := 0.25
	maxRecos := 5
	provider := MFProviderLocal
	merged, err = base.Merge(&RecoConfigOverride{
		MinScore:        &minScore,
		MaxRecosPerUser: &maxRecos,
		MFProvider:      &provider,
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.MinScore != 0.25 || merged.MaxRecosPerUser != 5 || merged.MFProvider != MFProviderLocal {
		t.Errorf("override fields not applied: %+v", merged)
	}
	if merged.ChunkSize != base.ChunkSize || merged.Weights != base.Weights {
		t.Errorf("untouched fields changed: %+v", merged)
	}

	// Merge never mutates the receiver.
	if base.MinScore != 0.1 {
		t.Errorf("base mutated by merge: %+v", base)
	}

	// An override producing an invalid config is rejected.
	badChunk := 0
	if _, err := base.Merge(&RecoConfigOverride{ChunkSize: &badChunk}); err == nil {
		t.Error("invalid merged config accepted")
	}

	badWeights := Weights{Category: 0.9, Price: 0.9}
	if _, err := base.Merge(&RecoConfigOverride{Weights: &badWeights}); err == nil {
		t.Error("bad weight sum accepted through merge")
	}
}
