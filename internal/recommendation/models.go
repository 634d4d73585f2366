package recommendation

import (
	"encoding/json"
	"time"
)

// Booking statuses written by the booking service. Only confirmed and
// attended bookings count toward taste; pending still blocks re-recommending.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingAttended  = "attended"
)

// Reason types attached to every stored recommendation.
const (
	ReasonCategoryMatch = "category_match"
	ReasonSimilarUsers  = "similar_users"
	ReasonPopular       = "popular"
	ReasonMF            = "mf"
	ReasonColdStart     = "cold_start"
)

// Time-of-day buckets for preferred slots.
const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"
	SlotNight     = "night"
)

// TasteProfile is the per-user feature summary derived from booking and view
// history. It is recomputed wholesale and upserted; never merged incrementally.
type TasteProfile struct {
	UserID             int64          `json:"user_id" db:"user_id"`
	CategoryFrequency  map[string]int `json:"category_frequency"`
	MedianPrice        int64          `json:"median_price" db:"median_price"`
	PreferredCities    []string       `json:"preferred_cities"`
	PreferredTimeSlots []string       `json:"preferred_time_slots"`
	UpdatedAt          time.Time      `json:"updated_at" db:"updated_at"`
}

// EventCandidate is an immutable snapshot of one published, future,
// non-hidden event. Prices are in minor currency units (paise).
type EventCandidate struct {
	ID          int64     `json:"id" db:"id"`
	Category    string    `json:"category" db:"category"`
	City        string    `json:"city" db:"city"`
	Price       int64     `json:"price" db:"price"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
	BookedSeats int       `json:"booked_seats" db:"booked_seats"`
	TotalSeats  int       `json:"total_seats" db:"total_seats"`
}

// SimilarUser is ephemeral: recomputed per scoring pass, never persisted.
type SimilarUser struct {
	UserID      int64   `json:"user_id"`
	JaccardSim  float64 `json:"jaccard_sim"`
	CosineSim   float64 `json:"cosine_sim"`
	CombinedSim float64 `json:"combined_sim"`
}

// RecoReason explains why an event was recommended. Details carries the
// individual factor contributions for the UI.
type RecoReason struct {
	Type    string                 `json:"type"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ScoredRecommendation is one ranked entry of a user's recommendation list.
// Score is always within [0,1], rounded to 3 decimals.
type ScoredRecommendation struct {
	EventID int64      `json:"event_id" db:"event_id"`
	Score   float64    `json:"score" db:"score"`
	Reason  RecoReason `json:"reason"`

	// Joined on the read path only
	Event *EventCandidate `json:"event,omitempty"`
}

// SimilarUserScore aggregates the collaborative signal for one event:
// the summed CombinedSim of every similar user who booked it, plus the
// contributing user ids for explainability.
type SimilarUserScore struct {
	Score   float64 `json:"score"`
	UserIDs []int64 `json:"user_ids"`
}

// Booking is the read-side row shape this engine consumes from the store.
type Booking struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	EventID     int64     `json:"event_id" db:"event_id"`
	Status      string    `json:"status" db:"status"`
	TicketPrice int64     `json:"ticket_price" db:"ticket_price"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// EventView records one event detail view; also used as the click-feedback
// sink (source = "reco_click").
type EventView struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	EventID   int64     `json:"event_id" db:"event_id"`
	Source    *string   `json:"source,omitempty" db:"source"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BookingPair is the minimal (user, event) interaction used by the
// co-occurrence provider.
type BookingPair struct {
	UserID  int64 `db:"user_id"`
	EventID int64 `db:"event_id"`
}

// ProfileBatchResult reports the profile recomputation pass.
type ProfileBatchResult struct {
	Processed int      `json:"processed"`
	Errors    []string `json:"errors"`
}

// BatchResult is returned by RunBatchCompute so operators can see partial
// failures without the run as a whole being marked failed.
type BatchResult struct {
	RunID          string   `json:"run_id"`
	UsersProcessed int      `json:"users_processed"`
	RecosGenerated int      `json:"recos_generated"`
	ColdStartUsers int      `json:"cold_start_users"`
	Errors         []string `json:"errors"`
	DurationMs     int64    `json:"duration_ms"`
}

// storedRecoRow is the persistence shape of one recommendation row.
type storedRecoRow struct {
	UserID     int64           `db:"user_id"`
	EventID    int64           `db:"event_id"`
	Score      float64         `db:"score"`
	ReasonType string          `db:"reason_type"`
	Details    json.RawMessage `db:"details"`
	Position   int             `db:"position"`
}

// tasteProfileRow is the persistence shape of a TasteProfile; the map and
// list fields live in jsonb columns.
type tasteProfileRow struct {
	UserID             int64           `db:"user_id"`
	CategoryFrequency  json.RawMessage `db:"category_frequency"`
	MedianPrice        int64           `db:"median_price"`
	PreferredCities    json.RawMessage `db:"preferred_cities"`
	PreferredTimeSlots json.RawMessage `db:"preferred_time_slots"`
	UpdatedAt          time.Time       `db:"updated_at"`
}
