package recommendation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// fakeRepository is an in-memory Repository for tests. All events are
// treated as published and non-hidden; visibility filtering is exercised
// through start dates and booked-id exclusion.
type fakeRepository struct {
	mu sync.Mutex

	bookings []*Booking
	views    []*EventView
	events   []*EventCandidate
	profiles map[int64]*TasteProfile
	stored   map[int64][]*ScoredRecommendation

	insertedViews []*EventView

	// error injection, keyed by user id
	failBookingsFor map[int64]error
	failCountFor    map[int64]error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		profiles: make(map[int64]*TasteProfile),
		stored:   make(map[int64][]*ScoredRecommendation),
	}
}

func (f *fakeRepository) addBooking(userID, eventID int64, status string, price int64) {
	f.bookings = append(f.bookings, &Booking{
		ID:          int64(len(f.bookings) + 1),
		UserID:      userID,
		EventID:     eventID,
		Status:      status,
		TicketPrice: price,
		CreatedAt:   time.Now(),
	})
}

func (f *fakeRepository) addView(userID, eventID int64) {
	f.views = append(f.views, &EventView{
		ID:        int64(len(f.views) + 1),
		UserID:    userID,
		EventID:   eventID,
		CreatedAt: time.Now(),
	})
}

func (f *fakeRepository) addEvent(event *EventCandidate) {
	f.events = append(f.events, event)
}

func statusSet(statuses []string) map[string]bool {
	set := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}

func (f *fakeRepository) GetUserBookings(ctx context.Context, userID int64, statuses []string) ([]*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failBookingsFor[userID]; err != nil {
		return nil, err
	}

	wanted := statusSet(statuses)
	var out []*Booking
	for _, b := range f.bookings {
		if b.UserID == userID && wanted[b.Status] {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepository) CountUserBookings(ctx context.Context, userID int64, statuses []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failCountFor[userID]; err != nil {
		return 0, err
	}

	wanted := statusSet(statuses)
	count := 0
	for _, b := range f.bookings {
		if b.UserID == userID && wanted[b.Status] {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) GetBookedEventIDs(ctx context.Context, userID int64, statuses []string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wanted := statusSet(statuses)
	seen := make(map[int64]bool)
	var ids []int64
	for _, b := range f.bookings {
		if b.UserID == userID && wanted[b.Status] && !seen[b.EventID] {
			seen[b.EventID] = true
			ids = append(ids, b.EventID)
		}
	}
	return ids, nil
}

func (f *fakeRepository) GetRecentViews(ctx context.Context, userID int64, limit int) ([]*EventView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*EventView
	for i := len(f.views) - 1; i >= 0 && len(out) < limit; i-- {
		if f.views[i].UserID == userID {
			out = append(out, f.views[i])
		}
	}
	return out, nil
}

func (f *fakeRepository) InsertEventView(ctx context.Context, view *EventView) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	view.ID = int64(len(f.insertedViews) + 1)
	view.CreatedAt = time.Now()
	f.insertedViews = append(f.insertedViews, view)
	return nil
}

func (f *fakeRepository) GetBookingPairs(ctx context.Context, statuses []string) ([]BookingPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wanted := statusSet(statuses)
	seen := make(map[BookingPair]bool)
	var pairs []BookingPair
	for _, b := range f.bookings {
		if !wanted[b.Status] {
			continue
		}
		pair := BookingPair{UserID: b.UserID, EventID: b.EventID}
		if !seen[pair] {
			seen[pair] = true
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

func (f *fakeRepository) GetBookingPairsForUsers(ctx context.Context, userIDs []int64, statuses []string) ([]BookingPair, error) {
	all, err := f.GetBookingPairs(ctx, statuses)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}

	var pairs []BookingPair
	for _, pair := range all {
		if wanted[pair.UserID] {
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

func (f *fakeRepository) GetUpcomingEvents(ctx context.Context, city string, excludeEventIDs []int64, limit int) ([]*EventCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	excluded := make(map[int64]bool, len(excludeEventIDs))
	for _, id := range excludeEventIDs {
		excluded[id] = true
	}

	now := time.Now()
	var out []*EventCandidate
	for _, e := range f.events {
		if !e.StartDate.After(now) || excluded[e.ID] {
			continue
		}
		if city != "" && e.City != city {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].BookedSeats > out[j].BookedSeats
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepository) GetTopBookedEvents(ctx context.Context, city string, limit int) ([]*EventCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	var out []*EventCandidate
	for _, e := range f.events {
		if !e.StartDate.After(now) {
			continue
		}
		if city != "" && e.City != city {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BookedSeats != out[j].BookedSeats {
			return out[i].BookedSeats > out[j].BookedSeats
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepository) GetEventsByIDs(ctx context.Context, ids []int64) ([]*EventCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var out []*EventCandidate
	for _, e := range f.events {
		if wanted[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepository) UpsertTasteProfile(ctx context.Context, profile *TasteProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	profile.UpdatedAt = time.Now()
	f.profiles[profile.UserID] = profile
	return nil
}

func (f *fakeRepository) GetTasteProfile(ctx context.Context, userID int64) (*TasteProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	profile, ok := f.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

func (f *fakeRepository) GetAllTasteProfiles(ctx context.Context) ([]*TasteProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int64, 0, len(f.profiles))
	for id := range f.profiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	profiles := make([]*TasteProfile, 0, len(ids))
	for _, id := range ids {
		profiles = append(profiles, f.profiles[id])
	}
	return profiles, nil
}

func (f *fakeRepository) GetUserIDsWithBookings(ctx context.Context, statuses []string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wanted := statusSet(statuses)
	seen := make(map[int64]bool)
	var ids []int64
	for _, b := range f.bookings {
		if len(statuses) > 0 && !wanted[b.Status] {
			continue
		}
		if !seen[b.UserID] {
			seen[b.UserID] = true
			ids = append(ids, b.UserID)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeRepository) ReplaceUserRecos(ctx context.Context, userID int64, recos []*ScoredRecommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	replacement := make([]*ScoredRecommendation, len(recos))
	copy(replacement, recos)
	f.stored[userID] = replacement
	return nil
}

func (f *fakeRepository) GetStoredRecos(ctx context.Context, userID int64, limit int, city string) ([]*ScoredRecommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	eventsByID := make(map[int64]*EventCandidate, len(f.events))
	for _, e := range f.events {
		eventsByID[e.ID] = e
	}

	now := time.Now()
	var out []*ScoredRecommendation
	for _, reco := range f.stored[userID] {
		event, ok := eventsByID[reco.EventID]
		if !ok || !event.StartDate.After(now) {
			continue
		}
		if city != "" && event.City != city {
			continue
		}
		joined := *reco
		joined.Event = event
		out = append(out, &joined)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
