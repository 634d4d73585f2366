package recommendation

import (
	"context"
	"fmt"
	"sort"
)

// Interaction weights for category frequency: a confirmed/attended booking
// says more about taste than a view.
const (
	bookingCategoryWeight = 3
	viewCategoryWeight    = 1

	recentViewsWindow = 100

	maxPreferredCities    = 3
	maxPreferredTimeSlots = 2
)

var profileBookingStatuses = []string{BookingConfirmed, BookingAttended}

// ProfileBuilder derives taste profiles from booking and view history.
// It has no side effects beyond what each method documents; persistence of
// ComputeProfile's result is the caller's responsibility.
type ProfileBuilder struct {
	repo Repository
}

func NewProfileBuilder(repo Repository) *ProfileBuilder {
	return &ProfileBuilder{repo: repo}
}

// ComputeProfile rebuilds the user's profile from scratch. Read errors
// propagate to the caller.
func (b *ProfileBuilder) ComputeProfile(ctx context.Context, userID int64) (*TasteProfile, error) {
	bookings, err := b.repo.GetUserBookings(ctx, userID, profileBookingStatuses)
	if err != nil {
		return nil, err
	}

	views, err := b.repo.GetRecentViews(ctx, userID, recentViewsWindow)
	if err != nil {
		return nil, err
	}

	profile := &TasteProfile{
		UserID:            userID,
		CategoryFrequency: make(map[string]int),
	}

	// Category frequency needs each booking's event category; the candidate
	// columns carry it. Views that never became bookings still count, at a
	// lower weight.
	eventCategories, eventCities, eventHours, err := b.eventFeatures(ctx, bookings, views)
	if err != nil {
		return nil, err
	}

	cityCounts := newCounter()
	slotCounts := newCounter()

	prices := make([]int64, 0, len(bookings))
	for _, booking := range bookings {
		if category, ok := eventCategories[booking.EventID]; ok {
			profile.CategoryFrequency[category] += bookingCategoryWeight
		}
		if city, ok := eventCities[booking.EventID]; ok {
			cityCounts.add(city)
		}
		if hour, ok := eventHours[booking.EventID]; ok {
			slotCounts.add(timeSlotForHour(hour))
		}
		prices = append(prices, booking.TicketPrice)
	}

	// Views of events the user went on to book carry no extra signal;
	// every other view row counts once.
	booked := make(map[int64]bool)
	for _, booking := range bookings {
		booked[booking.EventID] = true
	}
	for _, view := range views {
		if booked[view.EventID] {
			continue
		}
		if category, ok := eventCategories[view.EventID]; ok {
			profile.CategoryFrequency[category] += viewCategoryWeight
		}
	}

	profile.MedianPrice = lowerMedian(prices)
	profile.PreferredCities = cityCounts.topK(maxPreferredCities)
	profile.PreferredTimeSlots = slotCounts.topK(maxPreferredTimeSlots)

	return profile, nil
}

// BatchComputeProfiles recomputes and upserts the profile of every user with
// at least one confirmed/attended booking. Per-user failures are collected,
// not fatal.
func (b *ProfileBuilder) BatchComputeProfiles(ctx context.Context) (*ProfileBatchResult, error) {
	userIDs, err := b.repo.GetUserIDsWithBookings(ctx, profileBookingStatuses)
	if err != nil {
		return nil, err
	}

	result := &ProfileBatchResult{}
	for _, userID := range userIDs {
		profile, err := b.ComputeProfile(ctx, userID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("user %d: compute profile: %v", userID, err))
			continue
		}
		if err := b.repo.UpsertTasteProfile(ctx, profile); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("user %d: upsert profile: %v", userID, err))
			continue
		}
		result.Processed++
	}

	return result, nil
}

// GetProfile is a read-through lookup: the stored profile if present,
// otherwise computed on demand without writing back.
func (b *ProfileBuilder) GetProfile(ctx context.Context, userID int64) (*TasteProfile, error) {
	profile, err := b.repo.GetTasteProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if err != ErrProfileNotFound {
		return nil, err
	}

	return b.ComputeProfile(ctx, userID)
}

// eventFeatures loads category/city/start-hour for every event referenced by
// the given bookings and views.
func (b *ProfileBuilder) eventFeatures(ctx context.Context, bookings []*Booking, views []*EventView) (map[int64]string, map[int64]string, map[int64]int, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, booking := range bookings {
		if !seen[booking.EventID] {
			seen[booking.EventID] = true
			ids = append(ids, booking.EventID)
		}
	}
	for _, view := range views {
		if !seen[view.EventID] {
			seen[view.EventID] = true
			ids = append(ids, view.EventID)
		}
	}

	categories := make(map[int64]string, len(ids))
	cities := make(map[int64]string, len(ids))
	hours := make(map[int64]int, len(ids))

	if len(ids) == 0 {
		return categories, cities, hours, nil
	}

	events, err := b.repo.GetEventsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, nil, err
	}

	for _, event := range events {
		categories[event.ID] = event.Category
		cities[event.ID] = event.City
		hours[event.ID] = event.StartDate.Hour()
	}

	return categories, cities, hours, nil
}

// timeSlotForHour buckets a start hour into a slot label.
func timeSlotForHour(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return SlotMorning
	case hour >= 12 && hour < 17:
		return SlotAfternoon
	case hour >= 17 && hour < 21:
		return SlotEvening
	default:
		return SlotNight
	}
}

// lowerMedian returns the lower median (index n/2 of the ascending sort),
// 0 for an empty slice.
func lowerMedian(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return sorted[len(sorted)/2]
}

// counter is a frequency map that remembers first-seen order so top-K ties
// break deterministically by insertion order, not map iteration.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if key == "" {
		return
	}
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) topK(k int) []string {
	keys := make([]string, len(c.order))
	copy(keys, c.order)

	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(keys, func(i, j int) bool {
		return c.counts[keys[i]] > c.counts[keys[j]]
	})

	if len(keys) > k {
		keys = keys[:k]
	}
	return keys
}
