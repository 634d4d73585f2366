package recommendation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeSlotForHour(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{9, SlotMorning},
		{12, SlotAfternoon},
		{17, SlotEvening},
		{21, SlotNight},
		{2, SlotNight},
	}

	for _, tt := range tests {
		if got := timeSlotForHour(tt.hour); got != tt.want {
			t.Errorf("timeSlotForHour(%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestLowerMedian(t *testing.T) {
	if got := lowerMedian(nil); got != 0 {
		t.Errorf("empty median = %d, want 0", got)
	}
	if got := lowerMedian([]int64{70000, 30000, 50000}); got != 50000 {
		t.Errorf("odd-count median = %d, want 50000", got)
	}
	// Lower median for even counts: index n/2 of the ascending sort.
	if got := lowerMedian([]int64{40000, 10000, 30000, 20000}); got != 30000 {
		t.Errorf("even-count median = %d, want 30000", got)
	}
}

func eventAt(id int64, category, city string, price int64, start time.Time) *EventCandidate {
	return &EventCandidate{
		ID:        id,
		Category:  category,
		City:      city,
		Price:     price,
		StartDate: start,
	}
}

func TestComputeProfile(t *testing.T) {
	repo := newFakeRepository()
	future := time.Date(2026, 10, 1, 19, 0, 0, 0, time.UTC)

	repo.addEvent(eventAt(1, "COMEDY", "Mumbai", 50000, future))
	repo.addEvent(eventAt(2, "MUSIC", "Mumbai", 80000, future.Add(time.Hour)))          // 20:00 evening
	repo.addEvent(eventAt(3, "COMEDY", "Pune", 30000, future.Add(-9*time.Hour)))        // 10:00 morning
	repo.addEvent(eventAt(4, "TECH", "Delhi", 120000, future.Add(3*time.Hour)))         // 22:00 night
	repo.addEvent(eventAt(5, "THEATRE", "Bengaluru", 60000, future.Add(-5*time.Hour)))  // viewed only

	repo.addBooking(1, 1, BookingConfirmed, 50000)
	repo.addBooking(1, 2, BookingAttended, 80000)
	repo.addBooking(1, 3, BookingConfirmed, 30000)
	repo.addBooking(1, 4, BookingPending, 120000) // pending: ignored entirely

	repo.addView(1, 5)
	repo.addView(1, 5) // second view of the same event counts again
	repo.addView(1, 1) // view of a booked event carries no extra weight

	builder := NewProfileBuilder(repo)
	profile, err := builder.ComputeProfile(context.Background(), 1)
	if err != nil {
		t.Fatalf("ComputeProfile: %v", err)
	}

	if got := profile.CategoryFrequency["COMEDY"]; got != 6 {
		t.Errorf("COMEDY frequency = %d, want 6", got)
	}
	if got := profile.CategoryFrequency["MUSIC"]; got != 3 {
		t.Errorf("MUSIC frequency = %d, want 3", got)
	}
	if got := profile.CategoryFrequency["THEATRE"]; got != 2 {
		t.Errorf("THEATRE frequency = %d, want 2", got)
	}
	if _, ok := profile.CategoryFrequency["TECH"]; ok {
		t.Error("pending booking leaked into category frequency")
	}

	// Confirmed prices sorted: 30000, 50000, 80000 -> median 50000
	if profile.MedianPrice != 50000 {
		t.Errorf("median price = %d, want 50000", profile.MedianPrice)
	}

	// Mumbai twice, Pune once
	if len(profile.PreferredCities) == 0 || profile.PreferredCities[0] != "Mumbai" {
		t.Errorf("preferred cities = %v, want Mumbai first", profile.PreferredCities)
	}
	if len(profile.PreferredCities) > maxPreferredCities {
		t.Errorf("preferred cities length %d exceeds cap", len(profile.PreferredCities))
	}

	// Evening twice (19:00 and 20:00), morning once
	if len(profile.PreferredTimeSlots) == 0 || profile.PreferredTimeSlots[0] != SlotEvening {
		t.Errorf("preferred slots = %v, want evening first", profile.PreferredTimeSlots)
	}
	if len(profile.PreferredTimeSlots) > maxPreferredTimeSlots {
		t.Errorf("preferred slots length %d exceeds cap", len(profile.PreferredTimeSlots))
	}
}

func TestComputeProfileEmptyHistory(t *testing.T) {
	repo := newFakeRepository()
	builder := NewProfileBuilder(repo)

	profile, err := builder.ComputeProfile(context.Background(), 42)
	if err != nil {
		t.Fatalf("ComputeProfile: %v", err)
	}

	if len(profile.CategoryFrequency) != 0 {
		t.Errorf("empty history produced frequencies %v", profile.CategoryFrequency)
	}
	if profile.MedianPrice != 0 {
		t.Errorf("empty history median = %d, want 0", profile.MedianPrice)
	}
}

func TestTopKInsertionOrderTieBreak(t *testing.T) {
	c := newCounter()
	c.add("Mumbai")
	c.add("Pune")
	c.add("Delhi")
	c.add("Pune")
	c.add("Mumbai")

	// Mumbai and Pune tie at 2; Mumbai was seen first.
	top := c.topK(2)
	if len(top) != 2 || top[0] != "Mumbai" || top[1] != "Pune" {
		t.Errorf("topK = %v, want [Mumbai Pune]", top)
	}
}

func TestBatchComputeProfiles(t *testing.T) {
	repo := newFakeRepository()
	future := time.Now().Add(48 * time.Hour)
	repo.addEvent(eventAt(1, "COMEDY", "Mumbai", 50000, future))

	repo.addBooking(1, 1, BookingConfirmed, 50000)
	repo.addBooking(2, 1, BookingAttended, 50000)
	repo.addBooking(3, 1, BookingPending, 50000) // no qualifying booking
	repo.addBooking(4, 1, BookingConfirmed, 50000)

	repo.failBookingsFor = map[int64]error{4: errors.New("read timeout")}

	builder := NewProfileBuilder(repo)
	result, err := builder.BatchComputeProfiles(context.Background())
	if err != nil {
		t.Fatalf("BatchComputeProfiles: %v", err)
	}

	if result.Processed != 2 {
		t.Errorf("processed = %d, want 2", result.Processed)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", result.Errors)
	}
	if _, ok := repo.profiles[1]; !ok {
		t.Error("user 1 profile not upserted")
	}
	if _, ok := repo.profiles[3]; ok {
		t.Error("pending-only user 3 got a profile")
	}
}

func TestGetProfileReadThrough(t *testing.T) {
	repo := newFakeRepository()
	stored := &TasteProfile{
		UserID:            1,
		CategoryFrequency: map[string]int{"COMEDY": 5},
		MedianPrice:       50000,
	}
	repo.profiles[1] = stored

	builder := NewProfileBuilder(repo)

	got, err := builder.GetProfile(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got != stored {
		t.Error("stored profile not returned as-is")
	}

	// Miss computes on demand without writing back.
	computed, err := builder.GetProfile(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetProfile miss: %v", err)
	}
	if computed.UserID != 2 {
		t.Errorf("computed profile user = %d, want 2", computed.UserID)
	}
	if _, ok := repo.profiles[2]; ok {
		t.Error("on-demand profile was written back")
	}
}
