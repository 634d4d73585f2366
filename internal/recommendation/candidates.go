package recommendation

import (
	"context"
	"time"
)

// Bookings in any of these states keep an event out of the user's pool.
var excludedBookingStatuses = []string{BookingPending, BookingConfirmed, BookingAttended}

// CandidateGenerator produces eligible future events for a user and
// discovers similar users (similarity.go).
type CandidateGenerator struct {
	repo Repository
}

func NewCandidateGenerator(repo Repository) *CandidateGenerator {
	return &CandidateGenerator{repo: repo}
}

// GenerateCandidates selects published, future, non-hidden events the user
// has not already booked, optionally filtered to one city, ordered by
// soonest start then highest booked seats, capped at poolSize.
func (g *CandidateGenerator) GenerateCandidates(ctx context.Context, userID int64, city string, poolSize int) ([]*EventCandidate, error) {
	bookedIDs, err := g.repo.GetBookedEventIDs(ctx, userID, excludedBookingStatuses)
	if err != nil {
		return nil, err
	}

	// Booked events are excluded before the pool cap so they cannot crowd
	// out eligible later events.
	events, err := g.repo.GetUpcomingEvents(ctx, city, bookedIDs, poolSize)
	if err != nil {
		return nil, err
	}

	candidates := FilterExpiredAndBooked(events, bookedIDs, time.Now())
	if len(candidates) > poolSize {
		candidates = candidates[:poolSize]
	}

	return candidates, nil
}

// FilterExpiredAndBooked removes every event whose start date is not in the
// future and every event in bookedIDs, and nothing else. Pure; order is
// preserved.
func FilterExpiredAndBooked(events []*EventCandidate, bookedIDs []int64, now time.Time) []*EventCandidate {
	booked := make(map[int64]bool, len(bookedIDs))
	for _, id := range bookedIDs {
		booked[id] = true
	}

	filtered := make([]*EventCandidate, 0, len(events))
	for _, event := range events {
		if !event.StartDate.After(now) || booked[event.ID] {
			continue
		}
		filtered = append(filtered, event)
	}

	return filtered
}
