package recommendation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

var ErrProfileNotFound = errors.New("taste profile not found")

type Repository interface {
	// Bookings & views
	GetUserBookings(ctx context.Context, userID int64, statuses []string) ([]*Booking, error)
	CountUserBookings(ctx context.Context, userID int64, statuses []string) (int, error)
	GetBookedEventIDs(ctx context.Context, userID int64, statuses []string) ([]int64, error)
	GetRecentViews(ctx context.Context, userID int64, limit int) ([]*EventView, error)
	InsertEventView(ctx context.Context, view *EventView) error
	GetBookingPairs(ctx context.Context, statuses []string) ([]BookingPair, error)
	GetBookingPairsForUsers(ctx context.Context, userIDs []int64, statuses []string) ([]BookingPair, error)

	// Events
	GetUpcomingEvents(ctx context.Context, city string, excludeEventIDs []int64, limit int) ([]*EventCandidate, error)
	GetTopBookedEvents(ctx context.Context, city string, limit int) ([]*EventCandidate, error)
	GetEventsByIDs(ctx context.Context, ids []int64) ([]*EventCandidate, error)

	// Taste profiles
	UpsertTasteProfile(ctx context.Context, profile *TasteProfile) error
	GetTasteProfile(ctx context.Context, userID int64) (*TasteProfile, error)
	GetAllTasteProfiles(ctx context.Context) ([]*TasteProfile, error)

	// Users
	GetUserIDsWithBookings(ctx context.Context, statuses []string) ([]int64, error)

	// Stored recommendations
	ReplaceUserRecos(ctx context.Context, userID int64, recos []*ScoredRecommendation) error
	GetStoredRecos(ctx context.Context, userID int64, limit int, city string) ([]*ScoredRecommendation, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// Booking & view methods

func (r *postgresRepository) GetUserBookings(ctx context.Context, userID int64, statuses []string) ([]*Booking, error) {
	query, args, err := sqlx.In(`
		SELECT id, user_id, event_id, status, ticket_price, created_at
		FROM bookings
		WHERE user_id = ? AND status IN (?)
		ORDER BY created_at DESC
	`, userID, statuses)
	if err != nil {
		return nil, err
	}

	var bookings []*Booking
	err = r.db.SelectContext(ctx, &bookings, r.db.Rebind(query), args...)
	return bookings, err
}

func (r *postgresRepository) CountUserBookings(ctx context.Context, userID int64, statuses []string) (int, error) {
	query, args, err := sqlx.In(`
		SELECT COUNT(*) FROM bookings
		WHERE user_id = ? AND status IN (?)
	`, userID, statuses)
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, r.db.Rebind(query), args...)
	return count, err
}

func (r *postgresRepository) GetBookedEventIDs(ctx context.Context, userID int64, statuses []string) ([]int64, error) {
	query, args, err := sqlx.In(`
		SELECT DISTINCT event_id FROM bookings
		WHERE user_id = ? AND status IN (?)
	`, userID, statuses)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = r.db.SelectContext(ctx, &ids, r.db.Rebind(query), args...)
	return ids, err
}

func (r *postgresRepository) GetRecentViews(ctx context.Context, userID int64, limit int) ([]*EventView, error) {
	query := `
		SELECT id, user_id, event_id, source, created_at
		FROM event_views
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var views []*EventView
	err := r.db.SelectContext(ctx, &views, query, userID, limit)
	return views, err
}

func (r *postgresRepository) InsertEventView(ctx context.Context, view *EventView) error {
	query := `
		INSERT INTO event_views (user_id, event_id, source)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	return r.db.QueryRowxContext(
		ctx, query,
		view.UserID, view.EventID, view.Source,
	).Scan(&view.ID, &view.CreatedAt)
}

func (r *postgresRepository) GetBookingPairs(ctx context.Context, statuses []string) ([]BookingPair, error) {
	query, args, err := sqlx.In(`
		SELECT DISTINCT user_id, event_id FROM bookings
		WHERE status IN (?)
	`, statuses)
	if err != nil {
		return nil, err
	}

	var pairs []BookingPair
	err = r.db.SelectContext(ctx, &pairs, r.db.Rebind(query), args...)
	return pairs, err
}

func (r *postgresRepository) GetBookingPairsForUsers(ctx context.Context, userIDs []int64, statuses []string) ([]BookingPair, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT DISTINCT user_id, event_id FROM bookings
		WHERE user_id IN (?) AND status IN (?)
	`, userIDs, statuses)
	if err != nil {
		return nil, err
	}

	var pairs []BookingPair
	err = r.db.SelectContext(ctx, &pairs, r.db.Rebind(query), args...)
	return pairs, err
}

// Event methods

const candidateColumns = `
	e.id, e.category, e.city, e.price, e.start_date,
	e.booked_seats, e.total_seats
`

// GetUpcomingEvents returns eligible future events. Excluded ids are filtered
// before the LIMIT so already-booked events never consume pool slots.
func (r *postgresRepository) GetUpcomingEvents(ctx context.Context, city string, excludeEventIDs []int64, limit int) ([]*EventCandidate, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM events e
		WHERE e.status = 'published'
		      AND e.hidden = FALSE
		      AND e.start_date > NOW()
	`

	args := []interface{}{}
	if city != "" {
		query += " AND e.city = ?"
		args = append(args, city)
	}
	if len(excludeEventIDs) > 0 {
		query += " AND e.id NOT IN (?)"
		args = append(args, excludeEventIDs)
	}

	query += fmt.Sprintf(" ORDER BY e.start_date ASC, e.booked_seats DESC LIMIT %d", limit)

	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}

	var events []*EventCandidate
	err = r.db.SelectContext(ctx, &events, r.db.Rebind(expanded), expandedArgs...)
	return events, err
}

func (r *postgresRepository) GetTopBookedEvents(ctx context.Context, city string, limit int) ([]*EventCandidate, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM events e
		WHERE e.status = 'published'
		      AND e.hidden = FALSE
		      AND e.start_date > NOW()
	`

	args := []interface{}{}
	if city != "" {
		query += " AND e.city = $1"
		args = append(args, city)
	}

	query += fmt.Sprintf(" ORDER BY e.booked_seats DESC, e.start_date ASC LIMIT %d", limit)

	var events []*EventCandidate
	err := r.db.SelectContext(ctx, &events, query, args...)
	return events, err
}

// GetEventsByIDs fetches event snapshots regardless of status; profile
// building needs features of past and hidden events too.
func (r *postgresRepository) GetEventsByIDs(ctx context.Context, ids []int64) ([]*EventCandidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT e.id, e.category, e.city, e.price, e.start_date,
		       e.booked_seats, e.total_seats
		FROM events e
		WHERE e.id IN (?)
	`, ids)
	if err != nil {
		return nil, err
	}

	var events []*EventCandidate
	err = r.db.SelectContext(ctx, &events, r.db.Rebind(query), args...)
	return events, err
}

// Taste profile methods

func (r *postgresRepository) UpsertTasteProfile(ctx context.Context, profile *TasteProfile) error {
	freqJSON, err := json.Marshal(profile.CategoryFrequency)
	if err != nil {
		return err
	}
	citiesJSON, _ := json.Marshal(profile.PreferredCities)
	slotsJSON, _ := json.Marshal(profile.PreferredTimeSlots)

	query := `
		INSERT INTO user_taste_profiles (
			user_id, category_frequency, median_price,
			preferred_cities, preferred_time_slots, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			category_frequency = $2,
			median_price = $3,
			preferred_cities = $4,
			preferred_time_slots = $5,
			updated_at = NOW()
		RETURNING updated_at
	`

	return r.db.QueryRowxContext(
		ctx, query,
		profile.UserID, freqJSON, profile.MedianPrice, citiesJSON, slotsJSON,
	).Scan(&profile.UpdatedAt)
}

func (r *postgresRepository) GetTasteProfile(ctx context.Context, userID int64) (*TasteProfile, error) {
	var row tasteProfileRow
	query := `
		SELECT user_id, category_frequency, median_price,
		       preferred_cities, preferred_time_slots, updated_at
		FROM user_taste_profiles
		WHERE user_id = $1
	`

	err := r.db.GetContext(ctx, &row, query, userID)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return row.toProfile()
}

func (r *postgresRepository) GetAllTasteProfiles(ctx context.Context) ([]*TasteProfile, error) {
	var rows []tasteProfileRow
	query := `
		SELECT user_id, category_frequency, median_price,
		       preferred_cities, preferred_time_slots, updated_at
		FROM user_taste_profiles
	`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	profiles := make([]*TasteProfile, 0, len(rows))
	for i := range rows {
		profile, err := rows[i].toProfile()
		if err != nil {
			log.Printf("Skipping taste profile: %v", err)
			continue
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}

func (row *tasteProfileRow) toProfile() (*TasteProfile, error) {
	profile := &TasteProfile{
		UserID:      row.UserID,
		MedianPrice: row.MedianPrice,
		UpdatedAt:   row.UpdatedAt,
	}

	if err := json.Unmarshal(row.CategoryFrequency, &profile.CategoryFrequency); err != nil {
		return nil, fmt.Errorf("malformed category_frequency for user %d: %w", row.UserID, err)
	}
	if err := json.Unmarshal(row.PreferredCities, &profile.PreferredCities); err != nil {
		return nil, fmt.Errorf("malformed preferred_cities for user %d: %w", row.UserID, err)
	}
	if err := json.Unmarshal(row.PreferredTimeSlots, &profile.PreferredTimeSlots); err != nil {
		return nil, fmt.Errorf("malformed preferred_time_slots for user %d: %w", row.UserID, err)
	}

	return profile, nil
}

// User methods

func (r *postgresRepository) GetUserIDsWithBookings(ctx context.Context, statuses []string) ([]int64, error) {
	var ids []int64

	if len(statuses) == 0 {
		query := `SELECT DISTINCT user_id FROM bookings ORDER BY user_id`
		err := r.db.SelectContext(ctx, &ids, query)
		return ids, err
	}

	query, args, err := sqlx.In(`
		SELECT DISTINCT user_id FROM bookings
		WHERE status IN (?)
		ORDER BY user_id
	`, statuses)
	if err != nil {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &ids, r.db.Rebind(query), args...)
	return ids, err
}

// Stored recommendation methods

// ReplaceUserRecos deletes the user's stored list and bulk-inserts the new
// one in a single transaction, so stale rows never persist alongside fresh
// ones. An empty list leaves just the delete: the correct terminal state for
// "no recommendations".
func (r *postgresRepository) ReplaceUserRecos(ctx context.Context, userID int64, recos []*ScoredRecommendation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_recos WHERE user_id = $1`, userID); err != nil {
		return err
	}

	if len(recos) > 0 {
		rows := make([]storedRecoRow, 0, len(recos))
		for i, reco := range recos {
			details, err := json.Marshal(reco.Reason.Details)
			if err != nil {
				return err
			}
			rows = append(rows, storedRecoRow{
				UserID:     userID,
				EventID:    reco.EventID,
				Score:      reco.Score,
				ReasonType: reco.Reason.Type,
				Details:    details,
				Position:   i,
			})
		}

		query := `
			INSERT INTO user_recos (user_id, event_id, score, reason_type, details, position)
			VALUES (:user_id, :event_id, :score, :reason_type, :details, :position)
		`
		if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *postgresRepository) GetStoredRecos(ctx context.Context, userID int64, limit int, city string) ([]*ScoredRecommendation, error) {
	query := `
		SELECT ur.event_id, ur.score, ur.reason_type, ur.details,
		       ` + candidateColumns + `
		FROM user_recos ur
		JOIN events e ON ur.event_id = e.id
		WHERE ur.user_id = $1
		      AND e.status = 'published'
		      AND e.hidden = FALSE
		      AND e.start_date > NOW()
	`

	args := []interface{}{userID}
	if city != "" {
		query += " AND e.city = $2"
		args = append(args, city)
	}

	query += fmt.Sprintf(" ORDER BY ur.score DESC, ur.position ASC LIMIT %d", limit)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recos []*ScoredRecommendation
	for rows.Next() {
		var (
			reco    ScoredRecommendation
			event   EventCandidate
			details json.RawMessage
		)

		err := rows.Scan(
			&reco.EventID, &reco.Score, &reco.Reason.Type, &details,
			&event.ID, &event.Category, &event.City, &event.Price,
			&event.StartDate, &event.BookedSeats, &event.TotalSeats,
		)
		if err != nil {
			return nil, err
		}

		if len(details) > 0 {
			json.Unmarshal(details, &reco.Reason.Details)
		}

		reco.Event = &event
		recos = append(recos, &reco)
	}

	return recos, rows.Err()
}
