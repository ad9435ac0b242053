package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"roadtrip/internal/db"
)

type Store interface {
	Create(ctx context.Context, review *Review) error
	GetByID(ctx context.Context, id string) (*Review, error)
	ListByTrip(ctx context.Context, tripID string, limit, offset int) ([]Review, int, error)
	Stats(ctx context.Context, tripID string) (Stats, error)
	HasReview(ctx context.Context, tripID, userID string) (bool, error)
	Update(ctx context.Context, review *Review) error
	ToggleHelpful(ctx context.Context, id, userID string) (helpful []string, marked bool, err error)
	Delete(ctx context.Context, id string) error
	DeleteByTrip(ctx context.Context, tripID string) error
	DeleteByUser(ctx context.Context, userID string) error
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Store {
	return &Repository{db: q}
}

const reviewSelect = `
	SELECT r.id, r.comment, r.rating, r.user_id, r.roadtrip_id, r.images, r.trip_date, r.travel_type,
	       r.verified, r.is_edited, r.edited_at, r.created_at, r.updated_at,
	       COALESCE((SELECT array_agg(h.user_id ORDER BY h.created_at) FROM review_helpful h WHERE h.review_id = r.id), '{}')
	FROM reviews r`

func scanReview(row pgx.Row) (*Review, error) {
	var (
		r          Review
		travelType string
	)
	err := row.Scan(
		&r.ID, &r.Comment, &r.Rating, &r.UserID, &r.TripID, &r.Images, &r.TripDate, &travelType,
		&r.Verified, &r.IsEdited, &r.EditedAt, &r.CreatedAt, &r.UpdatedAt, &r.Helpful,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.TravelType = TravelType(travelType)
	return &r, nil
}

func (r *Repository) Create(ctx context.Context, review *Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	review.applyDefaults()
	now := time.Now().UTC()
	review.CreatedAt, review.UpdatedAt = now, now

	query := `
        INSERT INTO reviews (id, comment, rating, user_id, roadtrip_id, images, trip_date, travel_type, verified, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, query,
		review.ID, review.Comment, review.Rating, review.UserID, review.TripID, review.Images,
		review.TripDate, string(review.TravelType), review.Verified, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReview
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Review, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return scanReview(r.db.QueryRow(ctx, reviewSelect+` WHERE r.id = $1`, id))
}

func (r *Repository) ListByTrip(ctx context.Context, tripID string, limit, offset int) ([]Review, int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE roadtrip_id = $1`, tripID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		reviewSelect+` WHERE r.roadtrip_id = $1 ORDER BY r.created_at DESC, r.id LIMIT $2 OFFSET $3`,
		tripID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *rv)
	}
	return list, total, rows.Err()
}

func (r *Repository) Stats(ctx context.Context, tripID string) (Stats, error) {
	query := `
        SELECT
            COUNT(id) as total_reviews,
            COALESCE(AVG(rating), 0)::float8 as average_rating
        FROM reviews
        WHERE roadtrip_id = $1
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var (
		total   int
		average float64
	)
	if err := r.db.QueryRow(ctx, query, tripID).Scan(&total, &average); err != nil {
		return Stats{}, err
	}
	return NewStats(average, total), nil
}

// HasReview returns true if a review by this user on this trip already exists.
func (r *Repository) HasReview(ctx context.Context, tripID, userID string) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS (
          SELECT 1 FROM reviews
          WHERE roadtrip_id = $1 AND user_id = $2
        )
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := r.db.QueryRow(ctx, query, tripID, userID).Scan(&exists)
	return exists, err
}

func (r *Repository) Update(ctx context.Context, review *Review) error {
	review.applyDefaults()
	review.UpdatedAt = time.Now().UTC()

	query := `
	  UPDATE reviews
	  SET comment = $2, rating = $3, images = $4, trip_date = $5, travel_type = $6,
	      is_edited = $7, edited_at = $8, updated_at = $9
	  WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, query,
		review.ID, review.Comment, review.Rating, review.Images, review.TripDate,
		string(review.TravelType), review.IsEdited, review.EditedAt, review.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ToggleHelpful(ctx context.Context, id, userID string) ([]string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var found bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reviews WHERE id = $1)`, id).Scan(&found); err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, ErrNotFound
	}

	var added bool
	err := r.db.QueryRow(ctx, `
	  WITH del AS (
	    DELETE FROM review_helpful WHERE review_id = $1 AND user_id = $2 RETURNING 1
	  ), ins AS (
	    INSERT INTO review_helpful (review_id, user_id)
	    SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM del)
	    ON CONFLICT DO NOTHING
	    RETURNING 1
	  )
	  SELECT EXISTS (SELECT 1 FROM ins)`, id, userID).Scan(&added)
	if err != nil {
		return nil, false, fmt.Errorf("toggle helpful: %w", err)
	}

	var helpful []string
	err = r.db.QueryRow(ctx,
		`SELECT COALESCE(array_agg(user_id ORDER BY created_at), '{}') FROM review_helpful WHERE review_id = $1`, id,
	).Scan(&helpful)
	return helpful, added, err
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteByTrip(ctx context.Context, tripID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE roadtrip_id = $1`, tripID)
	return err
}

func (r *Repository) DeleteByUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if _, err := r.db.Exec(ctx, `DELETE FROM review_helpful WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE user_id = $1`, userID)
	return err
}
