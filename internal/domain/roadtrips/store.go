package roadtrips

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"roadtrip/internal/db"
)

type Store interface {
	Create(ctx context.Context, trip *RoadTrip) error
	GetByID(ctx context.Context, id string) (*RoadTrip, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]RoadTrip, int, error)
	// Search matches title, description and stop names case-insensitively
	// among listed trips, newest first.
	Search(ctx context.Context, query string, limit int) ([]RoadTrip, error)
	// Update writes every mutable field. The owner is never written.
	Update(ctx context.Context, trip *RoadTrip) error
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, tripID, userID string) (likes []string, liked bool, err error)
	ToggleSave(ctx context.Context, tripID, userID string) (saves []string, saved bool, err error)
	IncrementViews(ctx context.Context, id string) error
	IDsByOwner(ctx context.Context, ownerID string) ([]string, error)
	IDsSavedBy(ctx context.Context, userID string) ([]string, error)
	// RemoveUser drops userID from every likes and saves set.
	RemoveUser(ctx context.Context, userID string) error
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Store {
	return &Repository{db: q}
}

const tripSelect = `
	SELECT t.id, t.title, t.description, t.cover_image, t.images, t.route, t.tags,
	       t.difficulty, t.duration, t.season, t.budget, t.created_by, t.views,
	       t.is_public, t.is_featured, t.status, t.created_at, t.updated_at,
	       COALESCE((SELECT array_agg(l.user_id ORDER BY l.created_at) FROM roadtrip_likes l WHERE l.roadtrip_id = t.id), '{}'),
	       COALESCE((SELECT array_agg(s.user_id ORDER BY s.created_at) FROM roadtrip_saves s WHERE s.roadtrip_id = t.id), '{}')
	FROM roadtrips t`

func scanTrip(row pgx.Row) (*RoadTrip, error) {
	var (
		t          RoadTrip
		difficulty string
		status     string
		season     []string
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.CoverImage, &t.Images, &t.Route, &t.Tags,
		&difficulty, &t.Duration, &season, &t.Budget, &t.CreatedBy, &t.Views,
		&t.IsPublic, &t.IsFeatured, &status, &t.CreatedAt, &t.UpdatedAt,
		&t.Likes, &t.Saves,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.Difficulty = Difficulty(difficulty)
	t.Status = Status(status)
	t.Season = stringsToSeasons(season)
	return &t, nil
}

func (r *Repository) collect(rows pgx.Rows) ([]RoadTrip, error) {
	defer rows.Close()

	trips := []RoadTrip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

func (r *Repository) Create(ctx context.Context, trip *RoadTrip) error {
	if trip.ID == "" {
		trip.ID = uuid.NewString()
	}
	trip.ApplyDefaults()
	now := time.Now().UTC()
	trip.CreatedAt, trip.UpdatedAt = now, now

	query := `
	  INSERT INTO roadtrips (id, title, description, cover_image, images, route, tags, difficulty, duration,
	                         season, budget, created_by, views, is_public, is_featured, status, created_at, updated_at)
	  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, query,
		trip.ID, trip.Title, trip.Description, trip.CoverImage, trip.Images, trip.Route, trip.Tags,
		string(trip.Difficulty), trip.Duration, seasonsToStrings(trip.Season), trip.Budget, trip.CreatedBy,
		trip.Views, trip.IsPublic, trip.IsFeatured, string(trip.Status), now,
	)
	if err != nil {
		return fmt.Errorf("create road trip: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*RoadTrip, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return scanTrip(r.db.QueryRow(ctx, tripSelect+` WHERE t.id = $1`, id))
}

func (r *Repository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]RoadTrip, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.PublicOnly {
		conds = append(conds, `t.is_public AND t.status = 'published'`)
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conds = append(conds, fmt.Sprintf(`t.created_by = $%d`, len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM roadtrips t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count road trips: %w", err)
	}

	args = append(args, limit, offset)
	query := tripSelect + where + fmt.Sprintf(` ORDER BY t.created_at DESC, t.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list road trips: %w", err)
	}
	trips, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return trips, total, nil
}

// escapeLike makes user input literal inside an ILIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *Repository) Search(ctx context.Context, query string, limit int) ([]RoadTrip, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"

	sql := tripSelect + `
	  WHERE t.is_public AND t.status = 'published'
	    AND (t.title ILIKE $1 OR t.description ILIKE $1
	         OR EXISTS (SELECT 1 FROM jsonb_array_elements(t.route) stop WHERE stop->>'locationName' ILIKE $1))
	  ORDER BY t.created_at DESC, t.id
	  LIMIT $2`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, sql, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search road trips: %w", err)
	}
	return r.collect(rows)
}

func (r *Repository) Update(ctx context.Context, trip *RoadTrip) error {
	trip.ApplyDefaults()
	trip.UpdatedAt = time.Now().UTC()

	query := `
	  UPDATE roadtrips
	  SET title = $2, description = $3, cover_image = $4, images = $5, route = $6, tags = $7,
	      difficulty = $8, duration = $9, season = $10, budget = $11, is_public = $12,
	      is_featured = $13, status = $14, updated_at = $15
	  WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, query,
		trip.ID, trip.Title, trip.Description, trip.CoverImage, trip.Images, trip.Route, trip.Tags,
		string(trip.Difficulty), trip.Duration, seasonsToStrings(trip.Season), trip.Budget, trip.IsPublic,
		trip.IsFeatured, string(trip.Status), trip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update road trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM roadtrips WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// toggle removes the (trip, user) row when present and inserts it otherwise,
// in a single statement.
func (r *Repository) toggle(ctx context.Context, table, tripID, userID string) ([]string, bool, error) {
	query := fmt.Sprintf(`
	  WITH del AS (
	    DELETE FROM %[1]s WHERE roadtrip_id = $1 AND user_id = $2 RETURNING 1
	  ), ins AS (
	    INSERT INTO %[1]s (roadtrip_id, user_id)
	    SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM del)
	    ON CONFLICT DO NOTHING
	    RETURNING 1
	  )
	  SELECT EXISTS (SELECT 1 FROM ins)`, table)

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var added bool
	if err := r.db.QueryRow(ctx, query, tripID, userID).Scan(&added); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("toggle %s: %w", table, err)
	}

	var members []string
	err := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT COALESCE(array_agg(user_id ORDER BY created_at), '{}') FROM %s WHERE roadtrip_id = $1`, table),
		tripID,
	).Scan(&members)
	if err != nil {
		return nil, false, err
	}
	return members, added, nil
}

func (r *Repository) ToggleLike(ctx context.Context, tripID, userID string) ([]string, bool, error) {
	if err := r.exists(ctx, tripID); err != nil {
		return nil, false, err
	}
	return r.toggle(ctx, "roadtrip_likes", tripID, userID)
}

func (r *Repository) ToggleSave(ctx context.Context, tripID, userID string) ([]string, bool, error) {
	if err := r.exists(ctx, tripID); err != nil {
		return nil, false, err
	}
	return r.toggle(ctx, "roadtrip_saves", tripID, userID)
}

func (r *Repository) exists(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var found bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roadtrips WHERE id = $1)`, id).Scan(&found); err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) IncrementViews(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, `UPDATE roadtrips SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) IDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	return r.ids(ctx, `SELECT id FROM roadtrips WHERE created_by = $1 ORDER BY created_at DESC`, ownerID)
}

func (r *Repository) IDsSavedBy(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, `SELECT roadtrip_id FROM roadtrip_saves WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (r *Repository) ids(ctx context.Context, query string, arg string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) RemoveUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if _, err := r.db.Exec(ctx, `DELETE FROM roadtrip_likes WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM roadtrip_saves WHERE user_id = $1`, userID)
	return err
}
