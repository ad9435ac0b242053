package comments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"roadtrip/internal/db"
)

type Store interface {
	Create(ctx context.Context, comment *Comment) error
	GetByID(ctx context.Context, id string) (*Comment, error)
	ListByTrip(ctx context.Context, tripID string, limit, offset int) ([]Comment, int, error)
	// RepliesFor maps each parent ID to the IDs of its direct replies.
	RepliesFor(ctx context.Context, parentIDs []string) (map[string][]string, error)
	// UpdateText changes the text and marks the comment edited when the text
	// differs. It returns the stored comment.
	UpdateText(ctx context.Context, id, text string) (*Comment, error)
	ToggleLike(ctx context.Context, id, userID string) (likes []string, liked bool, err error)
	// Delete removes the comment together with its replies.
	Delete(ctx context.Context, id string) error
	DeleteByTrip(ctx context.Context, tripID string) error
	DeleteByUser(ctx context.Context, userID string) error
	CountByTrip(ctx context.Context, tripID string) (int, error)
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Store {
	return &Repository{db: q}
}

const commentSelect = `
	SELECT c.id, c.text, c.user_id, c.roadtrip_id, c.parent_comment, c.is_edited, c.edited_at,
	       c.created_at, c.updated_at,
	       COALESCE((SELECT array_agg(l.user_id ORDER BY l.created_at) FROM comment_likes l WHERE l.comment_id = c.id), '{}')
	FROM comments c`

func scanComment(row pgx.Row) (*Comment, error) {
	var c Comment
	err := row.Scan(
		&c.ID, &c.Text, &c.UserID, &c.TripID, &c.ParentID, &c.IsEdited, &c.EditedAt,
		&c.CreatedAt, &c.UpdatedAt, &c.Likes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Replies = []string{}
	return &c, nil
}

func (r *Repository) Create(ctx context.Context, comment *Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	comment.CreatedAt, comment.UpdatedAt = now, now
	comment.Likes, comment.Replies = []string{}, []string{}

	query := `
	  INSERT INTO comments (id, text, user_id, roadtrip_id, parent_comment, created_at, updated_at)
	  VALUES ($1, $2, $3, $4, $5, $6, $6)`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, query, comment.ID, comment.Text, comment.UserID, comment.TripID, comment.ParentID, now)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return scanComment(r.db.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
}

func (r *Repository) ListByTrip(ctx context.Context, tripID string, limit, offset int) ([]Comment, int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE roadtrip_id = $1`, tripID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		commentSelect+` WHERE c.roadtrip_id = $1 ORDER BY c.created_at DESC, c.id LIMIT $2 OFFSET $3`,
		tripID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *c)
	}
	return list, total, rows.Err()
}

func (r *Repository) RepliesFor(ctx context.Context, parentIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT parent_comment, id FROM comments WHERE parent_comment = ANY($1) ORDER BY created_at`,
		parentIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var parent, id string
		if err := rows.Scan(&parent, &id); err != nil {
			return nil, err
		}
		out[parent] = append(out[parent], id)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateText(ctx context.Context, id, text string) (*Comment, error) {
	query := `
	  UPDATE comments
	  SET text = $2,
	      is_edited = is_edited OR text <> $2,
	      edited_at = CASE WHEN text <> $2 THEN $3 ELSE edited_at END,
	      updated_at = $3
	  WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, query, id, text, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return scanComment(r.db.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
}

func (r *Repository) ToggleLike(ctx context.Context, id, userID string) ([]string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var found bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM comments WHERE id = $1)`, id).Scan(&found); err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, ErrNotFound
	}

	var added bool
	err := r.db.QueryRow(ctx, `
	  WITH del AS (
	    DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2 RETURNING 1
	  ), ins AS (
	    INSERT INTO comment_likes (comment_id, user_id)
	    SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM del)
	    ON CONFLICT DO NOTHING
	    RETURNING 1
	  )
	  SELECT EXISTS (SELECT 1 FROM ins)`, id, userID).Scan(&added)
	if err != nil {
		return nil, false, fmt.Errorf("toggle comment like: %w", err)
	}

	var likes []string
	err = r.db.QueryRow(ctx,
		`SELECT COALESCE(array_agg(user_id ORDER BY created_at), '{}') FROM comment_likes WHERE comment_id = $1`, id,
	).Scan(&likes)
	return likes, added, err
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	// Replies go through the parent_comment foreign key cascade.
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteByTrip(ctx context.Context, tripID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM comments WHERE roadtrip_id = $1`, tripID)
	return err
}

func (r *Repository) DeleteByUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if _, err := r.db.Exec(ctx, `DELETE FROM comment_likes WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM comments WHERE user_id = $1`, userID)
	return err
}

func (r *Repository) CountByTrip(ctx context.Context, tripID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE roadtrip_id = $1`, tripID).Scan(&n)
	return n, err
}
