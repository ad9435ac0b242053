package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"

	"roadtrip/internal/db"
	"roadtrip/internal/domain/comments"
	"roadtrip/internal/domain/followers"
	"roadtrip/internal/domain/reviews"
	"roadtrip/internal/domain/roadtrips"
	"roadtrip/internal/domain/users"
)

type Container struct {
	pool      *pgxpool.Pool // nil outside postgres; multi-step deletes then run without a tx
	Users     users.Store
	RoadTrips roadtrips.Store
	Comments  comments.Store
	Reviews   reviews.Store
	Followers followers.Store
}

func NewPostgresContainer(pool *pgxpool.Pool) *Container {
	c := newPostgresRepos(pool)
	c.pool = pool
	return c
}

func newPostgresRepos(q db.Querier) *Container {
	return &Container{
		Users:     users.NewRepository(q),
		RoadTrips: roadtrips.NewRepository(q),
		Comments:  comments.NewRepository(q),
		Reviews:   reviews.NewRepository(q),
		Followers: followers.NewRepository(q),
	}
}

func NewMongoContainer(database *mongo.Database) *Container {
	return &Container{
		Users:     users.NewMongoRepository(database),
		RoadTrips: roadtrips.NewMongoRepository(database),
		Comments:  comments.NewMongoRepository(database),
		Reviews:   reviews.NewMongoRepository(database),
		Followers: followers.NewMongoRepository(database),
	}
}

// withTx runs fn against tx-scoped repositories when a pool is set, and
// against c itself otherwise.
func (c *Container) withTx(ctx context.Context, fn func(s *Container) error) error {
	if c.pool == nil {
		return fn(c)
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	if err := fn(newPostgresRepos(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteRoadTrip removes a trip together with its comments and reviews.
func (c *Container) DeleteRoadTrip(ctx context.Context, id string) error {
	return c.withTx(ctx, func(s *Container) error {
		return s.deleteTrip(ctx, id)
	})
}

func (c *Container) deleteTrip(ctx context.Context, id string) error {
	if err := c.Comments.DeleteByTrip(ctx, id); err != nil {
		return fmt.Errorf("delete comments of trip %s: %w", id, err)
	}
	if err := c.Reviews.DeleteByTrip(ctx, id); err != nil {
		return fmt.Errorf("delete reviews of trip %s: %w", id, err)
	}
	return c.RoadTrips.Delete(ctx, id)
}

// DeleteUser removes the account, the trips it created (with their comments
// and reviews), its own comments, reviews and follow edges, and its entries
// in other trips' likes and saves.
func (c *Container) DeleteUser(ctx context.Context, id string) error {
	return c.withTx(ctx, func(s *Container) error {
		if _, err := s.Users.GetByID(ctx, id); err != nil {
			return err
		}

		tripIDs, err := s.RoadTrips.IDsByOwner(ctx, id)
		if err != nil {
			return err
		}
		for _, tripID := range tripIDs {
			if err := s.deleteTrip(ctx, tripID); err != nil && !errors.Is(err, roadtrips.ErrNotFound) {
				return err
			}
		}

		if err := s.Comments.DeleteByUser(ctx, id); err != nil {
			return fmt.Errorf("delete comments of user: %w", err)
		}
		if err := s.Reviews.DeleteByUser(ctx, id); err != nil {
			return fmt.Errorf("delete reviews of user: %w", err)
		}
		if err := s.Followers.DeleteByUser(ctx, id); err != nil {
			return fmt.Errorf("delete follows of user: %w", err)
		}
		if err := s.RoadTrips.RemoveUser(ctx, id); err != nil {
			return fmt.Errorf("remove user from trips: %w", err)
		}
		return s.Users.Delete(ctx, id)
	})
}

// Profile loads the derived lists of a user concurrently.
func (c *Container) Profile(ctx context.Context, u *users.User) (*users.Profile, error) {
	p := &users.Profile{User: u}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p.CreatedTrips, err = c.RoadTrips.IDsByOwner(ctx, u.ID)
		return err
	})
	g.Go(func() (err error) {
		p.SavedTrips, err = c.RoadTrips.IDsSavedBy(ctx, u.ID)
		return err
	})
	g.Go(func() (err error) {
		p.Followers, err = c.Followers.Followers(ctx, u.ID)
		return err
	})
	g.Go(func() (err error) {
		p.Following, err = c.Followers.Following(ctx, u.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p, nil
}
