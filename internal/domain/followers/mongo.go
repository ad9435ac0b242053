package followers

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"roadtrip/internal/db"
)

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(database *mongo.Database) Store {
	return &MongoRepository{col: database.Collection(db.ColFollows)}
}

func (r *MongoRepository) Follow(ctx context.Context, followerID, userID string) error {
	if followerID == userID {
		return ErrSelfFollow
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.col.InsertOne(ctx, Follow{FollowerID: followerID, UserID: userID, CreatedAt: time.Now().UTC()})
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	return err
}

func (r *MongoRepository) Unfollow(ctx context.Context, followerID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.D{{Key: "follower_id", Value: followerID}, {Key: "user_id", Value: userID}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFollowing
	}
	return nil
}

func (r *MongoRepository) Followers(ctx context.Context, userID string) ([]string, error) {
	edges, err := r.edges(ctx, bson.D{{Key: "user_id", Value: userID}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowerID
	}
	return ids, nil
}

func (r *MongoRepository) Following(ctx context.Context, userID string) ([]string, error) {
	edges, err := r.edges(ctx, bson.D{{Key: "follower_id", Value: userID}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.UserID
	}
	return ids, nil
}

func (r *MongoRepository) edges(ctx context.Context, filter bson.D) ([]Follow, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return db.FindMany[Follow](ctx, r.col, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *MongoRepository) DeleteByUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.col.DeleteMany(ctx, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "follower_id", Value: userID}},
		bson.D{{Key: "user_id", Value: userID}},
	}}})
	return err
}
