package comments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"roadtrip/internal/db"
)

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(database *mongo.Database) Store {
	return &MongoRepository{col: database.Collection(db.ColComments)}
}

func (r *MongoRepository) Create(ctx context.Context, comment *Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	comment.CreatedAt, comment.UpdatedAt = now, now
	comment.Likes, comment.Replies = []string{}, []string{}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.col.InsertOne(ctx, comment)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var c Comment
	if err := r.col.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Replies = []string{}
	return &c, nil
}

func (r *MongoRepository) ListByTrip(ctx context.Context, tripID string, limit, offset int) ([]Comment, int, error) {
	filter := bson.D{{Key: "road_trip", Value: tripID}}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	list, err := db.FindMany[Comment](ctx, r.col, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	for i := range list {
		list[i].Replies = []string{}
	}
	return list, int(total), nil
}

func (r *MongoRepository) RepliesFor(ctx context.Context, parentIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	type reply struct {
		ID       string `bson:"_id"`
		ParentID string `bson:"parent_comment"`
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: "parent_comment", Value: 1}})

	replies, err := db.FindMany[reply](ctx, r.col, bson.D{{Key: "parent_comment", Value: bson.D{{Key: "$in", Value: parentIDs}}}}, opts)
	if err != nil {
		return nil, err
	}
	for _, rep := range replies {
		out[rep.ParentID] = append(out[rep.ParentID], rep.ID)
	}
	return out, nil
}

func (r *MongoRepository) UpdateText(ctx context.Context, id, text string) (*Comment, error) {
	now := time.Now().UTC()
	literal := bson.D{{Key: "$literal", Value: text}}
	changed := bson.D{{Key: "$ne", Value: bson.A{"$text", literal}}}
	update := bson.A{
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "is_edited", Value: bson.D{{Key: "$or", Value: bson.A{"$is_edited", changed}}}},
			{Key: "edited_at", Value: bson.D{{Key: "$cond", Value: bson.A{changed, now, "$edited_at"}}}},
			{Key: "text", Value: literal},
			{Key: "updated_at", Value: now},
		}}},
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var c Comment
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.col.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, opts).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Replies = []string{}
	return &c, nil
}

func (r *MongoRepository) ToggleLike(ctx context.Context, id, userID string) ([]string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	likes, liked, err := db.ToggleMember(ctx, r.col, "likes", id, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, ErrNotFound
	}
	return likes, liked, err
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	_, err = r.col.DeleteMany(ctx, bson.D{{Key: "parent_comment", Value: id}})
	return err
}

func (r *MongoRepository) DeleteByTrip(ctx context.Context, tripID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.col.DeleteMany(ctx, bson.D{{Key: "road_trip", Value: tripID}})
	return err
}

func (r *MongoRepository) DeleteByUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	ids, err := db.DistinctStrings(ctx, r.col, "_id", bson.D{{Key: "user", Value: userID}})
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		if _, err := r.col.DeleteMany(ctx, bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}},
			bson.D{{Key: "parent_comment", Value: bson.D{{Key: "$in", Value: ids}}}},
		}}}); err != nil {
			return err
		}
	}
	_, err = r.col.UpdateMany(ctx, bson.D{{Key: "likes", Value: userID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "likes", Value: userID}}}})
	return err
}

func (r *MongoRepository) CountByTrip(ctx context.Context, tripID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.D{{Key: "road_trip", Value: tripID}})
	return int(n), err
}
