package reviews

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
	return &MongoRepository{col: database.Collection(db.ColReviews)}
}

func (r *MongoRepository) Create(ctx context.Context, review *Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	review.applyDefaults()
	now := time.Now().UTC()
	review.CreatedAt, review.UpdatedAt = now, now

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.col.InsertOne(ctx, review)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateReview
	}
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Review, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var rv Review
	if err := r.col.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&rv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rv, nil
}

func (r *MongoRepository) ListByTrip(ctx context.Context, tripID string, limit, offset int) ([]Review, int, error) {
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

	list, err := db.FindMany[Review](ctx, r.col, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return list, int(total), nil
}

func (r *MongoRepository) Stats(ctx context.Context, tripID string) (Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "road_trip", Value: tripID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "average", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, err
	}
	defer cursor.Close(ctx)

	var row struct {
		Average float64 `bson:"average"`
		Total   int     `bson:"total"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&row); err != nil {
			return Stats{}, err
		}
	}
	if err := cursor.Err(); err != nil {
		return Stats{}, err
	}
	return NewStats(row.Average, row.Total), nil
}

func (r *MongoRepository) HasReview(ctx context.Context, tripID, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	n, err := r.col.CountDocuments(ctx,
		bson.D{{Key: "road_trip", Value: tripID}, {Key: "user", Value: userID}},
		options.Count().SetLimit(1),
	)
	return n > 0, err
}

func (r *MongoRepository) Update(ctx context.Context, review *Review) error {
	review.applyDefaults()
	review.UpdatedAt = time.Now().UTC()

	set := bson.D{
		{Key: "comment", Value: review.Comment},
		{Key: "rating", Value: review.Rating},
		{Key: "images", Value: review.Images},
		{Key: "trip_date", Value: review.TripDate},
		{Key: "travel_type", Value: review.TravelType},
		{Key: "is_edited", Value: review.IsEdited},
		{Key: "edited_at", Value: review.EditedAt},
		{Key: "updated_at", Value: review.UpdatedAt},
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.D{{Key: "_id", Value: review.ID}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ToggleHelpful(ctx context.Context, id, userID string) ([]string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	helpful, marked, err := db.ToggleMember(ctx, r.col, "helpful", id, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, ErrNotFound
	}
	return helpful, marked, err
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
	return nil
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

	if _, err := r.col.DeleteMany(ctx, bson.D{{Key: "user", Value: userID}}); err != nil {
		return err
	}
	_, err := r.col.UpdateMany(ctx, bson.D{{Key: "helpful", Value: userID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "helpful", Value: userID}}}})
	return err
}
