package roadtrips

import (
	"context"
	"errors"
	"regexp"
	"strings"
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
	return &MongoRepository{col: database.Collection(db.ColRoadTrips)}
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}

func listedFilter() bson.D {
	return bson.D{{Key: "is_public", Value: true}, {Key: "status", Value: StatusPublished}}
}

func (r *MongoRepository) Create(ctx context.Context, trip *RoadTrip) error {
	if trip.ID == "" {
		trip.ID = uuid.NewString()
	}
	trip.ApplyDefaults()
	now := time.Now().UTC()
	trip.CreatedAt, trip.UpdatedAt = now, now

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.col.InsertOne(ctx, trip)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*RoadTrip, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var t RoadTrip
	if err := r.col.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]RoadTrip, int, error) {
	query := bson.D{}
	if filter.PublicOnly {
		query = listedFilter()
	}
	if filter.OwnerID != "" {
		query = append(query, bson.E{Key: "created_by", Value: filter.OwnerID})
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(newestFirst).SetSkip(int64(offset)).SetLimit(int64(limit))
	trips, err := db.FindMany[RoadTrip](ctx, r.col, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return trips, int(total), nil
}

func (r *MongoRepository) Search(ctx context.Context, query string, limit int) ([]RoadTrip, error) {
	pattern := bson.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(query)), Options: "i"}

	filter := append(listedFilter(), bson.E{Key: "$or", Value: bson.A{
		bson.D{{Key: "title", Value: pattern}},
		bson.D{{Key: "description", Value: pattern}},
		bson.D{{Key: "route.location_name", Value: pattern}},
	}})

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return db.FindMany[RoadTrip](ctx, r.col, filter, options.Find().SetSort(newestFirst).SetLimit(int64(limit)))
}

func (r *MongoRepository) Update(ctx context.Context, trip *RoadTrip) error {
	trip.ApplyDefaults()
	trip.UpdatedAt = time.Now().UTC()

	set := bson.D{
		{Key: "title", Value: trip.Title},
		{Key: "description", Value: trip.Description},
		{Key: "cover_image", Value: trip.CoverImage},
		{Key: "images", Value: trip.Images},
		{Key: "route", Value: trip.Route},
		{Key: "tags", Value: trip.Tags},
		{Key: "difficulty", Value: trip.Difficulty},
		{Key: "duration", Value: trip.Duration},
		{Key: "season", Value: trip.Season},
		{Key: "budget", Value: trip.Budget},
		{Key: "is_public", Value: trip.IsPublic},
		{Key: "is_featured", Value: trip.IsFeatured},
		{Key: "status", Value: trip.Status},
		{Key: "updated_at", Value: trip.UpdatedAt},
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.D{{Key: "_id", Value: trip.ID}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
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

func (r *MongoRepository) toggle(ctx context.Context, field, tripID, userID string) ([]string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	members, added, err := db.ToggleMember(ctx, r.col, field, tripID, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, ErrNotFound
	}
	return members, added, err
}

func (r *MongoRepository) ToggleLike(ctx context.Context, tripID, userID string) ([]string, bool, error) {
	return r.toggle(ctx, "likes", tripID, userID)
}

func (r *MongoRepository) ToggleSave(ctx context.Context, tripID, userID string) ([]string, bool, error) {
	return r.toggle(ctx, "saves", tripID, userID)
}

func (r *MongoRepository) IncrementViews(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$inc", Value: bson.D{{Key: "views", Value: 1}}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) IDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	return r.ids(ctx, bson.D{{Key: "created_by", Value: ownerID}})
}

func (r *MongoRepository) IDsSavedBy(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, bson.D{{Key: "saves", Value: userID}})
}

func (r *MongoRepository) ids(ctx context.Context, filter bson.D) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	type idOnly struct {
		ID string `bson:"_id"`
	}
	opts := options.Find().SetSort(newestFirst).SetProjection(bson.D{{Key: "_id", Value: 1}})
	docs, err := db.FindMany[idOnly](ctx, r.col, filter, opts)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (r *MongoRepository) RemoveUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.col.UpdateMany(ctx,
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "likes", Value: userID}},
			bson.D{{Key: "saves", Value: userID}},
		}}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "likes", Value: userID}, {Key: "saves", Value: userID}}}},
	)
	return err
}
