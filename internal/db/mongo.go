package db

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	ColUsers     = "users"
	ColFollows   = "follows"
	ColRoadTrips = "roadtrips"
	ColComments  = "comments"
	ColReviews   = "reviews"
)

// NewMongo connects, pings and ensures the indexes every store relies on.
func NewMongo(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	database := client.Database(dbName)
	if err := EnsureIndexes(ctx, database); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	return client, database, nil
}

// EnsureIndexes creates the secondary and unique indexes. It is idempotent.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		{ColUsers, bson.D{{Key: "email", Value: 1}}, true},
		{ColUsers, bson.D{{Key: "username", Value: 1}}, true},
		{ColUsers, bson.D{{Key: "created_at", Value: -1}}, false},

		{ColFollows, bson.D{{Key: "follower_id", Value: 1}, {Key: "user_id", Value: 1}}, true},
		{ColFollows, bson.D{{Key: "user_id", Value: 1}}, false},

		{ColRoadTrips, bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}}, false},
		{ColRoadTrips, bson.D{{Key: "is_public", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}, false},
		{ColRoadTrips, bson.D{{Key: "saves", Value: 1}}, false},
		{ColRoadTrips, bson.D{{Key: "tags", Value: 1}}, false},

		{ColComments, bson.D{{Key: "road_trip", Value: 1}, {Key: "created_at", Value: -1}}, false},
		{ColComments, bson.D{{Key: "parent_comment", Value: 1}}, false},
		{ColComments, bson.D{{Key: "user", Value: 1}}, false},

		{ColReviews, bson.D{{Key: "user", Value: 1}, {Key: "road_trip", Value: 1}}, true},
		{ColReviews, bson.D{{Key: "road_trip", Value: 1}, {Key: "created_at", Value: -1}}, false},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := database.Collection(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}
	return nil
}

// FindMany runs a find and decodes every document into T.
func FindMany[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := []T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// DistinctStrings returns the string values of field across matching documents.
func DistinctStrings(ctx context.Context, col *mongo.Collection, field string, filter any) ([]string, error) {
	res := col.Distinct(ctx, field, filter)
	if err := res.Err(); err != nil {
		return nil, err
	}
	var values []string
	if err := res.Decode(&values); err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// ToggleMember flips userID's membership of the array field of document id
// with a single pipeline update, so concurrent toggles never lose writes. It
// returns the resulting members and whether userID is now one of them.
func ToggleMember(ctx context.Context, col *mongo.Collection, field, id, userID string) ([]string, bool, error) {
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, bson.A{}}}}
	update := bson.A{
		bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: bson.D{{Key: "$cond", Value: bson.D{
			{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{userID, current}}}},
			{Key: "then", Value: bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: current},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", userID}}}},
			}}}},
			{Key: "else", Value: bson.D{{Key: "$concatArrays", Value: bson.A{current, bson.A{userID}}}}},
		}}}}}}},
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: field, Value: 1}})

	var doc bson.Raw
	if err := col.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, opts).Decode(&doc); err != nil {
		return nil, false, err
	}

	members := []string{}
	if val, err := doc.LookupErr(field); err == nil {
		if err := val.Unmarshal(&members); err != nil {
			return nil, false, err
		}
	}
	return members, slices.Contains(members, userID), nil
}
