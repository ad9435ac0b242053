package users

import (
	"context"
	"errors"
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
	return &MongoRepository{col: database.Collection(db.ColUsers)}
}

func wrapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), "email") {
			return ErrDuplicateEmail
		}
		return ErrDuplicateUsername
	}
	return err
}

func (r *MongoRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	user.Username = Normalize(user.Username)
	user.Email = Normalize(user.Email)

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.col.InsertOne(ctx, user)
	return wrapMongoError(err)
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.D) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var u User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, wrapMongoError(err)
	}
	return &u, nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: Normalize(email)}})
}

func (r *MongoRepository) Exists(ctx context.Context, email, username string) (bool, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	emailCount, err := r.col.CountDocuments(ctx, bson.D{{Key: "email", Value: Normalize(email)}}, options.Count().SetLimit(1))
	if err != nil {
		return false, false, err
	}
	usernameCount, err := r.col.CountDocuments(ctx, bson.D{{Key: "username", Value: Normalize(username)}}, options.Count().SetLimit(1))
	if err != nil {
		return false, false, err
	}
	return emailCount > 0, usernameCount > 0, nil
}

func (r *MongoRepository) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	total, err := r.col.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	list, err := db.FindMany[User](ctx, r.col, bson.D{}, opts)
	if err != nil {
		return nil, 0, err
	}
	return list, int(total), nil
}

func (r *MongoRepository) Summaries(ctx context.Context, ids []string) (map[string]Summary, error) {
	out := make(map[string]Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	opts := options.Find().SetProjection(bson.D{
		{Key: "name", Value: 1}, {Key: "username", Value: 1}, {Key: "avatar", Value: 1},
	})
	found, err := db.FindMany[User](ctx, r.col, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}, opts)
	if err != nil {
		return nil, err
	}
	for i := range found {
		out[found[i].ID] = found[i].Summary()
	}
	return out, nil
}

func (r *MongoRepository) Update(ctx context.Context, user *User) error {
	user.Username = Normalize(user.Username)
	user.UpdatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.D{{Key: "_id", Value: user.ID}}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: user.Name},
		{Key: "username", Value: user.Username},
		{Key: "bio", Value: user.Bio},
		{Key: "avatar", Value: user.Avatar},
		{Key: "is_active", Value: user.IsActive},
		{Key: "is_verified", Value: user.IsVerified},
		{Key: "updated_at", Value: user.UpdatedAt},
	}}})
	if err != nil {
		return wrapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "last_login", Value: at}}}})
	if err != nil {
		return wrapMongoError(err)
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
		return wrapMongoError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
