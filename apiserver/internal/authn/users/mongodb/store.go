package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/trackdle/trackdle/apiserver/internal/authn"
	"github.com/trackdle/trackdle/apiserver/internal/authn/users"
	"github.com/trackdle/trackdle/apiserver/internal/meta"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const createIndexTimeout = 5 * time.Second

type store struct {
	collection *mongo.Collection
}

// NewStore returns a MongoDB-based implementation of the users.Store
// interface.
func NewStore(database *mongo.Database) (users.Store, error) {
	ctx, cancel :=
		context.WithTimeout(context.Background(), createIndexTimeout)
	defer cancel()
	unique := true
	collection := database.Collection("users")
	if _, err := collection.Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys: bson.M{
				"id": 1,
			},
			Options: &options.IndexOptions{
				Unique: &unique,
			},
		},
	); err != nil {
		return nil, errors.Wrap(err, "error adding indexes to users collection")
	}
	return &store{
		collection: collection,
	}, nil
}

func (s *store) Upsert(ctx context.Context, user authn.User) error {
	upsert := true
	// A single upsert keeps concurrent first logins for the same user from
	// racing a separate find and insert.
	if _, err := s.collection.UpdateOne(
		ctx,
		bson.M{"id": user.ID},
		bson.M{
			"$set": bson.M{
				"email":     user.Email,
				"name":      user.Name,
				"lastLogin": user.LastLogin,
			},
			"$setOnInsert": bson.M{
				"created": user.Created,
				// The game endpoints own this subdocument; it only needs to
				// exist.
				"games": bson.M{},
			},
		},
		&options.UpdateOptions{
			Upsert: &upsert,
		},
	); err != nil {
		return errors.Wrapf(err, "error upserting user %q", user.ID)
	}
	return nil
}

func (s *store) Get(
	ctx context.Context,
	id string,
) (authn.User, error) {
	user := authn.User{}
	res := s.collection.FindOne(ctx, bson.M{"id": id})
	if res.Err() == mongo.ErrNoDocuments {
		return user, &meta.ErrNotFound{
			Type: "User",
			ID:   id,
		}
	}
	if res.Err() != nil {
		return user, errors.Wrapf(res.Err(), "error finding user %q", id)
	}
	if err := res.Decode(&user); err != nil {
		return user, errors.Wrapf(err, "error decoding user %q", id)
	}
	return user, nil
}
