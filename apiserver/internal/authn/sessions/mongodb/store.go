package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/trackdle/trackdle/apiserver/internal/authn"
	"github.com/trackdle/trackdle/apiserver/internal/authn/sessions"
	"github.com/trackdle/trackdle/apiserver/internal/meta"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const createIndexTimeout = 5 * time.Second

type store struct {
	collection *mongo.Collection
}

// NewStore returns a MongoDB-based implementation of the
// sessions.DurableStore interface.
func NewStore(database *mongo.Database) (sessions.DurableStore, error) {
	ctx, cancel :=
		context.WithTimeout(context.Background(), createIndexTimeout)
	defer cancel()
	unique := true
	collection := database.Collection("sessions")
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
		return nil, errors.Wrap(err, "error adding indexes to sessions collection")
	}
	return &store{
		collection: collection,
	}, nil
}

func (s *store) Create(
	ctx context.Context,
	session authn.Session,
) error {
	if _, err := s.collection.InsertOne(ctx, session); err != nil {
		return errors.Wrapf(err, "error inserting new session %q", session.ID)
	}
	return nil
}

func (s *store) Get(
	ctx context.Context,
	id string,
) (authn.Session, error) {
	session := authn.Session{}
	res := s.collection.FindOne(ctx, bson.M{"id": id})
	if res.Err() == mongo.ErrNoDocuments {
		return session, &meta.ErrNotFound{
			Type: "Session",
			ID:   id,
		}
	}
	if res.Err() != nil {
		return session, errors.Wrapf(res.Err(), "error finding session %q", id)
	}
	if err := res.Decode(&session); err != nil {
		return session, errors.Wrapf(err, "error decoding session %q", id)
	}
	return session, nil
}

func (s *store) Touch(
	ctx context.Context,
	id string,
	lastAccessed time.Time,
) error {
	// Touching a session that was deleted or purged out from under us is not
	// worth surfacing; last-accessed is advisory telemetry.
	if _, err := s.collection.UpdateOne(
		ctx,
		bson.M{"id": id},
		bson.M{
			"$set": bson.M{
				"lastAccessed": lastAccessed,
			},
		},
	); err != nil {
		return errors.Wrapf(err, "error updating session %q", id)
	}
	return nil
}

func (s *store) Delete(ctx context.Context, id string) error {
	// DeleteOne on an absent session matches nothing and that's fine; delete
	// is idempotent by contract.
	if _, err := s.collection.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return errors.Wrapf(err, "error deleting session %q", id)
	}
	return nil
}
