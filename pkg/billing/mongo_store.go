package billing

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	eventsCollection = "webhookEvents"
	usersCollection  = "users"
)

// MongoStore implements Store on a MongoDB replica set using session
// transactions. The driver retries transient transaction errors internally,
// which provides the conflict-retry behavior the reconciler relies on.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore creates a document-store-backed Store.
// Panics if db is nil to fail fast during initialization.
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	if client == nil || db == nil {
		panic("billing: mongo client and database are required")
	}
	return &MongoStore{client: client, db: db}
}

// userDoc is the per-user document layout: the entitlement snapshot lives in
// a nested premium object so unrelated user fields can share the document.
type userDoc struct {
	ID      string    `bson:"_id"`
	Premium *Snapshot `bson:"premium,omitempty"`
}

func (s *MongoStore) RunAtomic(ctx context.Context, eventID, appUserID string, fn AtomicFunc) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		var view View

		err := s.db.Collection(eventsCollection).
			FindOne(ctx, bson.M{"_id": eventID}).Err()
		switch {
		case err == nil:
			view.EventSeen = true
		case errors.Is(err, mongo.ErrNoDocuments):
		default:
			return nil, err
		}

		var user userDoc
		err = s.db.Collection(usersCollection).
			FindOne(ctx, bson.M{"_id": appUserID}).Decode(&user)
		switch {
		case err == nil:
			view.Snapshot = user.Premium
		case errors.Is(err, mongo.ErrNoDocuments):
		default:
			return nil, err
		}

		write, err := fn(view)
		if err != nil {
			return nil, err
		}

		if write.MarkEventSeen && !view.EventSeen {
			if _, err := s.db.Collection(eventsCollection).InsertOne(ctx, bson.M{
				"_id":        eventID,
				"receivedAt": time.Now().UTC(),
			}); err != nil {
				return nil, err
			}
		}

		if write.Snapshot != nil {
			if _, err := s.db.Collection(usersCollection).UpdateOne(ctx,
				bson.M{"_id": appUserID},
				bson.M{"$set": bson.M{"premium": write.Snapshot}},
				options.UpdateOne().SetUpsert(true),
			); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	return err
}

func (s *MongoStore) GetSnapshot(ctx context.Context, appUserID string) (*Snapshot, error) {
	var user userDoc
	err := s.db.Collection(usersCollection).
		FindOne(ctx, bson.M{"_id": appUserID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	if user.Premium == nil {
		return nil, ErrSnapshotNotFound
	}
	return user.Premium, nil
}
