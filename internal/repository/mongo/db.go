package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// The client carries a registry that stores decimal weights as Decimal128.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetRegistry(newRegistry())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// The initial connect is lazy; ping to surface an unreachable server now.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes every repository relies on.
// The assignment indexes enforce the ledger's uniqueness rules, so failures are returned.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := EnsureAssignmentIndexes(ctx, db.Collection(assignmentCollectionName)); err != nil {
		return err
	}
	if err := EnsurePlanIndexes(ctx, db.Collection(planCollectionName)); err != nil {
		return err
	}
	if err := EnsureSessionIndexes(ctx, db.Collection(sessionCollectionName)); err != nil {
		return err
	}
	return EnsureWorkoutIndexes(ctx, db.Collection(workoutCollectionName))
}

// PingDB reports whether the primary is reachable.
func PingDB(ctx context.Context, client *mongo.Client) error {
	return client.Ping(ctx, readpref.Primary())
}

func isDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
