package mongo

import (
	"context"
	"errors"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionCollectionName = "workout_sessions"

// mongoSessionRepository implements repository.SessionRepository.
// Logs are embedded in the session document so every write is single-document atomic.
type mongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a new Session repository.
func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

// Create inserts a new open session.
func (r *mongoSessionRepository) Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error) {
	if session.UserID == primitive.NilObjectID || session.WorkoutID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("session requires userId and workoutId")
	}
	session.ID = primitive.NewObjectID()
	if session.Logs == nil {
		session.Logs = []domain.ExerciseLog{}
	}

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		return primitive.NilObjectID, err
	}
	return session.ID, nil
}

// GetByID retrieves a session with its logs.
func (r *mongoSessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Session, error) {
	var session domain.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// AddPrimaryLog pushes the first log onto an open session.
func (r *mongoSessionRepository) AddPrimaryLog(ctx context.Context, sessionID primitive.ObjectID, log domain.ExerciseLog) error {
	filter := bson.M{
		"_id":         sessionID,
		"completedAt": bson.M{"$exists": false},
		"logs.0":      bson.M{"$exists": false},
	}
	update := bson.M{
		"$push": bson.M{"logs": log},
		"$set":  bson.M{"updatedAt": log.LoggedAt},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return r.classifyMiss(ctx, sessionID)
	}
	return nil
}

// UpdateLog sets the given fields on one embedded log of an open session.
func (r *mongoSessionRepository) UpdateLog(ctx context.Context, sessionID, logID primitive.ObjectID, fields domain.LogFields, at time.Time) error {
	set := bson.M{
		"updatedAt":        at,
		"logs.$.updatedAt": at,
	}
	if fields.Sets != nil {
		set["logs.$.sets"] = *fields.Sets
	}
	if fields.Reps != nil {
		set["logs.$.reps"] = *fields.Reps
	}
	if fields.Weight != nil {
		set["logs.$.weight"] = *fields.Weight
	}
	if fields.Duration != nil {
		set["logs.$.duration"] = *fields.Duration
	}
	if fields.Notes != nil {
		set["logs.$.notes"] = *fields.Notes
	}

	filter := bson.M{
		"_id":         sessionID,
		"completedAt": bson.M{"$exists": false},
		"logs._id":    logID,
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		session, getErr := r.GetByID(ctx, sessionID)
		if getErr != nil {
			return getErr
		}
		if session.FindLog(logID) == nil {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

// Complete stamps completedAt once. A second call matches nothing and reports a conflict.
func (r *mongoSessionRepository) Complete(ctx context.Context, sessionID primitive.ObjectID, at time.Time) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": sessionID, "completedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"completedAt": at, "updatedAt": at}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return r.classifyMiss(ctx, sessionID)
	}
	return nil
}

// ListCompleted returns the user's completed sessions in [from, to), newest first.
func (r *mongoSessionRepository) ListCompleted(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Session, error) {
	completed := bson.M{"$exists": true}
	if !from.IsZero() {
		completed["$gte"] = from
	}
	if !to.IsZero() {
		completed["$lt"] = to
	}
	filter := bson.M{"userId": userID, "completedAt": completed}
	findOptions := options.Find().SetSort(bson.D{{Key: "completedAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := []domain.Session{}
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *mongoSessionRepository) classifyMiss(ctx context.Context, sessionID primitive.ObjectID) error {
	if _, err := r.GetByID(ctx, sessionID); err != nil {
		return err
	}
	return repository.ErrConflict
}

// EnsureSessionIndexes creates necessary indexes. Call during startup.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "completedAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
