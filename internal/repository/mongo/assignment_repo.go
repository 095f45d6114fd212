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

const assignmentCollectionName = "plan_assignments"

// assignmentDocument carries the live flag the partial unique index keys on.
type assignmentDocument struct {
	domain.Assignment `bson:",inline"`
	Live              bool `bson:"live"`
}

func newAssignmentDocument(a *domain.Assignment) assignmentDocument {
	return assignmentDocument{Assignment: *a, Live: a.IsLive()}
}

// mongoAssignmentRepository implements repository.AssignmentRepository
type mongoAssignmentRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoAssignmentRepository creates a new Assignment repository backed by MongoDB.
// Activation runs in a transaction, so the deployment must be a replica set.
func NewMongoAssignmentRepository(db *mongo.Database) repository.AssignmentRepository {
	return &mongoAssignmentRepository{
		client:     db.Client(),
		collection: db.Collection(assignmentCollectionName),
	}
}

// Create inserts a new pending assignment.
func (r *mongoAssignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) (primitive.ObjectID, error) {
	if assignment.PlanID == primitive.NilObjectID || assignment.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("assignment requires planId and userId")
	}

	assignment.ID = primitive.NewObjectID()
	if assignment.Status == "" {
		assignment.Status = domain.AssignmentPending
	}

	_, err := r.collection.InsertOne(ctx, newAssignmentDocument(assignment))
	if err != nil {
		if isDuplicateKey(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}
	return assignment.ID, nil
}

// GetByID retrieves an assignment by its ID.
func (r *mongoAssignmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Assignment, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetLive returns the pending or active row for the plan and user, if any.
func (r *mongoAssignmentRepository) GetLive(ctx context.Context, planID, userID primitive.ObjectID) (*domain.Assignment, error) {
	return r.findOne(ctx, bson.M{"planId": planID, "userId": userID, "live": true})
}

// GetActiveByUserID returns the user's single active assignment.
func (r *mongoAssignmentRepository) GetActiveByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Assignment, error) {
	return r.findOne(ctx, bson.M{"userId": userID, "status": domain.AssignmentActive})
}

// GetByUserID retrieves every assignment of a user, newest first.
func (r *mongoAssignmentRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Assignment, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

// GetByPlanID retrieves every assignment of a plan, newest first.
func (r *mongoAssignmentRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.Assignment, error) {
	return r.find(ctx, bson.M{"planId": planID})
}

// Activate deactivates the user's current active row and promotes the pending one
// inside a single transaction.
func (r *mongoAssignmentRepository) Activate(ctx context.Context, id, userID primitive.ObjectID, at time.Time) (*domain.Assignment, []primitive.ObjectID, error) {
	session, err := r.client.StartSession()
	if err != nil {
		return nil, nil, err
	}
	defer session.EndSession(ctx)

	type outcome struct {
		activated   *domain.Assignment
		deactivated []primitive.ObjectID
	}

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		target, err := r.findOne(sc, bson.M{"_id": id, "userId": userID})
		if err != nil {
			return nil, err
		}
		if target.Status != domain.AssignmentPending {
			return nil, repository.ErrConflict
		}

		others, err := r.find(sc, bson.M{"userId": userID, "status": domain.AssignmentActive, "_id": bson.M{"$ne": id}})
		if err != nil {
			return nil, err
		}
		deactivated := make([]primitive.ObjectID, 0, len(others))
		for _, other := range others {
			deactivated = append(deactivated, other.ID)
		}

		// Deactivate first so the single-active index never sees two active rows.
		if len(deactivated) > 0 {
			_, err = r.collection.UpdateMany(sc,
				bson.M{"_id": bson.M{"$in": deactivated}, "status": domain.AssignmentActive},
				bson.M{"$set": bson.M{"status": domain.AssignmentInactive, "live": false, "deactivatedAt": at}},
			)
			if err != nil {
				return nil, err
			}
		}

		res, err := r.collection.UpdateOne(sc,
			bson.M{"_id": id, "status": domain.AssignmentPending},
			bson.M{"$set": bson.M{"status": domain.AssignmentActive, "activatedAt": at}},
		)
		if err != nil {
			if isDuplicateKey(err) {
				return nil, repository.ErrConflict
			}
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, repository.ErrConflict
		}

		target.Status = domain.AssignmentActive
		activatedAt := at
		target.ActivatedAt = &activatedAt
		return outcome{activated: target, deactivated: deactivated}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	out := result.(outcome)
	return out.activated, out.deactivated, nil
}

// Decline moves a pending assignment to inactive.
func (r *mongoAssignmentRepository) Decline(ctx context.Context, id primitive.ObjectID, at time.Time) (*domain.Assignment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc assignmentDocument
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": domain.AssignmentPending},
		bson.M{"$set": bson.M{"status": domain.AssignmentInactive, "live": false, "deactivatedAt": at}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return &doc.Assignment, nil
}

func (r *mongoAssignmentRepository) findOne(ctx context.Context, filter bson.M) (*domain.Assignment, error) {
	var doc assignmentDocument
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &doc.Assignment, nil
}

func (r *mongoAssignmentRepository) find(ctx context.Context, filter bson.M) ([]domain.Assignment, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "assignedAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []assignmentDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	assignments := make([]domain.Assignment, 0, len(docs))
	for _, doc := range docs {
		assignments = append(assignments, doc.Assignment)
	}
	return assignments, nil
}

// EnsureAssignmentIndexes creates the ledger's indexes. The two partial unique indexes
// hold at most one active row per user and one live row per plan and user.
func EnsureAssignmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().
				SetName("one_active_per_user").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.AssignmentActive}),
		},
		{
			Keys: bson.D{{Key: "planId", Value: 1}, {Key: "userId", Value: 1}},
			Options: options.Index().
				SetName("one_live_per_plan_user").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"live": true}),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "assignedAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "planId", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
