package workflow

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/*
MongoDB Schema:

Collection: workflow_runs

Document structure:
{
    "_id": string (run ID),
    "name": string,
    "tenant_id": string,
    "status": string,
    "current_step": int,
    "completed_steps": [string],
    "error": string (optional),
    "started_at": ISODate,
    "completed_at": ISODate (optional),
    "last_updated_at": ISODate
}

Indexes:
db.workflow_runs.createIndex({ "name": 1 })
db.workflow_runs.createIndex({ "tenant_id": 1 })
db.workflow_runs.createIndex({ "status": 1 })
db.workflow_runs.createIndex({ "started_at": 1 })
db.workflow_runs.createIndex({ "tenant_id": 1, "status": 1 })
*/

// mongoState is the run state document in MongoDB.
type mongoState struct {
	RunID          string     `bson:"_id"`
	Name           string     `bson:"name"`
	TenantID       string     `bson:"tenant_id"`
	Status         Status     `bson:"status"`
	CurrentStep    int        `bson:"current_step"`
	CompletedSteps []string   `bson:"completed_steps,omitempty"`
	Error          string     `bson:"error,omitempty"`
	StartedAt      time.Time  `bson:"started_at"`
	CompletedAt    *time.Time `bson:"completed_at,omitempty"`
	LastUpdatedAt  time.Time  `bson:"last_updated_at"`
}

func (m *mongoState) toState() *State {
	return &State{
		RunID:          m.RunID,
		Name:           m.Name,
		TenantID:       m.TenantID,
		Status:         m.Status,
		CurrentStep:    m.CurrentStep,
		CompletedSteps: m.CompletedSteps,
		Error:          m.Error,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		LastUpdatedAt:  m.LastUpdatedAt,
	}
}

func fromState(s *State) *mongoState {
	return &mongoState{
		RunID:          s.RunID,
		Name:           s.Name,
		TenantID:       s.TenantID,
		Status:         s.Status,
		CurrentStep:    s.CurrentStep,
		CompletedSteps: s.CompletedSteps,
		Error:          s.Error,
		StartedAt:      s.StartedAt,
		CompletedAt:    s.CompletedAt,
		LastUpdatedAt:  s.LastUpdatedAt,
	}
}

// MongoStore is a MongoDB-based run store.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a new MongoDB run store using the
// "workflow_runs" collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("workflow_runs"),
	}
}

// WithCollection sets a custom collection name.
//
// Returns the store for method chaining.
func (s *MongoStore) WithCollection(name string) *MongoStore {
	s.collection = s.collection.Database().Collection(name)
	return s
}

// Collection returns the underlying MongoDB collection.
func (s *MongoStore) Collection() *mongo.Collection {
	return s.collection
}

// EnsureIndexes creates the indexes the run collection needs.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "name", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "started_at", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "status", Value: 1},
			},
		},
	}

	_, err := s.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create records a new run.
func (s *MongoStore) Create(ctx context.Context, state *State) error {
	_, err := s.collection.InsertOne(ctx, fromState(state))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("run already exists: %s", state.RunID)
		}
		return fmt.Errorf("insert: %w", err)
	}

	return nil
}

// Update updates run state.
func (s *MongoStore) Update(ctx context.Context, state *State) error {
	filter := bson.M{"_id": state.RunID}
	update := bson.M{
		"$set": bson.M{
			"status":          state.Status,
			"current_step":    state.CurrentStep,
			"completed_steps": state.CompletedSteps,
			"error":           state.Error,
			"completed_at":    state.CompletedAt,
			"last_updated_at": state.LastUpdatedAt,
		},
	}

	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("run not found: %s", state.RunID)
	}

	return nil
}

// Get retrieves run state by run ID.
func (s *MongoStore) Get(ctx context.Context, runID string) (*State, error) {
	var doc mongoState
	err := s.collection.FindOne(ctx, bson.M{"_id": runID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("find: %w", err)
	}

	return doc.toState(), nil
}

// List lists runs matching the filter.
func (s *MongoStore) List(ctx context.Context, filter Filter) ([]*State, error) {
	mongoFilter := bson.M{}

	if filter.Name != "" {
		mongoFilter["name"] = filter.Name
	}

	if filter.TenantID != "" {
		mongoFilter["tenant_id"] = filter.TenantID
	}

	if len(filter.Status) > 0 {
		mongoFilter["status"] = bson.M{"$in": filter.Status}
	}

	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.collection.Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	var results []*State
	for cursor.Next(ctx) {
		var doc mongoState
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		results = append(results, doc.toState())
	}

	return results, cursor.Err()
}

// Delete removes a run by ID.
func (s *MongoStore) Delete(ctx context.Context, runID string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": runID})
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if result.DeletedCount == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}

	return nil
}

// DeleteOlderThan removes runs started before now-age and returns how
// many were deleted.
func (s *MongoStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	filter := bson.M{
		"started_at": bson.M{"$lt": time.Now().Add(-age)},
	}

	result, err := s.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}

	return result.DeletedCount, nil
}

// Compile-time check
var _ Store = (*MongoStore)(nil)
