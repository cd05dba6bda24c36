// Package taskstore implements the Task State Machine (§4.F) on MongoDB,
// keeping the teacher's connection-lifecycle idiom
// (InitMongoDB/GetMongoDB/CloseMongoDB in internal/storage/mongodb.go)
// while replacing its receipt/master-data CRUD with Task CAS operations.
//
// spec.md describes the durable store abstractly as "a relational
// database exposing compare-and-swap updates"; the original Python system
// used Postgres. This module keeps the teacher's MongoDB stack instead
// (see DESIGN.md) and implements CAS via UpdateOne filtered on
// {"_id": id, "status": ...} plus a MatchedCount check, equivalent to the
// original's `UPDATE ... WHERE status = RUNNING` + rowcount check.
package taskstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bosocmputer/groundocr/internal/model"
)

const tasksCollection = "tasks"

// Store is the Task State Machine's handle on the MongoDB-backed task
// collection.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials mongoURI and pings it within 10s, mirroring the teacher's
// InitMongoDB.
func Connect(mongoURI, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects within a 10s timeout, mirroring CloseMongoDB.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) coll() *mongo.Collection {
	return s.db.Collection(tasksCollection)
}

// Create inserts a pending task row (§4.F create).
func (s *Store) Create(ctx context.Context, id string, taskType model.TaskType, inputPath string) error {
	now := time.Now().UTC()
	task := model.Task{
		ID:        id,
		TaskType:  taskType,
		Status:    model.StatusPending,
		InputPath: inputPath,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.coll().InsertOne(ctx, task)
	if err != nil {
		return fmt.Errorf("create task %s: %w", id, err)
	}
	return nil
}

// Get fetches a task row by id, or (nil, nil) if it does not exist — a
// missing row is the §4.G/§7 StateError condition, left for the caller to
// interpret as a silent abort.
func (s *Store) Get(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := s.coll().FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &task, nil
}

// MarkRunning transitions pending -> running and initializes the progress
// payload (§4.F mark_running).
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	now := time.Now().UTC()
	payload := model.ResultPayload{Progress: model.ProgressSnapshot{Current: 0, Total: 0, Percent: 0, Message: "started"}}
	res, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": id, "status": model.StatusPending},
		bson.M{"$set": bson.M{"status": model.StatusRunning, "result_payload": payload, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("mark running %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mark running %s: task not pending", id)
	}
	return nil
}

// droppedProgressSubstring matches the "intake noise" progress messages
// update_progress filters out (§4.F).
const droppedProgressSubstring = "queued"

// UpdateProgress is the §4.F CAS update: it only takes effect if the row's
// current status is running, and it drops messages containing "queued".
// Returns whether the row was actually updated.
func (s *Store) UpdateProgress(ctx context.Context, id string, snapshot model.ProgressSnapshot) (bool, error) {
	if containsFold(snapshot.Message, droppedProgressSubstring) {
		return false, nil
	}
	now := time.Now().UTC()
	res, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": id, "status": model.StatusRunning},
		bson.M{"$set": bson.M{"result_payload.progress": snapshot, "updated_at": now}},
	)
	if err != nil {
		return false, fmt.Errorf("update progress %s: %w", id, err)
	}
	return res.MatchedCount > 0, nil
}

// MarkSucceeded transitions running -> succeeded, atomically overwriting
// result_payload with the final payload (§4.F mark_succeeded).
func (s *Store) MarkSucceeded(ctx context.Context, id string, payload model.ResultPayload, outputDir string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": id, "status": model.StatusRunning},
		bson.M{"$set": bson.M{
			"status":         model.StatusSucceeded,
			"result_payload": payload,
			"output_dir":     outputDir,
			"updated_at":     now,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("mark succeeded %s: %w", id, err)
	}
	return res.MatchedCount > 0, nil
}

// MarkFailed transitions running -> failed, preserving the last known
// progress snapshot but overwriting its message, and truncating
// error_message to 2000 chars (§4.F mark_failed).
func (s *Store) MarkFailed(ctx context.Context, id string, message string) (bool, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if task == nil || task.Status != model.StatusRunning {
		return false, nil
	}

	progress := model.ProgressSnapshot{}
	if task.ResultPayload != nil {
		progress = task.ResultPayload.Progress
	}
	progress.Message = "failed: " + message

	truncated := model.Truncate(message, model.MaxErrorMessageLen)
	now := time.Now().UTC()
	res, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": id, "status": model.StatusRunning},
		bson.M{"$set": bson.M{
			"status":                 model.StatusFailed,
			"result_payload.progress": progress,
			"error_message":          truncated,
			"updated_at":             now,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("mark failed %s: %w", id, err)
	}
	return res.MatchedCount > 0, nil
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
