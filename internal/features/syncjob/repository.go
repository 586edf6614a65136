package syncjob

import (
	"context"
	"time"

	"surveysync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// JobRecord is the persisted history row for a sync job
type JobRecord struct {
	JobID     string     `json:"id" bson:"_id"`
	Name      string     `json:"name" bson:"name"`
	Source    string     `json:"source" bson:"source"`
	Target    string     `json:"target" bson:"target"`
	Status    JobStatus  `json:"status" bson:"status"`
	Config    SyncConfig `json:"config" bson:"config"`
	LastError string     `json:"last_error,omitempty" bson:"last_error,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

// LastSyncMetadata tracks the incremental watermark per (source, target) pair
type LastSyncMetadata struct {
	Source       string    `json:"source" bson:"source"`
	Target       string    `json:"target" bson:"target"`
	LastSyncedAt time.Time `json:"last_synced_at" bson:"last_synced_at"`
}

type JobHistoryRepository interface {
	Create(ctx context.Context, record *JobRecord) error
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, lastError string) error
	List(ctx context.Context) ([]JobRecord, error)
	Delete(ctx context.Context, jobID string) error
	DeleteByStatus(ctx context.Context, statuses []JobStatus) (int64, error)
}

type LastSyncRepository interface {
	Upsert(ctx context.Context, source, target string, syncedAt time.Time) error
	Get(ctx context.Context, source, target string) (*LastSyncMetadata, error)
}

type JobHistoryRepositoryImpl struct {
	collection *mongo.Collection
}

func NewJobHistoryRepository(db *database.MongodbDB) JobHistoryRepository {
	return &JobHistoryRepositoryImpl{
		collection: db.DB.Collection("sync_jobs"),
	}
}

func (r *JobHistoryRepositoryImpl) Create(ctx context.Context, record *JobRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, record)
	return err
}

func (r *JobHistoryRepositoryImpl) UpdateStatus(ctx context.Context, jobID string, status JobStatus, lastError string) error {
	updates := bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}
	if lastError != "" {
		updates["last_error"] = lastError
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": jobID}, bson.M{"$set": updates})
	return err
}

func (r *JobHistoryRepositoryImpl) List(ctx context.Context) ([]JobRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []JobRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *JobHistoryRepositoryImpl) Delete(ctx context.Context, jobID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": jobID})
	return err
}

func (r *JobHistoryRepositoryImpl) DeleteByStatus(ctx context.Context, statuses []JobStatus) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"status": bson.M{"$in": statuses}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

type LastSyncRepositoryImpl struct {
	collection *mongo.Collection
}

func NewLastSyncRepository(db *database.MongodbDB) LastSyncRepository {
	return &LastSyncRepositoryImpl{
		collection: db.DB.Collection("last_sync"),
	}
}

func (r *LastSyncRepositoryImpl) Upsert(ctx context.Context, source, target string, syncedAt time.Time) error {
	filter := bson.M{"source": source, "target": target}
	update := bson.M{"$set": bson.M{"last_synced_at": syncedAt}}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *LastSyncRepositoryImpl) Get(ctx context.Context, source, target string) (*LastSyncMetadata, error) {
	var meta LastSyncMetadata
	err := r.collection.FindOne(ctx, bson.M{"source": source, "target": target}).Decode(&meta)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &meta, nil
}
