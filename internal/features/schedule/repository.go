package schedule

import (
	"context"
	"time"

	"surveysync/internal/database"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ScheduleRepository interface {
	Create(ctx context.Context, sched *ScheduledSync) error
	Get(ctx context.Context, id string) (*ScheduledSync, error)
	List(ctx context.Context) ([]ScheduledSync, error)
	ListEnabled(ctx context.Context) ([]ScheduledSync, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

type ScheduleRepositoryImpl struct {
	collection *mongo.Collection
}

func NewScheduleRepository(db *database.MongodbDB) ScheduleRepository {
	return &ScheduleRepositoryImpl{
		collection: db.DB.Collection("scheduled_syncs"),
	}
}

func (r *ScheduleRepositoryImpl) Create(ctx context.Context, sched *ScheduledSync) error {
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	now := time.Now()
	sched.CreatedAt = now
	sched.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, sched)
	return err
}

func (r *ScheduleRepositoryImpl) Get(ctx context.Context, id string) (*ScheduledSync, error) {
	var sched ScheduledSync
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&sched)
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

func (r *ScheduleRepositoryImpl) List(ctx context.Context) ([]ScheduledSync, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var scheds []ScheduledSync
	if err = cursor.All(ctx, &scheds); err != nil {
		return nil, err
	}
	return scheds, nil
}

func (r *ScheduleRepositoryImpl) ListEnabled(ctx context.Context) ([]ScheduledSync, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"enabled": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var scheds []ScheduledSync
	if err = cursor.All(ctx, &scheds); err != nil {
		return nil, err
	}
	return scheds, nil
}

func (r *ScheduleRepositoryImpl) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	return err
}

func (r *ScheduleRepositoryImpl) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
