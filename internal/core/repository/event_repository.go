package repository

import (
	"context"
	"sort"
	"sync"
	"trackgate/internal/core/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventRepository keeps logins, logouts, alarms and OBD reports.
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	FindByDeviceID(ctx context.Context, deviceID string, limit int) ([]*model.Event, error)
}

type MongoEventRepository struct {
	collection *mongo.Collection
}

func NewMongoEventRepository(db *mongo.Database) *MongoEventRepository {
	return &MongoEventRepository{
		collection: db.Collection("events"),
	}
}

func (r *MongoEventRepository) Create(ctx context.Context, event *model.Event) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, event)
	return err
}

func (r *MongoEventRepository) FindByDeviceID(ctx context.Context, deviceID string, limit int) ([]*model.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.M{"timestamp": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, bson.M{"deviceid": deviceID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*model.Event
	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

type inMemoryEventRepository struct {
	events []*model.Event
	mutex  sync.RWMutex
}

func NewInMemoryEventRepository() EventRepository {
	return &inMemoryEventRepository{}
}

func (r *inMemoryEventRepository) Create(ctx context.Context, event *model.Event) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *inMemoryEventRepository) FindByDeviceID(ctx context.Context, deviceID string, limit int) ([]*model.Event, error) {
	r.mutex.RLock()
	var result []*model.Event
	for _, event := range r.events {
		if event.DeviceID == deviceID {
			result = append(result, event)
		}
	}
	r.mutex.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
