package repository

import (
	"context"
	"errors"
	"trackgate/internal/core/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PositionRepository stores accepted fixes. FindByDeviceID returns the
// newest first; a limit of 0 or less returns them all.
type PositionRepository interface {
	Create(ctx context.Context, position *model.Position) error
	FindByDeviceID(ctx context.Context, deviceID string, limit int) ([]*model.Position, error)
	FindLatestByDeviceID(ctx context.Context, deviceID string) (*model.Position, error)
}

type MongoPositionRepository struct {
	collection *mongo.Collection
}

func NewMongoPositionRepository(db *mongo.Database) *MongoPositionRepository {
	return &MongoPositionRepository{
		collection: db.Collection("positions"),
	}
}

func (r *MongoPositionRepository) Create(ctx context.Context, position *model.Position) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, position)
	return err
}

func (r *MongoPositionRepository) FindByDeviceID(ctx context.Context, deviceID string, limit int) ([]*model.Position, error) {
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

	var positions []*model.Position
	if err = cursor.All(ctx, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *MongoPositionRepository) FindLatestByDeviceID(ctx context.Context, deviceID string) (*model.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.M{"timestamp": -1})
	var position model.Position
	err := r.collection.FindOne(ctx, bson.M{"deviceid": deviceID}, opts).Decode(&position)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &position, nil
}
