package repository

import (
	"context"
	"sort"
	"sync"
	"trackgate/internal/core/model"
)

type inMemoryPositionRepository struct {
	positions map[string][]*model.Position // by device, in arrival order
	mutex     sync.RWMutex
}

func NewInMemoryPositionRepository() PositionRepository {
	return &inMemoryPositionRepository{
		positions: make(map[string][]*model.Position),
	}
}

func (r *inMemoryPositionRepository) Create(ctx context.Context, position *model.Position) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.positions[position.DeviceID] = append(r.positions[position.DeviceID], position)
	return nil
}

func (r *inMemoryPositionRepository) FindByDeviceID(ctx context.Context, deviceID string, limit int) ([]*model.Position, error) {
	r.mutex.RLock()
	stored := r.positions[deviceID]
	result := make([]*model.Position, len(stored))
	copy(result, stored)
	r.mutex.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *inMemoryPositionRepository) FindLatestByDeviceID(ctx context.Context, deviceID string) (*model.Position, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest *model.Position
	for _, position := range r.positions[deviceID] {
		if latest == nil || position.Timestamp.After(latest.Timestamp) {
			latest = position
		}
	}
	return latest, nil
}
