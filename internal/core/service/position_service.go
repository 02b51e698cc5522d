package service

import (
	"context"
	"errors"
	"trackgate/internal/core/model"
	"trackgate/internal/core/repository"
)

// PositionCache holds the last accepted fix per device.
type PositionCache interface {
	SetLastPosition(ctx context.Context, pos *model.Position) error
	LastPosition(ctx context.Context, devID string) (*model.Position, error)
}

type PositionService interface {
	AddPosition(ctx context.Context, position *model.Position) error
	GetDevicePositions(ctx context.Context, deviceID string, limit int) ([]*model.Position, error)
	GetLatestPosition(ctx context.Context, deviceID string) (*model.Position, error)
}

type positionService struct {
	positionRepo repository.PositionRepository
	cache        PositionCache
}

// NewPositionService returns a position service; cache may be nil.
func NewPositionService(positionRepo repository.PositionRepository, cache PositionCache) PositionService {
	return &positionService{
		positionRepo: positionRepo,
		cache:        cache,
	}
}

func (s *positionService) AddPosition(ctx context.Context, position *model.Position) error {
	if position == nil || position.DeviceID == "" {
		return ErrInvalidDevice
	}
	if !position.InRange() {
		return errors.New("position out of range")
	}
	if err := s.positionRepo.Create(ctx, position); err != nil {
		return err
	}
	if s.cache != nil {
		// cache errors only cost a repository read later
		s.cache.SetLastPosition(ctx, position)
	}
	return nil
}

func (s *positionService) GetDevicePositions(ctx context.Context, deviceID string, limit int) ([]*model.Position, error) {
	if deviceID == "" {
		return nil, ErrInvalidDevice
	}
	if limit == 1 {
		latest, err := s.GetLatestPosition(ctx, deviceID)
		if err != nil || latest == nil {
			return nil, err
		}
		return []*model.Position{latest}, nil
	}
	return s.positionRepo.FindByDeviceID(ctx, deviceID, limit)
}

func (s *positionService) GetLatestPosition(ctx context.Context, deviceID string) (*model.Position, error) {
	if deviceID == "" {
		return nil, ErrInvalidDevice
	}
	if s.cache != nil {
		if pos, err := s.cache.LastPosition(ctx, deviceID); err == nil && pos != nil {
			return pos, nil
		}
	}
	return s.positionRepo.FindLatestByDeviceID(ctx, deviceID)
}
