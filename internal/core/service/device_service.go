package service

import (
	"context"
	"errors"
	"time"
	"trackgate/internal/core/model"
	"trackgate/internal/core/repository"
)

var ErrInvalidDevice = errors.New("invalid device ID")

// DeviceService keeps one device record per unique id (MMSI, IMEI or app
// id) seen by the gateway.
type DeviceService interface {
	Login(ctx context.Context, uniqueID, name, protocol string) (*model.Device, error)
	Logout(ctx context.Context, uniqueID string) error
	Touch(ctx context.Context, uniqueID string, at time.Time, positionID string) error
	MergeStatic(ctx context.Context, static *model.Static) error
	GetDevice(ctx context.Context, uniqueID string) (*model.Device, error)
	GetAllDevices(ctx context.Context) ([]*model.Device, error)
}

type deviceService struct {
	deviceRepo repository.DeviceRepository
}

func NewDeviceService(deviceRepo repository.DeviceRepository) DeviceService {
	return &deviceService{deviceRepo: deviceRepo}
}

// Login marks the device active, creating it on first sight.
func (s *deviceService) Login(ctx context.Context, uniqueID, name, protocol string) (*model.Device, error) {
	if uniqueID == "" {
		return nil, ErrInvalidDevice
	}
	device, err := s.deviceRepo.FindByUniqueID(ctx, uniqueID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		device = model.NewDevice(name, uniqueID, protocol)
	}
	if name != "" {
		device.Name = name
	}
	if protocol != "" {
		device.Protocol = protocol
	}
	device.Status = model.DeviceActive
	device.LastUpdate = time.Now()
	if err := s.deviceRepo.Update(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

func (s *deviceService) Logout(ctx context.Context, uniqueID string) error {
	device, err := s.find(ctx, uniqueID)
	if err != nil || device == nil {
		return err
	}
	device.Status = model.DeviceInactive
	return s.deviceRepo.Update(ctx, device)
}

// Touch records activity. positionID is kept when empty.
func (s *deviceService) Touch(ctx context.Context, uniqueID string, at time.Time, positionID string) error {
	device, err := s.find(ctx, uniqueID)
	if err != nil || device == nil {
		return err
	}
	device.LastUpdate = at
	device.Status = model.DeviceActive
	if positionID != "" {
		device.PositionID = positionID
	}
	return s.deviceRepo.Update(ctx, device)
}

// MergeStatic folds a (possibly partial) static report into the device.
func (s *deviceService) MergeStatic(ctx context.Context, static *model.Static) error {
	if static == nil {
		return nil
	}
	device, err := s.find(ctx, static.DeviceID)
	if err != nil {
		return err
	}
	if device == nil {
		device = model.NewDevice(static.ShipName, static.DeviceID, "")
	}
	if device.Static == nil {
		device.Static = &model.Static{DeviceID: static.DeviceID}
	}
	device.Static.Merge(static)
	if device.Static.ShipName != "" {
		device.Name = device.Static.ShipName
	}
	return s.deviceRepo.Update(ctx, device)
}

func (s *deviceService) GetDevice(ctx context.Context, uniqueID string) (*model.Device, error) {
	return s.find(ctx, uniqueID)
}

func (s *deviceService) GetAllDevices(ctx context.Context) ([]*model.Device, error) {
	return s.deviceRepo.FindAll(ctx)
}

func (s *deviceService) find(ctx context.Context, uniqueID string) (*model.Device, error) {
	if uniqueID == "" {
		return nil, ErrInvalidDevice
	}
	return s.deviceRepo.FindByUniqueID(ctx, uniqueID)
}
