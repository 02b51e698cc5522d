package service

import (
	"context"
	"fmt"
	"trackgate/internal/core/model"
	"trackgate/internal/core/repository"
)

// Backend persists what sessions accept: devices, positions, events and
// vessel static data.
type Backend struct {
	devices   DeviceService
	positions PositionService
	events    repository.EventRepository
}

func NewBackend(devices DeviceService, positions PositionService, events repository.EventRepository) *Backend {
	return &Backend{devices: devices, positions: positions, events: events}
}

func (b *Backend) LoginDev(ctx context.Context, devID, name, protocol string) error {
	if _, err := b.devices.Login(ctx, devID, name, protocol); err != nil {
		return fmt.Errorf("login %s: %w", devID, err)
	}
	return b.record(ctx, devID, model.EventLogin, map[string]interface{}{"protocol": protocol})
}

func (b *Backend) LogoutDev(ctx context.Context, devID, reason string) error {
	if err := b.devices.Logout(ctx, devID); err != nil {
		return fmt.Errorf("logout %s: %w", devID, err)
	}
	return b.record(ctx, devID, model.EventLogout, map[string]interface{}{"reason": reason})
}

func (b *Backend) UpdatePosDev(ctx context.Context, pos *model.Position) error {
	if err := b.positions.AddPosition(ctx, pos); err != nil {
		return fmt.Errorf("position of %s: %w", pos.DeviceID, err)
	}
	return b.devices.Touch(ctx, pos.DeviceID, pos.Timestamp, pos.ID)
}

// IgnorePosDev keeps the device alive without storing the filtered fix.
func (b *Backend) IgnorePosDev(ctx context.Context, pos *model.Position) error {
	return b.devices.Touch(ctx, pos.DeviceID, pos.Timestamp, "")
}

func (b *Backend) UpdateAlarmDev(ctx context.Context, devID, alarm string, pos *model.Position) error {
	data := map[string]interface{}{"alarm": alarm}
	if pos != nil {
		data["latitude"] = pos.Latitude
		data["longitude"] = pos.Longitude
		data["positionId"] = pos.ID
	}
	return b.record(ctx, devID, model.EventAlarm, data)
}

func (b *Backend) UpdateObdDev(ctx context.Context, devID string, data map[string]interface{}) error {
	return b.record(ctx, devID, model.EventObd, data)
}

func (b *Backend) UpdateStaticDev(ctx context.Context, static *model.Static) error {
	if err := b.devices.MergeStatic(ctx, static); err != nil {
		return fmt.Errorf("static of %s: %w", static.DeviceID, err)
	}
	return nil
}

// LookupDev returns up to limit positions of devID, newest first. A limit
// of one is answered from the cache when possible.
func (b *Backend) LookupDev(ctx context.Context, devID string, limit int) ([]*model.Position, error) {
	return b.positions.GetDevicePositions(ctx, devID, limit)
}

// Devices lists every device seen so far.
func (b *Backend) Devices(ctx context.Context) ([]*model.Device, error) {
	return b.devices.GetAllDevices(ctx)
}

func (b *Backend) Device(ctx context.Context, devID string) (*model.Device, error) {
	return b.devices.GetDevice(ctx, devID)
}

func (b *Backend) Events(ctx context.Context, devID string, limit int) ([]*model.Event, error) {
	return b.events.FindByDeviceID(ctx, devID, limit)
}

func (b *Backend) record(ctx context.Context, devID, kind string, data map[string]interface{}) error {
	if err := b.events.Create(ctx, model.NewEvent(devID, kind, data)); err != nil {
		return fmt.Errorf("%s event of %s: %w", kind, devID, err)
	}
	return nil
}
