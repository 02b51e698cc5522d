package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"trackgate/internal/core/model"
)

type inMemoryDeviceRepository struct {
	devices map[string]*model.Device
	mutex   sync.RWMutex
}

func NewInMemoryDeviceRepository() DeviceRepository {
	return &inMemoryDeviceRepository{
		devices: make(map[string]*model.Device),
	}
}

func (r *inMemoryDeviceRepository) Create(ctx context.Context, device *model.Device) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.devices[device.ID]; exists {
		return fmt.Errorf("device with ID %s already exists", device.ID)
	}

	r.devices[device.ID] = device
	return nil
}

func (r *inMemoryDeviceRepository) Update(ctx context.Context, device *model.Device) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.devices[device.ID] = device
	return nil
}

func (r *inMemoryDeviceRepository) FindByID(ctx context.Context, id string) (*model.Device, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if device, exists := r.devices[id]; exists {
		return device, nil
	}
	return nil, nil
}

func (r *inMemoryDeviceRepository) FindByUniqueID(ctx context.Context, uniqueID string) (*model.Device, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, device := range r.devices {
		if device.UniqueID == uniqueID {
			return device, nil
		}
	}
	return nil, nil
}

func (r *inMemoryDeviceRepository) FindAll(ctx context.Context) ([]*model.Device, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	devices := make([]*model.Device, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, device)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].UniqueID < devices[j].UniqueID })
	return devices, nil
}
