package service

import (
	"context"
	"sync"
	"testing"
	"time"
	"trackgate/internal/core/model"
	"trackgate/internal/core/repository"
)

type mapCache struct {
	mu   sync.Mutex
	last map[string]*model.Position
	hits int
}

func (c *mapCache) SetLastPosition(ctx context.Context, pos *model.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[pos.DeviceID] = pos
	return nil
}

func (c *mapCache) LastPosition(ctx context.Context, devID string) (*model.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.last[devID]
	if ok {
		c.hits++
	}
	return pos, nil
}

func newTestBackend() (*Backend, *mapCache) {
	cache := &mapCache{last: make(map[string]*model.Position)}
	return NewBackend(
		NewDeviceService(repository.NewInMemoryDeviceRepository()),
		NewPositionService(repository.NewInMemoryPositionRepository(), cache),
		repository.NewInMemoryEventRepository(),
	), cache
}

func TestBackendLoginLogout(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend()

	if err := b.LoginDev(ctx, "244740248", "", "ais"); err != nil {
		t.Fatal(err)
	}
	if err := b.LoginDev(ctx, "244740248", "", "ais"); err != nil {
		t.Fatal(err)
	}
	devices, _ := b.Devices(ctx)
	if len(devices) != 1 {
		t.Fatalf("devices = %d, want one per unique id", len(devices))
	}
	if devices[0].Status != model.DeviceActive || devices[0].Protocol != "ais" {
		t.Errorf("device after login = %+v", devices[0])
	}

	if err := b.LogoutDev(ctx, "244740248", "inactivity"); err != nil {
		t.Fatal(err)
	}
	d, _ := b.Device(ctx, "244740248")
	if d.Status != model.DeviceInactive {
		t.Errorf("status after logout = %q", d.Status)
	}

	events, _ := b.Events(ctx, "244740248", 0)
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	kinds := map[string]int{}
	for _, e := range events {
		kinds[e.Kind]++
	}
	if kinds[model.EventLogin] != 2 || kinds[model.EventLogout] != 1 {
		t.Errorf("event kinds = %v", kinds)
	}

	if err := b.LoginDev(ctx, "", "", "ais"); err == nil {
		t.Error("empty device id accepted")
	}
}

func TestBackendPositionsAndLookup(t *testing.T) {
	ctx := context.Background()
	b, cache := newTestBackend()
	b.LoginDev(ctx, "app-1", "van", "nmea")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		pos := model.NewPosition("app-1", 45.5+float64(i)*0.01, -73.6)
		pos.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := b.UpdatePosDev(ctx, pos); err != nil {
			t.Fatal(err)
		}
	}

	bad := model.NewPosition("app-1", 91, 0)
	if err := b.UpdatePosDev(ctx, bad); err == nil {
		t.Error("out of range position stored")
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"all", 0, 3},
		{"two", 2, 2},
		{"latest", 1, 1},
		{"more than stored", 10, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.LookupDev(ctx, "app-1", tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Fatalf("LookupDev(%d) = %d positions, want %d", tt.limit, len(got), tt.want)
			}
			if !got[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
				t.Errorf("first position at %v, want newest", got[0].Timestamp)
			}
		})
	}
	if cache.hits == 0 {
		t.Error("limit 1 lookup did not use the cache")
	}

	d, _ := b.Device(ctx, "app-1")
	if !d.LastUpdate.Equal(base.Add(2*time.Minute)) || d.PositionID == "" {
		t.Errorf("device not touched: %+v", d)
	}

	ignored := model.NewPosition("app-1", 45.5, -73.6)
	ignored.Timestamp = base.Add(time.Hour)
	b.IgnorePosDev(ctx, ignored)
	got, _ := b.LookupDev(ctx, "app-1", 0)
	if len(got) != 3 {
		t.Errorf("ignored position stored, have %d", len(got))
	}
	d, _ = b.Device(ctx, "app-1")
	if !d.LastUpdate.Equal(ignored.Timestamp) {
		t.Errorf("ignored fix did not refresh the device")
	}

	none, err := b.LookupDev(ctx, "unknown", 1)
	if err != nil || len(none) != 0 {
		t.Errorf("LookupDev(unknown) = %v, %v", none, err)
	}
}

func TestBackendStaticMerge(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend()
	b.LoginDev(ctx, "412321751", "", "ais")

	b.UpdateStaticDev(ctx, &model.Static{DeviceID: "412321751", ShipName: "HAI XUN"})
	b.UpdateStaticDev(ctx, &model.Static{DeviceID: "412321751", CallSign: "BXYZ", Cargo: 30, DimA: 10, DimB: 5, DimC: 2, DimD: 3})

	d, _ := b.Device(ctx, "412321751")
	if d.Static == nil {
		t.Fatal("no static data")
	}
	if d.Static.ShipName != "HAI XUN" || d.Static.CallSign != "BXYZ" || d.Static.Cargo != 30 || d.Static.DimA != 10 {
		t.Errorf("static = %+v", d.Static)
	}
	if d.Name != "HAI XUN" {
		t.Errorf("device name = %q", d.Name)
	}
}

func TestBackendAlarmAndObdEvents(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend()

	pos := model.NewPosition("123456789012345", 22.62919, 114.14369)
	b.UpdateAlarmDev(ctx, "123456789012345", "sos", pos)
	b.UpdateObdDev(ctx, "123456789012345", map[string]interface{}{"rpm": 900})

	events, _ := b.Events(ctx, "123456789012345", 0)
	if len(events) != 2 {
		t.Fatalf("events = %d", len(events))
	}
	for _, e := range events {
		switch e.Kind {
		case model.EventAlarm:
			if e.Data["alarm"] != "sos" || e.Data["positionId"] != pos.ID {
				t.Errorf("alarm data = %v", e.Data)
			}
		case model.EventObd:
			if e.Data["rpm"] != 900 {
				t.Errorf("obd data = %v", e.Data)
			}
		default:
			t.Errorf("unexpected event %q", e.Kind)
		}
	}

	limited, _ := b.Events(ctx, "123456789012345", 1)
	if len(limited) != 1 {
		t.Errorf("limited events = %d", len(limited))
	}
}
