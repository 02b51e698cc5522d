package relay

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/segmentio/kafka-go"

	"trackgate/internal/core/model"
	"trackgate/internal/event"
)

var quiet = log.New(io.Discard, "", 0)

func trackEvent(dev string, lat, lon float64) event.Event {
	pos := model.NewPosition(dev, lat, lon)
	pos.Speed = 5.14
	pos.Course = 271.5
	return event.Event{
		Kind:   event.KindAccept,
		DevID:  dev,
		Status: model.CmdTrack,
		Info:   "ais",
		Time:   time.Now(),
		Record: &model.Record{Cmd: model.CmdTrack, DevID: dev, Position: pos},
	}
}

// start runs r until the test ends.
func start(t *testing.T, r Relay) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMQTTTopics(t *testing.T) {
	var mu sync.Mutex
	got := map[string][]byte{}
	m := &MQTT{sink: newSink("mqtt", quiet, nil), topic: "trackgate"}
	m.publish = func(topic string, payload []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got[topic] = payload
		return nil
	}
	start(t, m)

	m.Notify(trackEvent("244740248", 51.7, 5.3))
	m.Notify(event.Event{Kind: event.KindQueue, Status: "PUSHED", JobID: "j1"})
	m.Notify(event.Event{Kind: event.KindDevQuit, DevID: "412321751", Info: "inactivity"})

	want := []string{
		"trackgate/244740248/accept",
		"trackgate/gateway/queue",
		"trackgate/412321751/dev-quit",
	}
	waitFor(t, "three publishes", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	})
	for _, topic := range want {
		var e event.Event
		if err := json.Unmarshal(got[topic], &e); err != nil {
			t.Errorf("%s: %v", topic, err)
		}
	}
}

type fakeKafka struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (f *fakeKafka) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error { return nil }

func (f *fakeKafka) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func TestKafkaStreamsAcceptedRecords(t *testing.T) {
	w := &fakeKafka{}
	k := &Kafka{sink: newSink("kafka", quiet, isAccept), writer: w}
	start(t, k)

	k.Notify(event.Event{Kind: event.KindNotice, DevID: "x", Info: "ignored"})
	k.Notify(trackEvent("244740248", 51.7, 5.3))
	k.Notify(event.Event{
		Kind:   event.KindAccept,
		DevID:  "412321751",
		Info:   "ais",
		Record: &model.Record{Cmd: model.CmdStatic, DevID: "412321751", Static: &model.Static{DeviceID: "412321751", ShipName: "HAI XUN"}},
	})

	waitFor(t, "two messages", func() bool { return w.count() == 2 })
	time.Sleep(20 * time.Millisecond)
	if w.count() != 2 {
		t.Fatalf("messages = %d, notices must not be streamed", w.count())
	}

	msg := w.msgs[0]
	if string(msg.Key) != "244740248" {
		t.Errorf("key = %q", msg.Key)
	}
	var rec model.Record
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Cmd != model.CmdTrack || rec.Position == nil || rec.Position.Latitude != 51.7 {
		t.Errorf("record = %+v", rec)
	}
	if len(msg.Headers) != 2 || string(msg.Headers[0].Value) != model.CmdTrack {
		t.Errorf("headers = %v", msg.Headers)
	}
}

type fakePoints struct {
	mu     sync.Mutex
	points []*write.Point
}

func (f *fakePoints) WritePoint(ctx context.Context, points ...*write.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, points...)
	return nil
}

func (f *fakePoints) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func TestInfluxWritesTracks(t *testing.T) {
	w := &fakePoints{}
	i := &Influx{sink: newSink("influx", quiet, isTrack), writer: w}
	start(t, i)

	i.Notify(event.Event{Kind: event.KindAccept, DevID: "a", Record: &model.Record{Cmd: model.CmdPing, DevID: "a"}})
	i.Notify(trackEvent("244740248", 51.7, 5.3))
	waitFor(t, "one point", func() bool { return w.count() == 1 })

	p := w.points[0]
	if p.Name() != "track" {
		t.Errorf("measurement = %q", p.Name())
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["deviceId"] != "244740248" || tags["adapter"] != "ais" {
		t.Errorf("tags = %v", tags)
	}
	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["latitude"] != 51.7 || fields["course"] != 271.5 {
		t.Errorf("fields = %v", fields)
	}
}

func TestSinkDropsWhenFull(t *testing.T) {
	s := newSink("test", quiet, nil)
	for i := 0; i < bufferSize+10; i++ {
		s.Notify(event.Event{Kind: event.KindNotice})
	}
	if len(s.in) != bufferSize {
		t.Errorf("buffered = %d, want %d", len(s.in), bufferSize)
	}
}

func TestConsoleStreamsEvents(t *testing.T) {
	c := NewConsole(quiet)
	start(t, c)
	srv := httptest.NewServer(c)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitFor(t, "console client", func() bool { return c.Clients() == 1 })

	c.Notify(event.Event{Kind: event.KindDevAuth, DevID: "app-1", Status: "LOGIN"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e event.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatal(err)
	}
	if e.Kind != event.KindDevAuth || e.DevID != "app-1" {
		t.Errorf("event = %+v", e)
	}

	conn.Close()
	waitFor(t, "console client removal", func() bool { return c.Clients() == 0 })
}
