package relay

import (
	"context"
	"log"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"trackgate/internal/event"
)

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx records accepted tracks as "track" points.
type Influx struct {
	sink
	client influxdb2.Client
	writer pointWriter
}

func NewInflux(url, token, org, bucket string, logger *log.Logger) *Influx {
	client := influxdb2.NewClient(url, token)
	return &Influx{
		sink:   newSink("influx", logger, isTrack),
		client: client,
		writer: client.WriteAPIBlocking(org, bucket),
	}
}

func (i *Influx) Run(ctx context.Context) error {
	if i.client != nil {
		defer i.client.Close()
	}
	return i.drain(ctx, func(ctx context.Context, e event.Event) error {
		return i.writer.WritePoint(ctx, trackPoint(e))
	})
}

func trackPoint(e event.Event) *write.Point {
	pos := e.Record.Position
	tags := map[string]string{
		"deviceId": e.DevID,
		"adapter":  e.Info,
	}
	fields := map[string]interface{}{
		"latitude":  pos.Latitude,
		"longitude": pos.Longitude,
		"speed":     pos.Speed,
		"course":    pos.Course,
		"valid":     pos.Valid,
	}
	if pos.Heading != 0 {
		fields["heading"] = pos.Heading
	}
	if pos.Type != 0 {
		fields["navStatus"] = pos.NavStatus
	}
	return write.NewPoint("track", tags, fields, pos.Timestamp)
}
