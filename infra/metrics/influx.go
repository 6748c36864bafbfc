package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/fieldserve/dispatch/core/metrics"
	"github.com/fieldserve/dispatch/infra/logger"
)

// InfluxSink writes board activity to an InfluxDB instance using the official
// client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// when the health check fails, so the board keeps running without metrics.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.BoardSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordEvent writes one reducer outcome as a point.
func (s *InfluxSink) RecordEvent(rec coremetrics.EventRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("board_event").
		AddTag("type", rec.Type).
		AddTag("outcome", rec.Outcome).
		AddTag("tech_id", rec.TechID).
		AddField("count", 1).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSnapshot writes one snapshot load as a point.
func (s *InfluxSink) RecordSnapshot(rec coremetrics.SnapshotRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("board_snapshot").
		AddTag("view_mode", string(rec.ViewMode)).
		AddTag("partial", strconv.FormatBool(rec.Partial)).
		AddField("duration_ms", rec.Duration.Milliseconds()).
		AddField("unassigned", rec.Unassigned).
		AddField("assigned", rec.Assigned).
		AddField("technicians", rec.Techs).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCommand writes one command round-trip as a point.
func (s *InfluxSink) RecordCommand(rec coremetrics.CommandRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("board_command").
		AddTag("command", rec.Command).
		AddTag("success", strconv.FormatBool(rec.Success)).
		AddTag("tech_id", rec.TechID).
		AddField("duration_ms", rec.Duration.Milliseconds()).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordConnection writes one connection transition as a point.
func (s *InfluxSink) RecordConnection(rec coremetrics.ConnectionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("board_connection").
		AddTag("state", string(rec.State)).
		AddField("attempt", rec.Attempt).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}
