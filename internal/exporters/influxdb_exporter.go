package exporters

import (
	"context"
	"fmt"
	"strconv"

	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

// InfluxExporter writes the readings of a usage point as time series points
type InfluxExporter struct {
	snapshots *Snapshotter
	client    influxdb2.Client
	writeAPI  api.WriteAPIBlocking
}

func NewInfluxExporter(snapshots *Snapshotter, client influxdb2.Client, org string, bucket string) *InfluxExporter {
	return &InfluxExporter{
		snapshots: snapshots,
		client:    client,
		writeAPI:  client.WriteAPIBlocking(org, bucket),
	}
}

func (e *InfluxExporter) Export(ctx context.Context, up domain.UsagePoint) error {
	snapshot, err := e.snapshots.Load(ctx, up)
	if err != nil {
		return err
	}

	points := influxPoints(up.ID, snapshot)
	if len(points) == 0 {
		return nil
	}

	if err := e.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write influxdb points: %w", err)
	}

	metrics.influxPointsWritten.Add(float64(len(points)))
	logger.Log.WithFields(logrus.Fields{"usage_point_id": up.ID, "points": len(points)}).Debug("Points written to InfluxDB")

	return nil
}

func (e *InfluxExporter) Close() {
	e.client.Close()
}

func influxPoints(id domain.UsagePointID, snapshot *Snapshot) []*write.Point {
	var points []*write.Point

	tags := func(extra ...string) map[string]string {
		result := map[string]string{"usage_point_id": id.String()}
		for i := 0; i+1 < len(extra); i += 2 {
			result[extra[i]] = extra[i+1]
		}
		return result
	}

	for _, measure := range []domain.MeasureType{domain.Consumption, domain.Production} {
		for _, reading := range snapshot.Daily[measure] {
			points = append(points, influxdb2.NewPoint(measure.String(),
				tags("granularity", "daily"),
				map[string]interface{}{"value": reading.Value, "kwh": reading.Value / 1000},
				reading.Date))
		}
		for _, reading := range snapshot.Detail[measure] {
			points = append(points, influxdb2.NewPoint(measure.String(),
				tags("granularity", "detail"),
				map[string]interface{}{"value": reading.Value, "interval": reading.Interval},
				reading.Date))
		}
	}

	for _, reading := range snapshot.MaxPower {
		points = append(points, influxdb2.NewPoint("max_power", tags(), map[string]interface{}{"value": reading.Value}, reading.Date))
	}

	if stat := snapshot.StatPrice; stat != nil {
		points = append(points, influxdb2.NewPoint("stat_price",
			tags("year", strconv.Itoa(stat.Year)),
			map[string]interface{}{"consumption_kwh": stat.ConsumptionKWh, "base": stat.BaseCost, "tempo": stat.TempoCost},
			stat.UpdatedAt))
	}

	return points
}
