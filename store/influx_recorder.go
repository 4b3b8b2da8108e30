package store

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/pkg/errors"
)

const defaultMeasurement = "hydropi"

// InfluxRecorder mirrors sampling rounds into an InfluxDB bucket, one
// point per round with a field per sensor column.
type InfluxRecorder struct {
	Host         string
	Token        string
	Organization string
	Bucket       string
	Measurement  string
}

func (ir *InfluxRecorder) measurement() string {
	if len(ir.Measurement) > 0 {
		return ir.Measurement
	}
	return defaultMeasurement
}

func (ir *InfluxRecorder) AppendRound(at time.Time, readings []Reading) error {
	if len(readings) == 0 {
		return nil
	}

	fields := map[string]interface{}{}
	for _, reading := range readings {
		fields[reading.Column] = reading.Value
	}

	client := influxdb2.NewClient(ir.Host, ir.Token)
	defer client.Close()

	writeApi := client.WriteAPIBlocking(ir.Organization, ir.Bucket)
	point := influxdb2.NewPoint(ir.measurement(), nil, fields, at)

	err := writeApi.WritePoint(context.Background(), point)
	return errors.Wrap(err, "failed to write sampling round to influx")
}
