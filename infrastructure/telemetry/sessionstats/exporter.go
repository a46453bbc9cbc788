package sessionstats

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil session source")
)

// Capacity is the live view of a game server.
type Capacity interface {
	ConnectionCount() int
	MaxPlayers() int
}

// Exporter publishes server occupancy and the collector's totals as
// observable instruments.
type Exporter struct {
	registration metric.Registration
}

func NewExporter(meter metric.Meter, capacity Capacity, collector *Collector) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if capacity == nil || collector == nil {
		return nil, ErrNilSource
	}

	active, err := meter.Int64ObservableGauge("avb_sessions_active",
		metric.WithDescription("Sessions currently established on the server."))
	if err != nil {
		return nil, fmt.Errorf("create active sessions gauge: %w", err)
	}
	maxPlayers, err := meter.Int64ObservableGauge("avb_sessions_capacity",
		metric.WithDescription("Configured maximum number of players."))
	if err != nil {
		return nil, fmt.Errorf("create capacity gauge: %w", err)
	}
	established, err := meter.Int64ObservableCounter("avb_sessions_established_total",
		metric.WithDescription("Sessions admitted since start."))
	if err != nil {
		return nil, fmt.Errorf("create established counter: %w", err)
	}
	rejected, err := meter.Int64ObservableCounter("avb_sessions_rejected_total",
		metric.WithDescription("Connection requests denied since start."))
	if err != nil {
		return nil, fmt.Errorf("create rejected counter: %w", err)
	}
	ended, err := meter.Int64ObservableCounter("avb_sessions_ended_total",
		metric.WithDescription("Sessions ended since start."))
	if err != nil {
		return nil, fmt.Errorf("create ended counter: %w", err)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(active, int64(capacity.ConnectionCount()))
		observer.ObserveInt64(maxPlayers, int64(capacity.MaxPlayers()))
		s := collector.Snapshot()
		observer.ObserveInt64(established, int64(s.Established))
		observer.ObserveInt64(rejected, int64(s.Rejected))
		observer.ObserveInt64(ended, int64(s.Ended))
		return nil
	}, active, maxPlayers, established, rejected, ended)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return &Exporter{registration: registration}, nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
