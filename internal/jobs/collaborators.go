package jobs

import (
	"context"
	"time"

	"github.com/myelectricaldata/importer/internal/domain"
)

// Store is the part of the metering repository the orchestrator needs
type Store interface {
	Get(ctx context.Context, id domain.UsagePointID) (domain.UsagePoint, error)
	GetAll(ctx context.Context) ([]domain.UsagePoint, error)
	SetErrorLog(ctx context.Context, id domain.UsagePointID, message string) error
	GetErrorLog(ctx context.Context, id domain.UsagePointID) (string, error)
	SetLastCall(ctx context.Context, id domain.UsagePointID, lastCall time.Time) error
}

// MeteringClient fetches from the gateway and persists what it receives
type MeteringClient interface {
	Status(ctx context.Context, up domain.UsagePoint, headers map[string]string) (map[string]interface{}, error)
	Contract(ctx context.Context, up domain.UsagePoint, headers map[string]string) error
	Addresses(ctx context.Context, up domain.UsagePoint, headers map[string]string) error
	Daily(ctx context.Context, up domain.UsagePoint, headers map[string]string, measure domain.MeasureType) error
	Detail(ctx context.Context, up domain.UsagePoint, headers map[string]string, measure domain.MeasureType) error
	MaxPower(ctx context.Context, up domain.UsagePoint, headers map[string]string) error
	Tempo(ctx context.Context, headers map[string]string) error
	Ecowatt(ctx context.Context, headers map[string]string) error
}

type PriceCalculator interface {
	Compute(ctx context.Context, up domain.UsagePoint) (domain.StatPrice, error)
}

// Exporter pushes the persisted data of a usage point to one sink
type Exporter interface {
	Export(ctx context.Context, up domain.UsagePoint) error
}

// Exporters holds the configured sinks, a nil sink is disabled
type Exporters struct {
	Mqtt            Exporter
	Influxdb        Exporter
	HomeAssistant   Exporter
	HomeAssistantWs Exporter
}

type RunLock interface {
	LockStatus(ctx context.Context) (bool, error)
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}
