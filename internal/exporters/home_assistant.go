package exporters

import (
	"context"
	"fmt"

	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/version"
)

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SwVersion    string   `json:"sw_version"`
}

type discoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	ObjectID          string          `json:"object_id"`
	StateTopic        string          `json:"state_topic"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	StateClass        string          `json:"state_class,omitempty"`
	Icon              string          `json:"icon,omitempty"`
	Device            discoveryDevice `json:"device"`
}

type sensor struct {
	key         string
	name        string
	unit        string
	deviceClass string
	stateClass  string
	icon        string
	value       interface{}
}

// HomeAssistantExporter publishes MQTT discovery configs and states under
// <discovery prefix>/sensor/myelectricaldata_<usage point>/<sensor>/
// The publisher must be rooted at the discovery prefix.
type HomeAssistantExporter struct {
	snapshots *Snapshotter
	publisher Publisher
}

func NewHomeAssistantExporter(snapshots *Snapshotter, publisher Publisher) *HomeAssistantExporter {
	return &HomeAssistantExporter{snapshots: snapshots, publisher: publisher}
}

func (e *HomeAssistantExporter) Export(ctx context.Context, up domain.UsagePoint) error {
	snapshot, err := e.snapshots.Load(ctx, up)
	if err != nil {
		return err
	}

	nodeID := "myelectricaldata_" + up.ID.String()
	subPrefix := "sensor/" + nodeID

	name := up.Name
	if name == "" {
		name = up.ID.String()
	}
	device := discoveryDevice{
		Identifiers:  []string{nodeID},
		Name:         "Linky " + name,
		Manufacturer: "Enedis",
		Model:        "linky",
		SwVersion:    version.Version,
	}

	data := map[string]interface{}{}
	for _, s := range homeAssistantSensors(snapshot) {
		// same topic the state below is published to
		stateTopic := e.publisher.Topics().Build(subPrefix, s.key+"/state")
		data[s.key+"/config"] = discoveryConfig{
			Name:              s.name,
			UniqueID:          nodeID + "_" + s.key,
			ObjectID:          nodeID + "_" + s.key,
			StateTopic:        stateTopic,
			UnitOfMeasurement: s.unit,
			DeviceClass:       s.deviceClass,
			StateClass:        s.stateClass,
			Icon:              s.icon,
			Device:            device,
		}
		data[s.key+"/state"] = s.value
	}

	return e.publisher.PublishMultiple(data, subPrefix)
}

func homeAssistantSensors(snapshot *Snapshot) []sensor {
	var sensors []sensor

	for _, measure := range []domain.MeasureType{domain.Consumption, domain.Production} {
		if yesterday, found := snapshot.Yesterday(measure); found {
			sensors = append(sensors, sensor{
				key:         measure.String(),
				name:        fmt.Sprintf("%s hier", measureLabel(measure)),
				unit:        "kWh",
				deviceClass: "energy",
				stateClass:  "total",
				value:       yesterday.Value / 1000,
			})
		}
	}

	if maxPower, found := readingOn(snapshot.MaxPower, snapshot.Today.AddDate(0, 0, -1)); found {
		sensors = append(sensors, sensor{
			key:         "max_power",
			name:        "Puissance maximum hier",
			unit:        "kVA",
			deviceClass: "apparent_power",
			stateClass:  "measurement",
			value:       maxPower.Value / 1000,
		})
	}

	if color, found := snapshot.TempoColor(snapshot.Today); found {
		sensors = append(sensors, sensor{key: "tempo_today", name: "Tempo aujourd'hui", icon: "mdi:palette", value: string(color)})
	}
	if color, found := snapshot.TempoColor(snapshot.Today.AddDate(0, 0, 1)); found {
		sensors = append(sensors, sensor{key: "tempo_tomorrow", name: "Tempo demain", icon: "mdi:palette", value: string(color)})
	}

	if stat := snapshot.StatPrice; stat != nil {
		sensors = append(sensors,
			sensor{key: "price_base", name: fmt.Sprintf("Coût BASE %d", stat.Year), unit: "EUR", deviceClass: "monetary", stateClass: "total", value: stat.BaseCost},
			sensor{key: "price_tempo", name: fmt.Sprintf("Coût TEMPO %d", stat.Year), unit: "EUR", deviceClass: "monetary", stateClass: "total", value: stat.TempoCost},
		)
	}

	return sensors
}

func measureLabel(measure domain.MeasureType) string {
	if measure == domain.Production {
		return "Production"
	}
	return "Consommation"
}
