package exporters

import (
	"context"
	"fmt"

	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

// MqttExporter publishes the snapshot of a usage point under <prefix>/<usage point>/...
type MqttExporter struct {
	snapshots *Snapshotter
	publisher Publisher
}

func NewMqttExporter(snapshots *Snapshotter, publisher Publisher) *MqttExporter {
	return &MqttExporter{snapshots: snapshots, publisher: publisher}
}

func (e *MqttExporter) Export(ctx context.Context, up domain.UsagePoint) error {
	snapshot, err := e.snapshots.Load(ctx, up)
	if err != nil {
		return err
	}

	data := mqttTopics(snapshot)

	logger.Log.WithFields(logrus.Fields{"usage_point_id": up.ID, "topics": len(data)}).Debug("Publishing usage point to MQTT")

	return e.publisher.PublishMultiple(data, up.ID.String())
}

func mqttTopics(snapshot *Snapshot) map[string]interface{} {
	data := map[string]interface{}{}

	if contract := snapshot.Contract; contract != nil {
		data["contract/segment"] = contract.Segment
		data["contract/subscribed_power"] = contract.SubscribedPower
		data["contract/distribution_tariff"] = contract.DistributionTariff
		data["contract/offpeak_hours"] = contract.OffpeakHours
		data["contract/contract_status"] = contract.ContractStatus
		data["contract/last_activation_date"] = contract.LastActivationDate
		data["contract/last_distribution_tariff_change_date"] = contract.LastDistributionTariffChangeDate
	}

	if address := snapshot.Address; address != nil {
		data["address/street"] = address.Street
		data["address/locality"] = address.Locality
		data["address/postal_code"] = address.PostalCode
		data["address/insee_code"] = address.InseeCode
		data["address/city"] = address.City
		data["address/country"] = address.Country
	}

	for measure, readings := range snapshot.Daily {
		for _, reading := range readings {
			data[fmt.Sprintf("%s/daily/%s", measure, reading.Date.In(snapshot.Today.Location()).Format("2006-01-02"))] = reading.Value
		}
		if yesterday, found := snapshot.Yesterday(measure); found {
			data[fmt.Sprintf("%s/daily/yesterday", measure)] = yesterday.Value
		}
	}

	for measure, readings := range snapshot.Detail {
		if len(readings) > 0 {
			last := readings[len(readings)-1]
			data[fmt.Sprintf("%s/detail/last", measure)] = last.Value
			data[fmt.Sprintf("%s/detail/last_date", measure)] = last.Date.In(snapshot.Today.Location()).Format("2006-01-02 15:04:05")
		}
	}

	if maxPower, found := readingOn(snapshot.MaxPower, snapshot.Today.AddDate(0, 0, -1)); found {
		data["consumption/max_power/yesterday"] = maxPower.Value
		data["consumption/max_power/yesterday_date"] = maxPower.Date.In(snapshot.Today.Location()).Format("2006-01-02 15:04:05")
	}

	if color, found := snapshot.TempoColor(snapshot.Today); found {
		data["tempo/today"] = string(color)
	}
	if color, found := snapshot.TempoColor(snapshot.Today.AddDate(0, 0, 1)); found {
		data["tempo/tomorrow"] = string(color)
	}

	if stat := snapshot.StatPrice; stat != nil {
		data[fmt.Sprintf("price/%d/consumption_kwh", stat.Year)] = stat.ConsumptionKWh
		data[fmt.Sprintf("price/%d/base", stat.Year)] = stat.BaseCost
		data[fmt.Sprintf("price/%d/tempo", stat.Year)] = stat.TempoCost
	}

	return data
}
