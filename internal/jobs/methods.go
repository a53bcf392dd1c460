package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/metering"
)

var ErrDisabled = errors.New("disabled in configuration")

type scope int

const (
	perJob scope = iota
	perUsagePoint
)

type method struct {
	name  string
	label string
	scope scope
	run   func(j *Job, ctx context.Context, up domain.UsagePoint) error
}

// dispatchTable lists every method in execution order
var dispatchTable = []method{
	{"get_tempo", "Récupération des jours Tempo", perJob, (*Job).getTempo},
	{"get_ecowatt", "Récupération des données EcoWatt", perJob, (*Job).getEcowatt},
	{"get_account_status", "Récupération des informations du compte", perUsagePoint, (*Job).getAccountStatus},
	{"get_contract", "Récupération des informations contractuelles", perUsagePoint, (*Job).getContract},
	{"get_addresses", "Récupération des coordonnées postales", perUsagePoint, (*Job).getAddresses},
	{"get_consumption", "Récupération de la consommation journalière", perUsagePoint, (*Job).getConsumption},
	{"get_consumption_detail", "Récupération de la consommation détaillée", perUsagePoint, (*Job).getConsumptionDetail},
	{"get_production", "Récupération de la production journalière", perUsagePoint, (*Job).getProduction},
	{"get_production_detail", "Récupération de la production détaillée", perUsagePoint, (*Job).getProductionDetail},
	{"get_consumption_max_power", "Récupération de la puissance maximum journalière", perUsagePoint, (*Job).getConsumptionMaxPower},
	{"stat_price", "Génération des statistiques de prix", perUsagePoint, (*Job).statPrice},
	{"export_mqtt", "Exportation des données vers MQTT", perUsagePoint, (*Job).exportMqtt},
	{"export_influxdb", "Exportation des données vers InfluxDB", perUsagePoint, (*Job).exportInfluxdb},
	{"export_home_assistant", "Exportation des données vers Home Assistant", perUsagePoint, (*Job).exportHomeAssistant},
	{"export_home_assistant_ws", "Exportation des statistiques vers Home Assistant", perUsagePoint, (*Job).exportHomeAssistantWs},
}

// MethodNames returns the names of the methods of the given scope in execution order
func MethodNames(perUsagePointMethods bool) []string {
	want := perJob
	if perUsagePointMethods {
		want = perUsagePoint
	}
	var names []string
	for _, m := range dispatchTable {
		if m.scope == want {
			names = append(names, m.name)
		}
	}
	return names
}

func (j *Job) getTempo(ctx context.Context, _ domain.UsagePoint) error {
	return j.client.Tempo(ctx, globalHeaders())
}

func (j *Job) getEcowatt(ctx context.Context, _ domain.UsagePoint) error {
	return j.client.Ecowatt(ctx, globalHeaders())
}

// getAccountStatus is the only method that persists remote errors
func (j *Job) getAccountStatus(ctx context.Context, up domain.UsagePoint) error {
	_, err := j.client.Status(ctx, up, HeaderGenerate(up))

	var remoteErr *metering.RemoteError
	if errors.As(err, &remoteErr) {
		if logErr := j.store.SetErrorLog(ctx, up.ID, remoteErr.Error()); logErr != nil {
			return fmt.Errorf("store error log: %w", logErr)
		}
		return err
	}
	if err != nil {
		return err
	}

	return j.store.SetLastCall(ctx, up.ID, j.now())
}

func (j *Job) getContract(ctx context.Context, up domain.UsagePoint) error {
	return j.client.Contract(ctx, up, HeaderGenerate(up))
}

func (j *Job) getAddresses(ctx context.Context, up domain.UsagePoint) error {
	return j.client.Addresses(ctx, up, HeaderGenerate(up))
}

func (j *Job) getConsumption(ctx context.Context, up domain.UsagePoint) error {
	return j.getDaily(ctx, up, domain.Consumption)
}

func (j *Job) getConsumptionDetail(ctx context.Context, up domain.UsagePoint) error {
	return j.getDetail(ctx, up, domain.Consumption)
}

func (j *Job) getProduction(ctx context.Context, up domain.UsagePoint) error {
	return j.getDaily(ctx, up, domain.Production)
}

func (j *Job) getProductionDetail(ctx context.Context, up domain.UsagePoint) error {
	return j.getDetail(ctx, up, domain.Production)
}

func (j *Job) getDaily(ctx context.Context, up domain.UsagePoint, measure domain.MeasureType) error {
	if !up.Enabled(measure, false) {
		return ErrDisabled
	}
	return j.client.Daily(ctx, up, HeaderGenerate(up), measure)
}

func (j *Job) getDetail(ctx context.Context, up domain.UsagePoint, measure domain.MeasureType) error {
	if !up.Enabled(measure, true) {
		return ErrDisabled
	}
	return j.client.Detail(ctx, up, HeaderGenerate(up), measure)
}

func (j *Job) getConsumptionMaxPower(ctx context.Context, up domain.UsagePoint) error {
	if !up.Consumption {
		return ErrDisabled
	}
	return j.client.MaxPower(ctx, up, HeaderGenerate(up))
}

func (j *Job) statPrice(ctx context.Context, up domain.UsagePoint) error {
	if j.pricing == nil || !up.Consumption {
		return ErrDisabled
	}
	_, err := j.pricing.Compute(ctx, up)
	return err
}

func (j *Job) exportMqtt(ctx context.Context, up domain.UsagePoint) error {
	return export(ctx, j.exporters.Mqtt, up)
}

func (j *Job) exportInfluxdb(ctx context.Context, up domain.UsagePoint) error {
	return export(ctx, j.exporters.Influxdb, up)
}

func (j *Job) exportHomeAssistant(ctx context.Context, up domain.UsagePoint) error {
	return export(ctx, j.exporters.HomeAssistant, up)
}

func (j *Job) exportHomeAssistantWs(ctx context.Context, up domain.UsagePoint) error {
	return export(ctx, j.exporters.HomeAssistantWs, up)
}

func export(ctx context.Context, exporter Exporter, up domain.UsagePoint) error {
	if exporter == nil {
		return ErrDisabled
	}
	return exporter.Export(ctx, up)
}
