package metering_repository

import (
	"context"
	"time"

	"github.com/myelectricaldata/importer/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 500

func (r *SqlMeteringRepository) StoreContract(ctx context.Context, id domain.UsagePointID, contract domain.Contract) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := Contract{
		UsagePointID:                     string(id),
		Segment:                          contract.Segment,
		SubscribedPower:                  contract.SubscribedPower,
		DistributionTariff:               contract.DistributionTariff,
		OffpeakHours:                     contract.OffpeakHours,
		ContractStatus:                   contract.ContractStatus,
		LastActivationDate:               contract.LastActivationDate,
		LastDistributionTariffChangeDate: contract.LastDistributionTariffChangeDate,
	}

	return r.database.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *SqlMeteringRepository) GetContract(ctx context.Context, id domain.UsagePointID) (*domain.Contract, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []Contract
	if err := r.database.WithContext(ctx).Where(&Contract{UsagePointID: string(id)}).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	return &domain.Contract{
		Segment:                          row.Segment,
		SubscribedPower:                  row.SubscribedPower,
		DistributionTariff:               row.DistributionTariff,
		OffpeakHours:                     row.OffpeakHours,
		ContractStatus:                   row.ContractStatus,
		LastActivationDate:               row.LastActivationDate,
		LastDistributionTariffChangeDate: row.LastDistributionTariffChangeDate,
	}, nil
}

func (r *SqlMeteringRepository) StoreAddress(ctx context.Context, id domain.UsagePointID, address domain.Address) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := Address{
		UsagePointID: string(id),
		Street:       address.Street,
		Locality:     address.Locality,
		PostalCode:   address.PostalCode,
		InseeCode:    address.InseeCode,
		City:         address.City,
		Country:      address.Country,
	}

	return r.database.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *SqlMeteringRepository) GetAddress(ctx context.Context, id domain.UsagePointID) (*domain.Address, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []Address
	if err := r.database.WithContext(ctx).Where(&Address{UsagePointID: string(id)}).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	return &domain.Address{
		Street:     row.Street,
		Locality:   row.Locality,
		PostalCode: row.PostalCode,
		InseeCode:  row.InseeCode,
		City:       row.City,
		Country:    row.Country,
	}, nil
}

func (r *SqlMeteringRepository) StoreDaily(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	callDurationTimer := prometheus.NewTimer(metrics.sqlStoreReadingsDuration.WithLabelValues("daily"))
	defer callDurationTimer.ObserveDuration()

	rows := make([]Daily, 0, len(readings))
	for _, reading := range readings {
		rows = append(rows, Daily{
			UsagePointID: string(id),
			MeasureType:  measure.String(),
			Date:         reading.Date.UTC(),
			Value:        reading.Value,
			Blacklist:    reading.Blacklist,
		})
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.database.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "usage_point_id"}, {Name: "measure_type"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "blacklist"}),
	}).CreateInBatches(&rows, upsertBatchSize).Error
}

func (r *SqlMeteringRepository) GetDaily(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, from, to time.Time) ([]domain.Reading, error) {

	callDurationTimer := prometheus.NewTimer(metrics.sqlLoadReadingsDuration.WithLabelValues("daily"))
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []Daily
	err := r.database.WithContext(ctx).
		Where("usage_point_id = ? AND measure_type = ? AND date >= ? AND date < ?", string(id), measure.String(), from.UTC(), to.UTC()).
		Order("date").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	readings := make([]domain.Reading, 0, len(rows))
	for _, row := range rows {
		readings = append(readings, domain.Reading{Date: row.Date, Value: row.Value, Blacklist: row.Blacklist})
	}
	return readings, nil
}

// SumDaily returns the total of the daily readings stored before the given date, in Wh
func (r *SqlMeteringRepository) SumDaily(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, before time.Time) (float64, error) {

	callDurationTimer := prometheus.NewTimer(metrics.sqlLoadReadingsDuration.WithLabelValues("daily_sum"))
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total float64
	err := r.database.WithContext(ctx).
		Model(&Daily{}).
		Select("COALESCE(SUM(value), 0)").
		Where("usage_point_id = ? AND measure_type = ? AND date < ?", string(id), measure.String(), before.UTC()).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *SqlMeteringRepository) StoreDetail(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	callDurationTimer := prometheus.NewTimer(metrics.sqlStoreReadingsDuration.WithLabelValues("detail"))
	defer callDurationTimer.ObserveDuration()

	rows := make([]Detail, 0, len(readings))
	for _, reading := range readings {
		rows = append(rows, Detail{
			UsagePointID: string(id),
			MeasureType:  measure.String(),
			Date:         reading.Date.UTC(),
			Value:        reading.Value,
			Interval:     reading.Interval,
			Blacklist:    reading.Blacklist,
		})
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.database.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "usage_point_id"}, {Name: "measure_type"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "interval", "blacklist"}),
	}).CreateInBatches(&rows, upsertBatchSize).Error
}

func (r *SqlMeteringRepository) GetDetail(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, from, to time.Time) ([]domain.Reading, error) {

	callDurationTimer := prometheus.NewTimer(metrics.sqlLoadReadingsDuration.WithLabelValues("detail"))
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []Detail
	err := r.database.WithContext(ctx).
		Where("usage_point_id = ? AND measure_type = ? AND date >= ? AND date < ?", string(id), measure.String(), from.UTC(), to.UTC()).
		Order("date").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	readings := make([]domain.Reading, 0, len(rows))
	for _, row := range rows {
		readings = append(readings, domain.Reading{Date: row.Date, Value: row.Value, Interval: row.Interval, Blacklist: row.Blacklist})
	}
	return readings, nil
}

func (r *SqlMeteringRepository) StoreMaxPower(ctx context.Context, id domain.UsagePointID, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	callDurationTimer := prometheus.NewTimer(metrics.sqlStoreReadingsDuration.WithLabelValues("max_power"))
	defer callDurationTimer.ObserveDuration()

	rows := make([]MaxPower, 0, len(readings))
	for _, reading := range readings {
		eventDate := reading.Date.UTC()
		day := time.Date(eventDate.Year(), eventDate.Month(), eventDate.Day(), 0, 0, 0, 0, time.UTC)
		rows = append(rows, MaxPower{
			UsagePointID: string(id),
			Date:         day,
			Value:        reading.Value,
			EventDate:    &eventDate,
		})
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.database.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "usage_point_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "event_date"}),
	}).CreateInBatches(&rows, upsertBatchSize).Error
}

func (r *SqlMeteringRepository) GetMaxPower(ctx context.Context, id domain.UsagePointID, from, to time.Time) ([]domain.Reading, error) {

	callDurationTimer := prometheus.NewTimer(metrics.sqlLoadReadingsDuration.WithLabelValues("max_power"))
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []MaxPower
	err := r.database.WithContext(ctx).
		Where("usage_point_id = ? AND date >= ? AND date < ?", string(id), from.UTC(), to.UTC()).
		Order("date").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	readings := make([]domain.Reading, 0, len(rows))
	for _, row := range rows {
		date := row.Date
		if row.EventDate != nil {
			date = *row.EventDate
		}
		readings = append(readings, domain.Reading{Date: date, Value: row.Value})
	}
	return readings, nil
}

func (r *SqlMeteringRepository) StoreTempo(ctx context.Context, days []domain.CalendarDay) error {
	if len(days) == 0 {
		return nil
	}

	rows := make([]Tempo, 0, len(days))
	for _, day := range days {
		rows = append(rows, Tempo{Date: day.Date.UTC(), Color: string(day.Color)})
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.database.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&rows, upsertBatchSize).Error
}

func (r *SqlMeteringRepository) GetTempo(ctx context.Context, from, to time.Time) ([]domain.CalendarDay, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []Tempo
	err := r.database.WithContext(ctx).
		Where("date >= ? AND date < ?", from.UTC(), to.UTC()).
		Order("date").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	days := make([]domain.CalendarDay, 0, len(rows))
	for _, row := range rows {
		days = append(days, domain.CalendarDay{Date: row.Date, Color: domain.TempoColor(row.Color)})
	}
	return days, nil
}

func (r *SqlMeteringRepository) StoreEcowatt(ctx context.Context, days []domain.EcowattDay) error {
	if len(days) == 0 {
		return nil
	}

	rows := make([]Ecowatt, 0, len(days))
	for _, day := range days {
		rows = append(rows, Ecowatt{Date: day.Date.UTC(), Value: day.Value, Message: day.Message, Detail: day.Detail})
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.database.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(&rows, upsertBatchSize).Error
}

func (r *SqlMeteringRepository) StoreStatPrice(ctx context.Context, id domain.UsagePointID, stat domain.StatPrice) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := StatPrice{
		UsagePointID:   string(id),
		Year:           stat.Year,
		ConsumptionKWh: stat.ConsumptionKWh,
		BaseCost:       stat.BaseCost,
		TempoCost:      stat.TempoCost,
		TempoBlueKWh:   stat.TempoKWh[domain.TempoBlue],
		TempoWhiteKWh:  stat.TempoKWh[domain.TempoWhite],
		TempoRedKWh:    stat.TempoKWh[domain.TempoRed],
	}

	return r.database.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *SqlMeteringRepository) GetStatPrice(ctx context.Context, id domain.UsagePointID, year int) (*domain.StatPrice, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []StatPrice
	if err := r.database.WithContext(ctx).Where(&StatPrice{UsagePointID: string(id), Year: year}).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	return &domain.StatPrice{
		Year:           row.Year,
		ConsumptionKWh: row.ConsumptionKWh,
		BaseCost:       row.BaseCost,
		TempoCost:      row.TempoCost,
		TempoKWh: map[domain.TempoColor]float64{
			domain.TempoBlue:  row.TempoBlueKWh,
			domain.TempoWhite: row.TempoWhiteKWh,
			domain.TempoRed:   row.TempoRedKWh,
		},
		UpdatedAt: row.UpdatedAt,
	}, nil
}
