package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

// Store reads the persisted daily consumption and tempo calendar and keeps the result
type Store interface {
	GetDaily(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, from, to time.Time) ([]domain.Reading, error)
	GetTempo(ctx context.Context, from, to time.Time) ([]domain.CalendarDay, error)
	StoreStatPrice(ctx context.Context, id domain.UsagePointID, stat domain.StatPrice) error
}

// Calculator prices the consumption of the current year under the BASE and TEMPO tariffs
type Calculator struct {
	store    Store
	location *time.Location
	now      func() time.Time
}

func NewCalculator(store Store, location *time.Location) *Calculator {
	return &Calculator{store: store, location: location, now: time.Now}
}

func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

func (c *Calculator) Compute(ctx context.Context, up domain.UsagePoint) (domain.StatPrice, error) {
	now := c.now().In(c.location)
	from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, c.location)
	to := from.AddDate(1, 0, 0)

	readings, err := c.store.GetDaily(ctx, up.ID, domain.Consumption, from, to)
	if err != nil {
		return domain.StatPrice{}, fmt.Errorf("load daily consumption: %w", err)
	}

	calendar, err := c.store.GetTempo(ctx, from, to)
	if err != nil {
		return domain.StatPrice{}, fmt.Errorf("load tempo calendar: %w", err)
	}

	colors := make(map[string]domain.TempoColor, len(calendar))
	for _, day := range calendar {
		colors[day.Date.In(c.location).Format("2006-01-02")] = day.Color
	}

	stat := domain.StatPrice{
		Year: now.Year(),
		TempoKWh: map[domain.TempoColor]float64{
			domain.TempoBlue:  0,
			domain.TempoWhite: 0,
			domain.TempoRed:   0,
		},
		UpdatedAt: now,
	}

	unpriced := 0
	for _, reading := range readings {
		if reading.Blacklist != 0 {
			continue
		}

		kwh := reading.Value / 1000
		stat.ConsumptionKWh += kwh
		stat.BaseCost += kwh * up.Prices.Base

		color, found := colors[reading.Date.In(c.location).Format("2006-01-02")]
		if !found {
			unpriced++
			continue
		}
		stat.TempoKWh[color] += kwh
		stat.TempoCost += kwh * tempoPrice(up.Prices, color)
	}

	if unpriced > 0 {
		logger.Log.WithFields(logrus.Fields{"usage_point_id": up.ID, "days": unpriced}).Debug("Days without tempo colour left out of the tempo cost")
	}

	if err := c.store.StoreStatPrice(ctx, up.ID, stat); err != nil {
		return domain.StatPrice{}, fmt.Errorf("store price statistics: %w", err)
	}

	return stat, nil
}

func tempoPrice(prices domain.Prices, color domain.TempoColor) float64 {
	switch color {
	case domain.TempoBlue:
		return prices.TempoBlue
	case domain.TempoWhite:
		return prices.TempoWhite
	case domain.TempoRed:
		return prices.TempoRed
	}
	return 0
}
