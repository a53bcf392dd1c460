package exporters

import (
	"context"
	"fmt"
	"time"

	"github.com/myelectricaldata/importer/internal/domain"
)

const snapshotDays = 7

// Reader is the read side of the metering repository
type Reader interface {
	GetContract(ctx context.Context, id domain.UsagePointID) (*domain.Contract, error)
	GetAddress(ctx context.Context, id domain.UsagePointID) (*domain.Address, error)
	GetDaily(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, from, to time.Time) ([]domain.Reading, error)
	SumDaily(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, before time.Time) (float64, error)
	GetDetail(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, from, to time.Time) ([]domain.Reading, error)
	GetMaxPower(ctx context.Context, id domain.UsagePointID, from, to time.Time) ([]domain.Reading, error)
	GetTempo(ctx context.Context, from, to time.Time) ([]domain.CalendarDay, error)
	GetStatPrice(ctx context.Context, id domain.UsagePointID, year int) (*domain.StatPrice, error)
}

// Snapshot is what every exporter pushes for one usage point
type Snapshot struct {
	Today    time.Time
	Contract *domain.Contract
	Address  *domain.Address
	Daily    map[domain.MeasureType][]domain.Reading
	Detail   map[domain.MeasureType][]domain.Reading
	// Wh total of the daily readings older than Daily
	DailyBefore map[domain.MeasureType]float64
	MaxPower    []domain.Reading
	Tempo       []domain.CalendarDay
	StatPrice   *domain.StatPrice
}

// Yesterday returns the daily reading of the day before Today, if stored
func (s *Snapshot) Yesterday(measure domain.MeasureType) (domain.Reading, bool) {
	return readingOn(s.Daily[measure], s.Today.AddDate(0, 0, -1))
}

func (s *Snapshot) TempoColor(day time.Time) (domain.TempoColor, bool) {
	for _, calendarDay := range s.Tempo {
		if sameDay(calendarDay.Date, day) {
			return calendarDay.Color, true
		}
	}
	return "", false
}

func readingOn(readings []domain.Reading, day time.Time) (domain.Reading, bool) {
	for _, reading := range readings {
		if sameDay(reading.Date, day) {
			return reading, true
		}
	}
	return domain.Reading{}, false
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// Snapshotter loads the last week of persisted data of a usage point
type Snapshotter struct {
	reader   Reader
	location *time.Location
	now      func() time.Time
}

func NewSnapshotter(reader Reader, location *time.Location) *Snapshotter {
	return &Snapshotter{reader: reader, location: location, now: time.Now}
}

func (s *Snapshotter) WithClock(now func() time.Time) *Snapshotter {
	s.now = now
	return s
}

func (s *Snapshotter) Load(ctx context.Context, up domain.UsagePoint) (*Snapshot, error) {
	now := s.now().In(s.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	from := today.AddDate(0, 0, -snapshotDays)
	to := today.AddDate(0, 0, 1)

	snapshot := &Snapshot{
		Today:       today,
		Daily:       map[domain.MeasureType][]domain.Reading{},
		DailyBefore: map[domain.MeasureType]float64{},
		Detail:      map[domain.MeasureType][]domain.Reading{},
	}

	var err error
	if snapshot.Contract, err = s.reader.GetContract(ctx, up.ID); err != nil {
		return nil, fmt.Errorf("load contract: %w", err)
	}
	if snapshot.Address, err = s.reader.GetAddress(ctx, up.ID); err != nil {
		return nil, fmt.Errorf("load address: %w", err)
	}

	for _, measure := range []domain.MeasureType{domain.Consumption, domain.Production} {
		if up.Enabled(measure, false) {
			if snapshot.Daily[measure], err = s.reader.GetDaily(ctx, up.ID, measure, from, to); err != nil {
				return nil, fmt.Errorf("load daily %s: %w", measure, err)
			}
			if snapshot.DailyBefore[measure], err = s.reader.SumDaily(ctx, up.ID, measure, from); err != nil {
				return nil, fmt.Errorf("sum daily %s: %w", measure, err)
			}
		}
		if up.Enabled(measure, true) {
			if snapshot.Detail[measure], err = s.reader.GetDetail(ctx, up.ID, measure, from, to); err != nil {
				return nil, fmt.Errorf("load detail %s: %w", measure, err)
			}
		}
	}

	if up.Consumption {
		if snapshot.MaxPower, err = s.reader.GetMaxPower(ctx, up.ID, from, to); err != nil {
			return nil, fmt.Errorf("load max power: %w", err)
		}
	}

	if snapshot.Tempo, err = s.reader.GetTempo(ctx, today, today.AddDate(0, 0, 2)); err != nil {
		return nil, fmt.Errorf("load tempo: %w", err)
	}

	if snapshot.StatPrice, err = s.reader.GetStatPrice(ctx, up.ID, today.Year()); err != nil {
		return nil, fmt.Errorf("load price statistics: %w", err)
	}

	return snapshot, nil
}
