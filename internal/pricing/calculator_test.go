package pricing

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/platform/logger"
)

func init() {
	logger.InitLogger()
}

type fakeStore struct {
	daily    []domain.Reading
	tempo    []domain.CalendarDay
	dailyErr error
	stored   []domain.StatPrice
	from, to time.Time
}

func (s *fakeStore) GetDaily(ctx context.Context, id domain.UsagePointID, measure domain.MeasureType, from, to time.Time) ([]domain.Reading, error) {
	s.from, s.to = from, to
	return s.daily, s.dailyErr
}

func (s *fakeStore) GetTempo(ctx context.Context, from, to time.Time) ([]domain.CalendarDay, error) {
	return s.tempo, nil
}

func (s *fakeStore) StoreStatPrice(ctx context.Context, id domain.UsagePointID, stat domain.StatPrice) error {
	s.stored = append(s.stored, stat)
	return nil
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputePricesEachTariff(t *testing.T) {
	paris, _ := time.LoadLocation("Europe/Paris")
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, paris) }

	store := &fakeStore{
		daily: []domain.Reading{
			{Date: day(1).UTC(), Value: 1000},
			{Date: day(2).UTC(), Value: 2000},
			{Date: day(3).UTC(), Value: 4000},
			{Date: day(4).UTC(), Value: 8000, Blacklist: 1},
		},
		tempo: []domain.CalendarDay{
			{Date: day(1).UTC(), Color: domain.TempoBlue},
			{Date: day(2).UTC(), Color: domain.TempoRed},
		},
	}

	up := domain.UsagePoint{
		ID:     "pdl1",
		Prices: domain.Prices{Base: 0.2, TempoBlue: 0.1, TempoWhite: 0.15, TempoRed: 0.5},
	}

	calculator := NewCalculator(store, paris).WithClock(func() time.Time { return day(10) })

	stat, err := calculator.Compute(context.Background(), up)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assert.Equal(t, stat.Year, 2024)
	assert.Equal(t, almostEqual(stat.ConsumptionKWh, 7), true)
	assert.Equal(t, almostEqual(stat.BaseCost, 1.4), true)
	assert.Equal(t, almostEqual(stat.TempoCost, 0.1+1.0), true)
	assert.Equal(t, almostEqual(stat.TempoKWh[domain.TempoRed], 2), true)
	assert.Equal(t, len(store.stored), 1)
	assert.Equal(t, store.from.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, paris)), true)
	assert.Equal(t, store.to.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, paris)), true)
}

func TestComputePropagatesStoreErrors(t *testing.T) {
	store := &fakeStore{dailyErr: errors.New("database is locked")}

	_, err := NewCalculator(store, time.UTC).Compute(context.Background(), domain.UsagePoint{ID: "pdl1"})

	assert.Equal(t, errors.Is(err, store.dailyErr), true)
	assert.Equal(t, len(store.stored), 0)
}
