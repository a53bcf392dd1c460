package domain

import "time"

type UsagePointID string

func (id UsagePointID) String() string {
	return string(id)
}

type MeasureType string

const (
	Consumption MeasureType = "consumption"
	Production  MeasureType = "production"
)

func (m MeasureType) String() string {
	return string(m)
}

type TempoColor string

const (
	TempoBlue  TempoColor = "BLUE"
	TempoWhite TempoColor = "WHITE"
	TempoRed   TempoColor = "RED"
)

type Prices struct {
	Base       float64
	TempoBlue  float64
	TempoWhite float64
	TempoRed   float64
}

// UsagePoint is a configured metering account merged with its persisted state
type UsagePoint struct {
	ID                UsagePointID
	Name              string
	Enable            bool
	Token             string
	Cache             bool
	Consumption       bool
	ConsumptionDetail bool
	Production        bool
	ProductionDetail  bool
	Prices            Prices
	LastCall          *time.Time
}

// Enabled reports whether the feature flag gating the given measure is set
func (up UsagePoint) Enabled(measure MeasureType, detail bool) bool {
	switch {
	case measure == Consumption && detail:
		return up.ConsumptionDetail
	case measure == Consumption:
		return up.Consumption
	case measure == Production && detail:
		return up.ProductionDetail
	case measure == Production:
		return up.Production
	}
	return false
}

type Reading struct {
	Date      time.Time
	Value     float64
	Interval  int
	Blacklist int
}

type CalendarDay struct {
	Date  time.Time
	Color TempoColor
}

type EcowattDay struct {
	Date    time.Time
	Value   int
	Message string
	Detail  string
}

type Contract struct {
	Segment                          string
	SubscribedPower                  string
	DistributionTariff               string
	OffpeakHours                     string
	ContractStatus                   string
	LastActivationDate               string
	LastDistributionTariffChangeDate string
}

type Address struct {
	Street     string
	Locality   string
	PostalCode string
	InseeCode  string
	City       string
	Country    string
}

// StatPrice is the yearly cost of the consumption under each supported tariff
type StatPrice struct {
	Year           int
	ConsumptionKWh float64
	BaseCost       float64
	TempoCost      float64
	TempoKWh       map[TempoColor]float64
	UpdatedAt      time.Time
}
