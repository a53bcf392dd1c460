package metering_repository

import (
	"time"
)

type UsagePointState struct {
	UsagePointID string `gorm:"primaryKey"`
	LastCall     *time.Time
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Contract struct {
	UsagePointID                     string `gorm:"primaryKey"`
	Segment                          string
	SubscribedPower                  string
	DistributionTariff               string
	OffpeakHours                     string
	ContractStatus                   string
	LastActivationDate               string
	LastDistributionTariffChangeDate string
	UpdatedAt                        time.Time
}

type Address struct {
	UsagePointID string `gorm:"primaryKey"`
	Street       string
	Locality     string
	PostalCode   string
	InseeCode    string
	City         string
	Country      string
	UpdatedAt    time.Time
}

type Daily struct {
	ID           uint      `gorm:"primaryKey"`
	UsagePointID string    `gorm:"uniqueIndex:idx_daily_point_measure_date"`
	MeasureType  string    `gorm:"uniqueIndex:idx_daily_point_measure_date"`
	Date         time.Time `gorm:"uniqueIndex:idx_daily_point_measure_date"`
	Value        float64
	Blacklist    int
}

type Detail struct {
	ID           uint      `gorm:"primaryKey"`
	UsagePointID string    `gorm:"uniqueIndex:idx_detail_point_measure_date"`
	MeasureType  string    `gorm:"uniqueIndex:idx_detail_point_measure_date"`
	Date         time.Time `gorm:"uniqueIndex:idx_detail_point_measure_date"`
	Value        float64
	Interval     int
	Blacklist    int
}

type MaxPower struct {
	ID           uint      `gorm:"primaryKey"`
	UsagePointID string    `gorm:"uniqueIndex:idx_max_power_point_date"`
	Date         time.Time `gorm:"uniqueIndex:idx_max_power_point_date"`
	Value        float64
	EventDate    *time.Time
}

type Tempo struct {
	Date  time.Time `gorm:"primaryKey"`
	Color string
}

type Ecowatt struct {
	Date    time.Time `gorm:"primaryKey"`
	Value   int
	Message string
	Detail  string
}

type StatPrice struct {
	UsagePointID   string `gorm:"primaryKey"`
	Year           int    `gorm:"primaryKey;autoIncrement:false"`
	ConsumptionKWh float64
	BaseCost       float64
	TempoCost      float64
	TempoBlueKWh   float64
	TempoWhiteKWh  float64
	TempoRedKWh    float64
	UpdatedAt      time.Time
}

func allModels() []interface{} {
	return []interface{}{
		&UsagePointState{},
		&Contract{},
		&Address{},
		&Daily{},
		&Detail{},
		&MaxPower{},
		&Tempo{},
		&Ecowatt{},
		&StatPrice{},
	}
}
