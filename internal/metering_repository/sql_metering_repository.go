package metering_repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/myelectricaldata/importer/internal/config"
	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUsagePointNotFound = errors.New("usage point is not configured")

// SqlMeteringRepository merges the configured usage points with the state
// persisted in the database and stores everything fetched from the gateway
type SqlMeteringRepository struct {
	database     *gorm.DB
	usagePoints  map[string]config.UsagePointConfig
	queryTimeout time.Duration
}

func NewSqlMeteringRepository(cfg *config.Config, database *gorm.DB) *SqlMeteringRepository {
	return &SqlMeteringRepository{
		database:     database,
		usagePoints:  cfg.UsagePoints,
		queryTimeout: cfg.DatabaseQueryTimeout,
	}
}

// AutoMigrate creates the tables for databases not managed by migrate_db
func (r *SqlMeteringRepository) AutoMigrate() error {
	return r.database.AutoMigrate(allModels()...)
}

func (r *SqlMeteringRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

func (r *SqlMeteringRepository) Get(ctx context.Context, id domain.UsagePointID) (domain.UsagePoint, error) {

	callDurationTimer := prometheus.NewTimer(metrics.sqlLookupUsagePointsDuration)
	defer callDurationTimer.ObserveDuration()

	upConfig, found := r.usagePoints[string(id)]
	if !found {
		return domain.UsagePoint{}, ErrUsagePointNotFound
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var state UsagePointState
	result := r.database.WithContext(ctx).Where(&UsagePointState{UsagePointID: string(id)}).Limit(1).Find(&state)
	if result.Error != nil {
		return domain.UsagePoint{}, result.Error
	}

	return buildUsagePoint(id, upConfig, state.LastCall), nil
}

// GetAll returns every configured usage point, enabled or not, ordered by id
func (r *SqlMeteringRepository) GetAll(ctx context.Context) ([]domain.UsagePoint, error) {

	callDurationTimer := prometheus.NewTimer(metrics.sqlLookupUsagePointsDuration)
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var states []UsagePointState
	if err := r.database.WithContext(ctx).Find(&states).Error; err != nil {
		return nil, err
	}

	lastCalls := make(map[string]*time.Time, len(states))
	for _, state := range states {
		lastCalls[state.UsagePointID] = state.LastCall
	}

	ids := make([]string, 0, len(r.usagePoints))
	for id := range r.usagePoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	usagePoints := make([]domain.UsagePoint, 0, len(ids))
	for _, id := range ids {
		usagePoints = append(usagePoints, buildUsagePoint(domain.UsagePointID(id), r.usagePoints[id], lastCalls[id]))
	}

	return usagePoints, nil
}

func (r *SqlMeteringRepository) SetErrorLog(ctx context.Context, id domain.UsagePointID, message string) error {

	callDurationTimer := prometheus.NewTimer(metrics.sqlSetErrorLogDuration)
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	state := UsagePointState{UsagePointID: string(id), LastError: message}
	result := r.database.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "usage_point_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_error", "updated_at"}),
	}).Create(&state)

	if result.Error != nil {
		logger.Log.WithFields(logrus.Fields{"error": result.Error, "usage_point_id": id}).Error("Unable to record the error log")
		return result.Error
	}

	return nil
}

func (r *SqlMeteringRepository) GetErrorLog(ctx context.Context, id domain.UsagePointID) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var state UsagePointState
	result := r.database.WithContext(ctx).Where(&UsagePointState{UsagePointID: string(id)}).Limit(1).Find(&state)
	return state.LastError, result.Error
}

func (r *SqlMeteringRepository) SetLastCall(ctx context.Context, id domain.UsagePointID, lastCall time.Time) error {

	callDurationTimer := prometheus.NewTimer(metrics.sqlSetLastCallDuration)
	defer callDurationTimer.ObserveDuration()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	state := UsagePointState{UsagePointID: string(id), LastCall: &lastCall}
	result := r.database.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "usage_point_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_call", "updated_at"}),
	}).Create(&state)

	return result.Error
}

func buildUsagePoint(id domain.UsagePointID, upConfig config.UsagePointConfig, lastCall *time.Time) domain.UsagePoint {
	return domain.UsagePoint{
		ID:                id,
		Name:              upConfig.Name,
		Enable:            upConfig.Enable,
		Token:             upConfig.Token,
		Cache:             upConfig.Cache,
		Consumption:       upConfig.Consumption,
		ConsumptionDetail: upConfig.ConsumptionDetail,
		Production:        upConfig.Production,
		ProductionDetail:  upConfig.ProductionDetail,
		Prices: domain.Prices{
			Base:       upConfig.ConsumptionPriceBase,
			TempoBlue:  upConfig.TempoPriceBlue,
			TempoWhite: upConfig.TempoPriceWhite,
			TempoRed:   upConfig.TempoPriceRed,
		},
		LastCall: lastCall,
	}
}
