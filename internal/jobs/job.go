package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/myelectricaldata/importer/internal/config"
	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/lock"
	"github.com/myelectricaldata/importer/internal/metering"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var ErrImportAlreadyRunning = errors.New("an import is already running")

// Job runs the import of every usage point. It keeps no per-run state, the
// same instance is triggered for every run.
type Job struct {
	store     Store
	client    MeteringClient
	runLock   RunLock
	pricing   PriceCalculator
	exporters Exporters
	reporter  RunReporter

	location      *time.Location
	waitJobStart  time.Duration
	importEnabled bool
	now           func() time.Time

	// replaced in tests to observe Boot
	importData func(ctx context.Context, target domain.UsagePointID) (*RunResult, error)
}

func New(cfg *config.Config, store Store, client MeteringClient, runLock RunLock) (*Job, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	j := &Job{
		store:         store,
		client:        client,
		runLock:       runLock,
		reporter:      &FakeRunReporter{},
		location:      location,
		waitJobStart:  cfg.WaitJobStart,
		importEnabled: cfg.ImportEnabled(),
		now:           time.Now,
	}
	j.importData = j.ImportData

	return j, nil
}

func (j *Job) WithPricing(pricing PriceCalculator) *Job {
	j.pricing = pricing
	return j
}

func (j *Job) WithExporters(exporters Exporters) *Job {
	j.exporters = exporters
	return j
}

func (j *Job) WithReporter(reporter RunReporter) *Job {
	j.reporter = reporter
	return j
}

func (j *Job) WithClock(now func() time.Time) *Job {
	j.now = now
	return j
}

// Boot starts a full import after the configured delay. Nothing raised by
// the import escapes.
func (j *Job) Boot(ctx context.Context) {
	if !j.importEnabled {
		logger.Log.Warn("=> Import job disable")
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(j.waitJobStart):
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithFields(logrus.Fields{"panic": r}).Error("Import job crashed")
			metrics.runCounter.WithLabelValues("crashed").Inc()
		}
	}()

	if _, err := j.importData(ctx, ""); err != nil && !errors.Is(err, ErrImportAlreadyRunning) {
		logger.LogError("Import job failed", err)
	}
}

// ImportData runs every per-job method once, then every per usage point
// method for each usage point of the run. An empty target selects all the
// enabled usage points, otherwise only the target is processed whatever its
// enable flag.
func (j *Job) ImportData(ctx context.Context, target domain.UsagePointID) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		Target:    target.String(),
		StartedAt: j.now(),
		Outcomes:  map[string]map[Outcome]int{},
	}

	log := logger.Log.WithFields(logrus.Fields{"run_id": result.RunID})

	err := j.withRunLock(ctx, func() error {
		usagePoints, err := j.workingSet(ctx, target)
		if err != nil {
			return err
		}

		log.Info("DÉMARRAGE DU JOB D'IMPORTATION")
		runDurationTimer := prometheus.NewTimer(metrics.runDuration)
		defer runDurationTimer.ObserveDuration()

		for _, m := range dispatchTable {
			if m.scope == perJob {
				j.invoke(ctx, log, m, nil, result)
			}
		}

		for _, up := range usagePoints {
			result.UsagePoints = append(result.UsagePoints, up.ID.String())
			for _, m := range dispatchTable {
				if m.scope == perUsagePoint {
					j.invoke(ctx, log, m, &up, result)
				}
			}
		}

		result.Status = true
		return nil
	})

	result.FinishedAt = j.now()

	if errors.Is(err, ErrImportAlreadyRunning) {
		metrics.lockContentionCount.Inc()
		log.Warn("Un import est déjà en cours, import ignoré")
		return result, err
	}
	if err != nil {
		metrics.runCounter.WithLabelValues("failed").Inc()
		return result, err
	}

	metrics.runCounter.WithLabelValues("completed").Inc()
	log.WithFields(logrus.Fields{"usage_points": len(result.UsagePoints)}).Info("FIN DU JOB D'IMPORTATION")

	if reportErr := j.reporter.Report(ctx, result); reportErr != nil {
		metrics.reportFailures.Inc()
		log.WithFields(logrus.Fields{"error": reportErr}).Error("Unable to report the import run")
	}

	return result, nil
}

// withRunLock refuses to run fn when another run holds the lock and
// releases the lock on every exit path
func (j *Job) withRunLock(ctx context.Context, fn func() error) error {
	locked, err := j.runLock.LockStatus(ctx)
	if err != nil {
		return fmt.Errorf("read run lock: %w", err)
	}
	if locked {
		return ErrImportAlreadyRunning
	}

	if err := j.runLock.Lock(ctx); err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return ErrImportAlreadyRunning
		}
		return fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := j.runLock.Unlock(context.WithoutCancel(ctx)); err != nil {
			logger.LogError("Unable to release the run lock", err)
		}
	}()

	return fn()
}

func (j *Job) workingSet(ctx context.Context, target domain.UsagePointID) ([]domain.UsagePoint, error) {
	if target != "" {
		up, err := j.store.Get(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("load usage point %s: %w", target, err)
		}
		return []domain.UsagePoint{up}, nil
	}

	all, err := j.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load usage points: %w", err)
	}

	enabled := make([]domain.UsagePoint, 0, len(all))
	for _, up := range all {
		if up.Enable {
			enabled = append(enabled, up)
		}
	}
	return enabled, nil
}

// invoke runs one method and records its outcome, a failure never leaves it
func (j *Job) invoke(ctx context.Context, log *logrus.Entry, m method, up *domain.UsagePoint, result *RunResult) {
	log = log.WithFields(logrus.Fields{"method": m.name})

	var account domain.UsagePoint
	if up != nil {
		account = *up
		log = log.WithFields(logrus.Fields{"usage_point_id": account.ID})
		log.Info(strings.ToUpper(fmt.Sprintf("[%s] %s", account.ID, m.label)))
	} else {
		log.Info(strings.ToUpper(m.label))
	}

	methodDurationTimer := prometheus.NewTimer(metrics.methodDuration.WithLabelValues(m.name))
	err := runSafely(ctx, j, m, account)
	methodDurationTimer.ObserveDuration()

	outcome := classify(err)
	switch outcome {
	case OutcomeDisabled:
		log.Info(" => Désactivé dans la configuration.")
	case OutcomeRemoteError:
		var remoteErr *metering.RemoteError
		errors.As(err, &remoteErr)
		log.WithFields(logrus.Fields{"status_code": remoteErr.StatusCode, "description": remoteErr.Description}).Debug("Le service a retourné une erreur")
	case OutcomeTransportFailure:
		log.WithFields(logrus.Fields{"error": err}).Error("Erreur lors de la " + strings.ToLower(m.label))
	}

	metrics.methodOutcomes.WithLabelValues(m.name, string(outcome)).Inc()
	result.record(m.name, outcome)
}

func runSafely(ctx context.Context, j *Job, m method, up domain.UsagePoint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.run(j, ctx, up)
}
