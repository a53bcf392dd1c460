package main

import (
	"context"
	"errors"
	"time"

	"github.com/myelectricaldata/importer/internal/config"
	"github.com/myelectricaldata/importer/internal/exporters"
	"github.com/myelectricaldata/importer/internal/jobs"
	"github.com/myelectricaldata/importer/internal/lock"
	"github.com/myelectricaldata/importer/internal/metering"
	"github.com/myelectricaldata/importer/internal/metering_repository"
	"github.com/myelectricaldata/importer/internal/mqtt"
	"github.com/myelectricaldata/importer/internal/platform/db"
	"github.com/myelectricaldata/importer/internal/platform/logger"
	"github.com/myelectricaldata/importer/internal/platform/queue"
	"github.com/myelectricaldata/importer/internal/platform/utils"
	"github.com/myelectricaldata/importer/internal/platform/utils/tls_utils"
	"github.com/myelectricaldata/importer/internal/pricing"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const mqttConnectTimeout = 10 * time.Second

// importer holds everything a command needs to run the job
type importer struct {
	cfg        *config.Config
	database   *gorm.DB
	repository *metering_repository.SqlMeteringRepository
	job        *jobs.Job
	closers    []func()
}

func (i *importer) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
}

// Ping reports whether the database still answers
func (i *importer) Ping(ctx context.Context) error {
	sqlDatabase, err := i.database.DB()
	if err != nil {
		return err
	}
	return sqlDatabase.PingContext(ctx)
}

// swapped in tests to observe the connection
var openDatabase = db.InitializeGormDatabaseConnection

// buildImporter releases whatever it already opened when a later step fails
func buildImporter(cfg *config.Config) (_ *importer, err error) {
	imp := &importer{cfg: cfg}
	defer func() {
		if err != nil {
			imp.Close()
		}
	}()

	database, err := openDatabase(cfg)
	if err != nil {
		logger.LogError("Unable to initialize database connection", err)
		return nil, err
	}
	imp.database = database
	imp.closers = append(imp.closers, func() {
		if sqlDatabase, err := database.DB(); err == nil {
			sqlDatabase.Close()
		}
	})

	repository := metering_repository.NewSqlMeteringRepository(cfg, database)
	if cfg.DatabaseImpl == "sqlite" {
		// postgres schemas are owned by migrate_db
		if err := repository.AutoMigrate(); err != nil {
			logger.LogError("Unable to migrate the sqlite database", err)
			return nil, err
		}
	}
	imp.repository = repository

	client, err := metering.NewClient(cfg, repository)
	if err != nil {
		logger.LogError("Unable to create the gateway client", err)
		return nil, err
	}

	runLock, err := buildRunLock(cfg, imp)
	if err != nil {
		logger.LogError("Unable to create the run lock", err)
		return nil, err
	}

	job, err := jobs.New(cfg, repository, client, runLock)
	if err != nil {
		logger.LogError("Unable to create the import job", err)
		return nil, err
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	reporter, err := jobs.NewRunReporter(cfg.RunReporterImpl, func() (jobs.MessageWriter, error) {
		writer, err := queue.StartProducer(buildProducerConfig(cfg))
		if err != nil {
			return nil, err
		}
		imp.closers = append(imp.closers, func() { writer.Close() })
		return writer, nil
	})
	if err != nil {
		logger.LogError("Unable to create the run reporter", err)
		return nil, err
	}

	imp.job = job.
		WithPricing(pricing.NewCalculator(repository, location)).
		WithExporters(buildExporters(cfg, repository, location, imp)).
		WithReporter(reporter)

	return imp, nil
}

func buildRunLock(cfg *config.Config, imp *importer) (jobs.RunLock, error) {
	switch cfg.RunLockImpl {
	case "process":
		return lock.NewProcessLock(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		imp.closers = append(imp.closers, func() { client.Close() })
		return lock.NewRedisLock(client, cfg.RunLockKey, cfg.RunLockTTL), nil
	default:
		return nil, errors.New("Invalid run lock impl requested: " + cfg.RunLockImpl)
	}
}

func buildProducerConfig(cfg *config.Config) *queue.ProducerConfig {
	return &queue.ProducerConfig{
		Brokers:    cfg.KafkaBrokers,
		Topic:      cfg.KafkaRunReportTopic,
		BatchSize:  cfg.KafkaBatchSize,
		BatchBytes: cfg.KafkaBatchBytes,
		Balancer:   "hash",
		SaslConfig: &queue.SaslConfig{
			SaslMechanism: cfg.KafkaSASLMechanism,
			SaslUsername:  cfg.KafkaUsername,
			SaslPassword:  cfg.KafkaPassword,
			KafkaCA:       cfg.KafkaCA,
		},
	}
}

// buildExporters leaves a sink nil when it is disabled or unreachable, the
// job then logs it as disabled instead of failing every run
func buildExporters(cfg *config.Config, reader exporters.Reader, location *time.Location, imp *importer) jobs.Exporters {
	snapshots := exporters.NewSnapshotter(reader, location)
	sinks := jobs.Exporters{}

	if cfg.MqttEnable || cfg.HomeAssistantEnable {
		client, err := connectToBroker(cfg)
		if err != nil {
			logger.LogError("MQTT export disabled for this process", err)
		} else {
			imp.closers = append(imp.closers, func() { client.Disconnect(250) })

			if cfg.MqttEnable {
				publisher := mqtt.NewPublisher(client, mqtt.NewTopicBuilder(cfg.MqttPrefix), cfg.MqttQoS, cfg.MqttRetain, cfg.MqttPublishTimeout)
				sinks.Mqtt = exporters.NewMqttExporter(snapshots, publisher)
			}

			if cfg.HomeAssistantEnable {
				publisher := mqtt.NewPublisher(client, mqtt.NewTopicBuilder(cfg.HomeAssistantDiscoveryPrefix), cfg.MqttQoS, true, cfg.MqttPublishTimeout)
				sinks.HomeAssistant = exporters.NewHomeAssistantExporter(snapshots, publisher)
			}
		}
	}

	if cfg.InfluxdbEnable {
		influx := exporters.NewInfluxExporter(snapshots, influxdb2.NewClient(cfg.InfluxdbUrl, cfg.InfluxdbToken), cfg.InfluxdbOrg, cfg.InfluxdbBucket)
		imp.closers = append(imp.closers, influx.Close)
		sinks.Influxdb = influx
	}

	if cfg.HomeAssistantWsEnable {
		sinks.HomeAssistantWs = exporters.NewHomeAssistantWsExporter(snapshots, cfg.HomeAssistantWsUrl, cfg.HomeAssistantWsToken, cfg.GatewayTimeout)
	}

	return sinks
}

func connectToBroker(cfg *config.Config) (MQTT.Client, error) {
	options := []mqtt.MqttClientOptionsFunc{
		mqtt.WithClientID(cfg.MqttClientID + "-" + utils.GetHostname()),
		mqtt.WithCredentials(cfg.MqttUsername, cfg.MqttPassword),
		mqtt.WithCleanSession(true),
		mqtt.WithConnectTimeout(mqttConnectTimeout),
		mqtt.WithAutoReconnect(true),
		mqtt.WithConnectionLostLogger(),
	}

	tlsConfigFuncs, err := buildBrokerTlsConfigFuncList(cfg)
	if err != nil {
		return nil, err
	}

	if len(tlsConfigFuncs) > 0 {
		tlsConfig, err := tls_utils.NewTlsConfig(tlsConfigFuncs...)
		if err != nil {
			return nil, err
		}
		options = append(options, mqtt.WithTlsConfig(tlsConfig))
	}

	logger.Log.WithFields(logrus.Fields{"broker": cfg.MqttBrokerAddress}).Debug("Building MQTT connection")

	return mqtt.CreateBrokerConnection(cfg.MqttBrokerAddress, options...)
}

func buildBrokerTlsConfigFuncList(cfg *config.Config) ([]tls_utils.TlsConfigFunc, error) {

	tlsConfigFuncs := []tls_utils.TlsConfigFunc{}

	if cfg.MqttClientCert != "" && cfg.MqttClientKey != "" {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithCert(cfg.MqttClientCert, cfg.MqttClientKey))
	} else if cfg.MqttClientCert != "" || cfg.MqttClientKey != "" {
		return nil, errors.New("MQTT client cert or key file specified without the other")
	}

	if cfg.MqttCACert != "" {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithCACerts(cfg.MqttCACert))
	}

	if cfg.MqttTlsSkipVerify {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithSkipVerify())
	}

	return tlsConfigFuncs, nil
}

// loadConfig reads and validates the configuration, exiting on error
func loadConfig() *config.Config {
	cfg := config.GetConfig()
	logger.Log.Info("Importer configuration:\n", cfg)

	if err := cfg.Validate(); err != nil {
		logger.LogFatalError("Invalid configuration", err)
	}

	return cfg
}
