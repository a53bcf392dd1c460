package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/myelectricaldata/importer/internal/api"
	"github.com/myelectricaldata/importer/internal/middlewares"
	"github.com/myelectricaldata/importer/internal/platform/logger"
	"github.com/myelectricaldata/importer/internal/platform/utils"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func startImportService(monitoringAddr string) {

	logger.InitLogger()
	defer logger.FlushLogger()

	logger.Log.Info("Starting MyElectricalData import service")

	cfg := loadConfig()
	if monitoringAddr == "" {
		monitoringAddr = cfg.MonitoringListenAddr
	}

	imp, err := buildImporter(cfg)
	if err != nil {
		logger.LogFatalError("Unable to build the import job", err)
	}
	defer imp.Close()

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.LogFatalError("Unable to load the timezone", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := cron.New(
		cron.WithLocation(location),
		cron.WithLogger(cron.PrintfLogger(logger.Log)),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger.Log))),
	)

	_, err = scheduler.AddFunc(cfg.ImportCron, func() {
		imp.job.Boot(ctx)
	})
	if err != nil {
		logger.LogFatalError("Invalid import schedule "+cfg.ImportCron, err)
	}

	scheduler.Start()
	logger.Log.WithFields(logrus.Fields{"schedule": cfg.ImportCron}).Info("Import job scheduled")

	// first run on start, Boot waits Wait_Job_Start before importing
	go imp.job.Boot(ctx)

	metricsMiddleware := &middlewares.MetricsMiddleware{}

	apiMux := mux.NewRouter()
	apiMux.Use(logger.AccessLoggerMiddleware)
	apiMux.Use(metricsMiddleware.RecordHTTPMetrics)

	monitoringServer := api.NewMonitoringServer(apiMux, cfg).
		WithReadinessCheck("database", imp.Ping)
	monitoringServer.Routes()

	monitoringSrv := utils.StartHTTPServer(monitoringAddr, "monitoring", apiMux)

	signalChan := make(chan os.Signal, 1)

	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	logger.Log.Info("Received signal to shutdown: ", sig)

	cancel()
	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HttpShutdownTimeout)
	defer shutdownCancel()

	utils.ShutdownHTTPServer(shutdownCtx, "monitoring", monitoringSrv)

	logger.Log.Info("MyElectricalData import service shutting down")
}
