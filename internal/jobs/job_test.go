package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/myelectricaldata/importer/internal/config"
	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/lock"
	"github.com/myelectricaldata/importer/internal/metering"
	"github.com/myelectricaldata/importer/internal/version"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func fullyEnabled(id domain.UsagePointID) domain.UsagePoint {
	return domain.UsagePoint{
		ID:                id,
		Enable:            true,
		Token:             "abcd",
		Consumption:       true,
		ConsumptionDetail: true,
		Production:        true,
		ProductionDetail:  true,
	}
}

func testUsagePoints() []domain.UsagePoint {
	pdl2 := fullyEnabled("pdl2")
	pdl2.Enable = false
	pdl3 := domain.UsagePoint{ID: "pdl3"}
	return []domain.UsagePoint{fullyEnabled("pdl1"), pdl2, pdl3, fullyEnabled("pdl4")}
}

var _ = Describe("Job", func() {

	var (
		store     *fakeStore
		client    *fakeClient
		runLock   *lock.ProcessLock
		pricing   *countingCalculator
		exporters map[string]*countingExporter
		reporter  *recordingReporter
		job       *Job
		hook      *test.Hook
		restore   func()
		paris     *time.Location
	)

	BeforeEach(func() {
		var err error
		paris, err = time.LoadLocation("Europe/Paris")
		Expect(err).NotTo(HaveOccurred())

		hook, restore = captureLogs()

		store = newFakeStore(testUsagePoints()...)
		client = newFakeClient()
		runLock = lock.NewProcessLock()
		pricing = &countingCalculator{}
		reporter = &recordingReporter{}
		exporters = map[string]*countingExporter{
			"export_mqtt":              {},
			"export_influxdb":          {},
			"export_home_assistant":    {},
			"export_home_assistant_ws": {},
		}

		cfg := &config.Config{Timezone: "Europe/Paris"}
		job, err = New(cfg, store, client, runLock)
		Expect(err).NotTo(HaveOccurred())

		job.WithPricing(pricing).
			WithReporter(reporter).
			WithClock(func() time.Time { return time.Date(2024, 1, 8, 12, 0, 0, 0, paris) }).
			WithExporters(Exporters{
				Mqtt:            exporters["export_mqtt"],
				Influxdb:        exporters["export_influxdb"],
				HomeAssistant:   exporters["export_home_assistant"],
				HomeAssistantWs: exporters["export_home_assistant_ws"],
			})
	})

	AfterEach(func() {
		restore()
	})

	invocations := func(name string) int {
		if name == "stat_price" {
			return pricing.calls
		}
		if exporter, found := exporters[name]; found {
			return exporter.calls
		}
		return client.count(name)
	}

	Describe("Importing data", func() {

		DescribeTable("invokes every method the expected number of times",
			func(target domain.UsagePointID, expectedUsagePoints []string) {
				result, err := job.ImportData(context.Background(), target)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Status).To(BeTrue())
				Expect(result.UsagePoints).To(Equal(expectedUsagePoints))

				for _, name := range MethodNames(false) {
					Expect(invocations(name)).To(Equal(1), name)
					Expect(result.Invocations(name)).To(Equal(1), name)
				}
				for _, name := range MethodNames(true) {
					Expect(invocations(name)).To(Equal(len(expectedUsagePoints)), name)
					Expect(result.Invocations(name)).To(Equal(len(expectedUsagePoints)), name)
				}
			},
			Entry("all enabled usage points without target", domain.UsagePointID(""), []string{"pdl1", "pdl4"}),
			Entry("the targeted usage point", domain.UsagePointID("pdl1"), []string{"pdl1"}),
			Entry("a targeted usage point even when disabled", domain.UsagePointID("pdl2"), []string{"pdl2"}),
		)

		It("dispatches per usage point methods in a fixed order", func() {
			Expect(MethodNames(false)).To(Equal([]string{"get_tempo", "get_ecowatt"}))
			Expect(MethodNames(true)).To(Equal([]string{
				"get_account_status",
				"get_contract",
				"get_addresses",
				"get_consumption",
				"get_consumption_detail",
				"get_production",
				"get_production_detail",
				"get_consumption_max_power",
				"stat_price",
				"export_mqtt",
				"export_influxdb",
				"export_home_assistant",
				"export_home_assistant_ws",
			}))
		})

		It("passes each usage point explicitly to the max power method", func() {
			_, err := job.ImportData(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())

			Expect(client.usagePoints["get_consumption_max_power"]).To(Equal([]domain.UsagePointID{"pdl1", "pdl4"}))
			Expect(containsLogLine(hook, "[PDL4] RÉCUPÉRATION DE LA PUISSANCE MAXIMUM JOURNALIÈRE", logrus.InfoLevel)).To(BeTrue())
		})

		It("refuses to run while another run holds the lock", func() {
			Expect(runLock.Lock(context.Background())).To(Succeed())

			result, err := job.ImportData(context.Background(), "")

			Expect(errors.Is(err, ErrImportAlreadyRunning)).To(BeTrue())
			Expect(result.Status).To(BeFalse())
			Expect(client.calls).To(BeEmpty())
			Expect(pricing.calls).To(Equal(0))
			Expect(reporter.results).To(BeEmpty())
		})

		It("releases the lock after a run", func() {
			_, err := job.ImportData(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())

			locked, err := runLock.LockStatus(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(locked).To(BeFalse())
		})

		It("releases the lock when the target is unknown", func() {
			result, err := job.ImportData(context.Background(), "unknown")

			Expect(errors.Is(err, errUnknownUsagePoint)).To(BeTrue())
			Expect(result.Status).To(BeFalse())
			Expect(client.calls).To(BeEmpty())

			locked, _ := runLock.LockStatus(context.Background())
			Expect(locked).To(BeFalse())
		})

		It("isolates a panicking method", func() {
			client.panicOn = "get_contract"

			result, err := job.ImportData(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(BeTrue())

			Expect(result.Outcomes["get_contract"][OutcomeTransportFailure]).To(Equal(2))
			Expect(client.count("get_addresses")).To(Equal(2))
			Expect(containsLogLine(hook, "Erreur lors de la récupération des informations contractuelles", logrus.ErrorLevel)).To(BeTrue())

			locked, _ := runLock.LockStatus(context.Background())
			Expect(locked).To(BeFalse())
		})

		It("keeps running the other methods when a per-job method fails", func() {
			client.errs["get_tempo"] = errors.New("connection reset by peer")

			result, err := job.ImportData(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())

			Expect(client.count("get_ecowatt")).To(Equal(1))
			Expect(client.count("get_account_status")).To(Equal(2))
			Expect(result.Outcomes["get_tempo"][OutcomeTransportFailure]).To(Equal(1))
			Expect(containsLogLine(hook, "Erreur lors de la récupération des jours tempo", logrus.ErrorLevel)).To(BeTrue())
		})

		It("reports the completed run", func() {
			result, err := job.ImportData(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())

			Expect(reporter.results).To(HaveLen(1))
			Expect(reporter.results[0]).To(BeIdenticalTo(result))
			Expect(result.RunID).NotTo(BeEmpty())
			Expect(result.Outcomes["get_consumption"][OutcomeSuccess]).To(Equal(2))
		})

		It("skips disabled features without calling the gateway", func() {
			up := fullyEnabled("pdl5")
			up.Production = false
			up.ProductionDetail = false
			store.usagePoints = []domain.UsagePoint{up}

			result, err := job.ImportData(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())

			Expect(client.count("get_production")).To(Equal(0))
			Expect(client.count("get_production_detail")).To(Equal(0))
			Expect(result.Outcomes["get_production"][OutcomeDisabled]).To(Equal(1))
			Expect(countLogLines(hook, "[PDL5] RÉCUPÉRATION DE LA PRODUCTION JOURNALIÈRE")).To(Equal(1))
			Expect(containsLogLine(hook, " => Désactivé dans la configuration.", logrus.InfoLevel)).To(BeTrue())
		})

		It("reports disabled exporters", func() {
			job.WithExporters(Exporters{})

			result, err := job.ImportData(context.Background(), "pdl1")
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Outcomes["export_mqtt"][OutcomeDisabled]).To(Equal(1))
			Expect(result.Outcomes["export_home_assistant_ws"][OutcomeDisabled]).To(Equal(1))
		})

		It("logs a failing exporter and moves on", func() {
			exporters["export_mqtt"].err = errors.New("mqtt client is not connected")

			result, err := job.ImportData(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())

			Expect(exporters["export_influxdb"].calls).To(Equal(2))
			Expect(result.Outcomes["export_mqtt"][OutcomeTransportFailure]).To(Equal(2))
			Expect(store.errorLogs).To(BeEmpty())
		})
	})

	Describe("Fetching the account status in a run", func() {

		It("stores the formatted remote error for each enabled usage point", func() {
			client.errs["get_account_status"] = remoteError("500", "failure")

			_, err := job.ImportData(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())

			Expect(store.errorLogs).To(Equal([]errorLogCall{{"pdl1", "500 - failure"}, {"pdl4", "500 - failure"}}))
			Expect(containsLogLine(hook, "[PDL1] RÉCUPÉRATION DES INFORMATIONS DU COMPTE", logrus.InfoLevel)).To(BeTrue())
		})

		It("refreshes the last call without touching the error log on success", func() {
			client.statusPayload = map[string]interface{}{"call_number": 42, "ban": false}

			_, err := job.ImportData(context.Background(), "pdl1")
			Expect(err).NotTo(HaveOccurred())

			Expect(store.errorLogs).To(BeEmpty())
			Expect(store.lastCalls).To(HaveKey(domain.UsagePointID("pdl1")))
		})

		It("does not store transport failures", func() {
			client.errs["get_account_status"] = errors.New("boom")

			_, err := job.ImportData(context.Background(), "pdl1")
			Expect(err).NotTo(HaveOccurred())

			Expect(store.errorLogs).To(BeEmpty())
			Expect(store.lastCalls).To(BeEmpty())
		})
	})

	Describe("Fetching data for a usage point", func() {

		labels := map[string]string{
			"get_contract":              "Récupération des informations contractuelles",
			"get_addresses":             "Récupération des coordonnées postales",
			"get_consumption":           "Récupération de la consommation journalière",
			"get_consumption_detail":    "Récupération de la consommation détaillée",
			"get_production":            "Récupération de la production journalière",
			"get_production_detail":     "Récupération de la production détaillée",
			"get_consumption_max_power": "Récupération de la puissance maximum journalière",
		}

		DescribeTable("logs transport failures without storing them",
			func(name string) {
				client.errs[name] = errors.New("boom")
				label := labels[name]

				_, err := job.ImportData(context.Background(), "pdl1")
				Expect(err).NotTo(HaveOccurred())

				Expect(countLogLines(hook, "[PDL1] "+strings.ToUpper(label))).To(Equal(1))

				var failure *logrus.Entry
				for _, entry := range hook.AllEntries() {
					if entry.Level == logrus.ErrorLevel && entry.Message == "Erreur lors de la "+strings.ToLower(label) {
						failure = entry
					}
				}
				Expect(failure).NotTo(BeNil())
				Expect(failure.Data["error"]).To(MatchError("boom"))

				Expect(client.count(name)).To(Equal(1))
				Expect(store.errorLogs).To(BeEmpty())
			},
			Entry(nil, "get_contract"),
			Entry(nil, "get_addresses"),
			Entry(nil, "get_consumption"),
			Entry(nil, "get_consumption_detail"),
			Entry(nil, "get_production"),
			Entry(nil, "get_production_detail"),
			Entry(nil, "get_consumption_max_power"),
		)

		DescribeTable("ignores remote errors",
			func(name string) {
				client.errs[name] = remoteError("5xx", "proper error")

				result, err := job.ImportData(context.Background(), "pdl1")
				Expect(err).NotTo(HaveOccurred())

				Expect(result.Outcomes[name][OutcomeRemoteError]).To(Equal(1))
				Expect(store.errorLogs).To(BeEmpty())
				for _, entry := range hook.AllEntries() {
					Expect(entry.Level).NotTo(Equal(logrus.ErrorLevel))
				}
			},
			Entry(nil, "get_contract"),
			Entry(nil, "get_consumption"),
			Entry(nil, "get_production_detail"),
			Entry(nil, "get_consumption_max_power"),
		)

		It("sends the usage point token with the gateway headers", func() {
			_, err := job.ImportData(context.Background(), "pdl1")
			Expect(err).NotTo(HaveOccurred())

			Expect(client.headers["get_contract"]).To(Equal(map[string]string{
				"Authorization": "abcd",
				"Content-Type":  "application/json",
				"call-service":  "myelectricaldata",
				"version":       version.Version,
			}))
			Expect(client.headers["get_tempo"]).NotTo(HaveKey("Authorization"))
		})
	})

	Describe("Checking an account status on demand", func() {

		It("merges the last call with the status", func() {
			lastCall := time.Date(2024, 1, 1, 15, 30, 0, 0, paris)
			up := fullyEnabled("pdl1")
			up.LastCall = &lastCall
			store.usagePoints = []domain.UsagePoint{up}

			client.statusPayload = map[string]interface{}{
				"consent_expiration_date": "2099-01-01T00:00:00",
				"call_number":             42,
				"quota_limit":             42,
				"quota_reached":           42,
				"quota_reset_at":          "2099-01-01T00:00:00.000000",
				"ban":                     false,
			}

			status, err := job.AccountStatus(context.Background(), "pdl1")
			Expect(err).NotTo(HaveOccurred())

			Expect(status).To(Equal(map[string]interface{}{
				"consent_expiration_date": "2099-01-01T00:00:00",
				"call_number":             42,
				"quota_limit":             42,
				"quota_reached":           42,
				"quota_reset_at":          "2099-01-01T00:00:00.000000",
				"ban":                     false,
				"last_call":               "15:30",
				"error_log":               nil,
			}))
			Expect(client.count("get_account_status")).To(Equal(1))
			Expect(containsLogLine(hook, "[PDL1] CHECK DU STATUT DU COMPTE.", logrus.InfoLevel)).To(BeTrue())
		})

		It("returns the error body without last call", func() {
			client.errs["get_account_status"] = &remoteErrorWithBody

			status, err := job.AccountStatus(context.Background(), "pdl1")
			Expect(err).NotTo(HaveOccurred())

			Expect(status).To(Equal(map[string]interface{}{"error": true, "description": "failure", "last_call": nil, "error_log": "failure"}))
			Expect(store.errorLogs).To(Equal([]errorLogCall{{"pdl1", "failure"}}))
		})

		It("shows the account error stored by a previous run", func() {
			client.errs["get_account_status"] = remoteError("500", "failure")

			_, err := job.ImportData(context.Background(), "pdl1")
			Expect(err).NotTo(HaveOccurred())

			delete(client.errs, "get_account_status")
			client.statusPayload = map[string]interface{}{"call_number": 42}

			status, err := job.AccountStatus(context.Background(), "pdl1")
			Expect(err).NotTo(HaveOccurred())

			Expect(status["call_number"]).To(Equal(42))
			Expect(status["error_log"]).To(Equal("500 - failure"))
		})

		It("answers without the stored error when it cannot be read", func() {
			client.statusPayload = map[string]interface{}{"call_number": 42}
			store.readErr = errors.New("database is locked")

			status, err := job.AccountStatus(context.Background(), "pdl1")
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(HaveKeyWithValue("error_log", BeNil()))

			var failure *logrus.Entry
			for _, entry := range hook.AllEntries() {
				if entry.Level == logrus.ErrorLevel && entry.Message == "Unable to read the account error" {
					failure = entry
				}
			}
			Expect(failure).NotTo(BeNil())
			Expect(failure.Data["usage_point_id"]).To(Equal("pdl1"))
			Expect(failure.Data["error"]).To(MatchError("database is locked"))
		})

		It("returns transport failures", func() {
			client.errs["get_account_status"] = errors.New("boom")

			status, err := job.AccountStatus(context.Background(), "pdl1")
			Expect(err).To(MatchError("boom"))
			Expect(status).To(BeNil())
		})
	})

	Describe("Booting", func() {

		var importCalls int

		BeforeEach(func() {
			importCalls = 0
			job.importData = func(ctx context.Context, target domain.UsagePointID) (*RunResult, error) {
				importCalls++
				return &RunResult{Status: true}, nil
			}
		})

		It("runs the import once and logs nothing", func() {
			job.Boot(context.Background())

			Expect(importCalls).To(Equal(1))
			Expect(hook.AllEntries()).To(BeEmpty())
		})

		It("does nothing when the import is disabled", func() {
			job.importEnabled = false

			job.Boot(context.Background())

			Expect(importCalls).To(Equal(0))
			Expect(containsLogLine(hook, "=> Import job disable", logrus.WarnLevel)).To(BeTrue())
		})

		It("contains a crashing import", func() {
			job.importData = func(ctx context.Context, target domain.UsagePointID) (*RunResult, error) {
				panic("database vanished")
			}

			Expect(func() { job.Boot(context.Background()) }).NotTo(Panic())
			Expect(containsLogLine(hook, "Import job crashed", logrus.ErrorLevel)).To(BeTrue())
		})

		It("gives up waiting when the context is cancelled", func() {
			job.waitJobStart = time.Hour
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			job.Boot(ctx)

			Expect(importCalls).To(Equal(0))
		})
	})
})

var remoteErrorWithBody = metering.RemoteError{
	Description: "failure",
	Body:        map[string]interface{}{"error": true, "description": "failure"},
}
