package jobs

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/metering"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func init() {
	logger.InitLogger()
}

var errUnknownUsagePoint = errors.New("usage point not found")

type errorLogCall struct {
	id      domain.UsagePointID
	message string
}

type fakeStore struct {
	sync.Mutex
	usagePoints []domain.UsagePoint
	errorLogs   []errorLogCall
	lastCalls   map[domain.UsagePointID]time.Time
	readErr     error
}

func newFakeStore(usagePoints ...domain.UsagePoint) *fakeStore {
	return &fakeStore{usagePoints: usagePoints, lastCalls: map[domain.UsagePointID]time.Time{}}
}

func (s *fakeStore) Get(ctx context.Context, id domain.UsagePointID) (domain.UsagePoint, error) {
	for _, up := range s.usagePoints {
		if up.ID == id {
			return up, nil
		}
	}
	return domain.UsagePoint{}, errUnknownUsagePoint
}

func (s *fakeStore) GetAll(ctx context.Context) ([]domain.UsagePoint, error) {
	return s.usagePoints, nil
}

func (s *fakeStore) SetErrorLog(ctx context.Context, id domain.UsagePointID, message string) error {
	s.Lock()
	defer s.Unlock()
	s.errorLogs = append(s.errorLogs, errorLogCall{id: id, message: message})
	return nil
}

func (s *fakeStore) GetErrorLog(ctx context.Context, id domain.UsagePointID) (string, error) {
	s.Lock()
	defer s.Unlock()
	if s.readErr != nil {
		return "", s.readErr
	}
	for i := len(s.errorLogs) - 1; i >= 0; i-- {
		if s.errorLogs[i].id == id {
			return s.errorLogs[i].message, nil
		}
	}
	return "", nil
}

func (s *fakeStore) SetLastCall(ctx context.Context, id domain.UsagePointID, lastCall time.Time) error {
	s.Lock()
	defer s.Unlock()
	s.lastCalls[id] = lastCall
	return nil
}

// fakeClient counts calls per method name and fails the ones listed in errs
type fakeClient struct {
	sync.Mutex
	calls         map[string]int
	usagePoints   map[string][]domain.UsagePointID
	headers       map[string]map[string]string
	errs          map[string]error
	statusPayload map[string]interface{}
	panicOn       string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		calls:       map[string]int{},
		usagePoints: map[string][]domain.UsagePointID{},
		headers:     map[string]map[string]string{},
		errs:        map[string]error{},
	}
}

func (c *fakeClient) record(name string, up domain.UsagePoint, headers map[string]string) error {
	c.Lock()
	defer c.Unlock()
	c.calls[name]++
	c.usagePoints[name] = append(c.usagePoints[name], up.ID)
	c.headers[name] = headers
	if c.panicOn == name {
		panic("unexpected payload")
	}
	return c.errs[name]
}

func (c *fakeClient) Status(ctx context.Context, up domain.UsagePoint, headers map[string]string) (map[string]interface{}, error) {
	if err := c.record("get_account_status", up, headers); err != nil {
		return nil, err
	}
	return c.statusPayload, nil
}

func (c *fakeClient) Contract(ctx context.Context, up domain.UsagePoint, headers map[string]string) error {
	return c.record("get_contract", up, headers)
}

func (c *fakeClient) Addresses(ctx context.Context, up domain.UsagePoint, headers map[string]string) error {
	return c.record("get_addresses", up, headers)
}

func (c *fakeClient) Daily(ctx context.Context, up domain.UsagePoint, headers map[string]string, measure domain.MeasureType) error {
	return c.record("get_"+measure.String(), up, headers)
}

func (c *fakeClient) Detail(ctx context.Context, up domain.UsagePoint, headers map[string]string, measure domain.MeasureType) error {
	return c.record("get_"+measure.String()+"_detail", up, headers)
}

func (c *fakeClient) MaxPower(ctx context.Context, up domain.UsagePoint, headers map[string]string) error {
	return c.record("get_consumption_max_power", up, headers)
}

func (c *fakeClient) Tempo(ctx context.Context, headers map[string]string) error {
	return c.record("get_tempo", domain.UsagePoint{}, headers)
}

func (c *fakeClient) Ecowatt(ctx context.Context, headers map[string]string) error {
	return c.record("get_ecowatt", domain.UsagePoint{}, headers)
}

func (c *fakeClient) count(name string) int {
	c.Lock()
	defer c.Unlock()
	return c.calls[name]
}

type countingCalculator struct {
	calls int
}

func (c *countingCalculator) Compute(ctx context.Context, up domain.UsagePoint) (domain.StatPrice, error) {
	c.calls++
	return domain.StatPrice{}, nil
}

type countingExporter struct {
	calls int
	err   error
}

func (e *countingExporter) Export(ctx context.Context, up domain.UsagePoint) error {
	e.calls++
	return e.err
}

type recordingReporter struct {
	results []*RunResult
}

func (r *recordingReporter) Report(ctx context.Context, result *RunResult) error {
	r.results = append(r.results, result)
	return nil
}

func remoteError(statusCode string, description string) *metering.RemoteError {
	return &metering.RemoteError{StatusCode: statusCode, Description: description}
}

// captureLogs lowers the level of the global logger and records every entry
func captureLogs() (*test.Hook, func()) {
	previousLevel := logger.Log.GetLevel()
	previousOut := logger.Log.Out

	logger.Log.SetLevel(logrus.DebugLevel)
	logger.Log.SetOutput(io.Discard)
	hook := test.NewLocal(logger.Log)

	return hook, func() {
		logger.Log.ReplaceHooks(make(logrus.LevelHooks))
		logger.Log.SetLevel(previousLevel)
		logger.Log.SetOutput(previousOut)
	}
}

func containsLogLine(hook *test.Hook, message string, level logrus.Level) bool {
	for _, entry := range hook.AllEntries() {
		if entry.Message == message && entry.Level == level {
			return true
		}
	}
	return false
}

func countLogLines(hook *test.Hook, message string) int {
	count := 0
	for _, entry := range hook.AllEntries() {
		if entry.Message == message {
			count++
		}
	}
	return count
}
