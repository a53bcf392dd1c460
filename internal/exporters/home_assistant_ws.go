package exporters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	ErrHomeAssistantAuth   = errors.New("home assistant rejected the access token")
	ErrHomeAssistantImport = errors.New("home assistant rejected the statistics import")
)

const statisticsSource = "myelectricaldata"

type wsMessage struct {
	ID          int             `json:"id,omitempty"`
	Type        string          `json:"type"`
	AccessToken string          `json:"access_token,omitempty"`
	Success     *bool           `json:"success,omitempty"`
	Message     string          `json:"message,omitempty"`
	Error       *wsError        `json:"error,omitempty"`
	Metadata    *statisticsMeta `json:"metadata,omitempty"`
	Stats       []statisticRow  `json:"stats,omitempty"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type statisticsMeta struct {
	HasMean           bool   `json:"has_mean"`
	HasSum            bool   `json:"has_sum"`
	Name              string `json:"name"`
	Source            string `json:"source"`
	StatisticID       string `json:"statistic_id"`
	UnitOfMeasurement string `json:"unit_of_measurement"`
}

type statisticRow struct {
	Start string  `json:"start"`
	State float64 `json:"state"`
	Sum   float64 `json:"sum"`
}

// HomeAssistantWsExporter imports daily energy as long term statistics
// through the Home Assistant websocket API
type HomeAssistantWsExporter struct {
	snapshots *Snapshotter
	url       string
	token     string
	dialer    *websocket.Dialer
	timeout   time.Duration
}

func NewHomeAssistantWsExporter(snapshots *Snapshotter, url string, token string, timeout time.Duration) *HomeAssistantWsExporter {
	return &HomeAssistantWsExporter{
		snapshots: snapshots,
		url:       url,
		token:     token,
		dialer:    &websocket.Dialer{HandshakeTimeout: timeout},
		timeout:   timeout,
	}
}

func (e *HomeAssistantWsExporter) Export(ctx context.Context, up domain.UsagePoint) error {
	snapshot, err := e.snapshots.Load(ctx, up)
	if err != nil {
		return err
	}

	imports := statisticsImports(up, snapshot)
	if len(imports) == 0 {
		return nil
	}

	log := logger.Log.WithFields(logrus.Fields{"usage_point_id": up.ID, "url": e.url})

	conn, _, err := e.dialer.DialContext(ctx, e.url, nil)
	if err != nil {
		return fmt.Errorf("connect to home assistant: %w", err)
	}
	defer conn.Close()

	if e.timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(e.timeout))
	}

	if err := e.authenticate(conn); err != nil {
		return err
	}

	for i, request := range imports {
		request.ID = i + 1
		request.Type = "recorder/import_statistics"

		if err := conn.WriteJSON(request); err != nil {
			return fmt.Errorf("send statistics %s: %w", request.Metadata.StatisticID, err)
		}
		if err := waitResult(conn, request.ID); err != nil {
			metrics.homeAssistantImportFailures.Inc()
			return fmt.Errorf("import statistics %s: %w", request.Metadata.StatisticID, err)
		}

		metrics.homeAssistantStatsImported.Add(float64(len(request.Stats)))
		log.WithFields(logrus.Fields{"statistic_id": request.Metadata.StatisticID, "rows": len(request.Stats)}).Debug("Statistics imported into Home Assistant")
	}

	return nil
}

func (e *HomeAssistantWsExporter) authenticate(conn *websocket.Conn) error {
	var greeting wsMessage
	if err := conn.ReadJSON(&greeting); err != nil {
		return fmt.Errorf("read home assistant greeting: %w", err)
	}
	if greeting.Type != "auth_required" {
		return fmt.Errorf("unexpected home assistant greeting %q", greeting.Type)
	}

	if err := conn.WriteJSON(wsMessage{Type: "auth", AccessToken: e.token}); err != nil {
		return fmt.Errorf("send home assistant auth: %w", err)
	}

	var answer wsMessage
	if err := conn.ReadJSON(&answer); err != nil {
		return fmt.Errorf("read home assistant auth answer: %w", err)
	}
	if answer.Type != "auth_ok" {
		return fmt.Errorf("%w: %s", ErrHomeAssistantAuth, answer.Message)
	}
	return nil
}

// waitResult skips events until the result of the request id arrives
func waitResult(conn *websocket.Conn, id int) error {
	for {
		var message wsMessage
		if err := conn.ReadJSON(&message); err != nil {
			return err
		}
		if message.Type != "result" || message.ID != id {
			continue
		}
		if message.Success == nil || !*message.Success {
			if message.Error != nil {
				return fmt.Errorf("%w: %s - %s", ErrHomeAssistantImport, message.Error.Code, message.Error.Message)
			}
			return ErrHomeAssistantImport
		}
		return nil
	}
}

func statisticsImports(up domain.UsagePoint, snapshot *Snapshot) []wsMessage {
	var imports []wsMessage

	for _, measure := range []domain.MeasureType{domain.Consumption, domain.Production} {
		readings := snapshot.Daily[measure]
		if len(readings) == 0 {
			continue
		}

		stats := make([]statisticRow, 0, len(readings))
		// continue the series Home Assistant already holds for older days
		sum := snapshot.DailyBefore[measure] / 1000
		for _, reading := range readings {
			kwh := reading.Value / 1000
			sum += kwh
			stats = append(stats, statisticRow{
				Start: reading.Date.In(snapshot.Today.Location()).Format(time.RFC3339),
				State: kwh,
				Sum:   sum,
			})
		}

		imports = append(imports, wsMessage{
			Metadata: &statisticsMeta{
				HasSum:            true,
				Name:              fmt.Sprintf("MyElectricalData %s %s", up.ID, measure),
				Source:            statisticsSource,
				StatisticID:       fmt.Sprintf("%s:%s_%s", statisticsSource, up.ID, measure),
				UnitOfMeasurement: "kWh",
			},
			Stats: stats,
		})
	}

	return imports
}
