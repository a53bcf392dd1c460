package metering

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/myelectricaldata/importer/internal/domain"
)

const (
	tempoHistoryDays  = 365
	tempoForecastDays = 2
	ecowattRangeDays  = 3
)

type ecowattResponse struct {
	Value   int                    `json:"value"`
	Message string                 `json:"message"`
	Detail  map[string]interface{} `json:"detail"`
}

// calendar returns the cached answer for path when still fresh
func (c *Client) calendar(ctx context.Context, endpoint string, path string, headers map[string]string) (map[string]interface{}, error) {
	if body, found := c.calendarCache.Get(path); found {
		metrics.calendarCacheHits.Inc()
		return body, nil
	}

	body, err := c.get(ctx, endpoint, path, headers)
	if err != nil {
		return nil, err
	}

	c.calendarCache.Add(path, body)
	return body, nil
}

func (c *Client) Tempo(ctx context.Context, headers map[string]string) error {
	today := c.today()
	start := today.AddDate(0, 0, -tempoHistoryDays)
	end := today.AddDate(0, 0, tempoForecastDays)

	body, err := c.calendar(ctx, "rte_tempo", "/rte/tempo/"+formatDate(start)+"/"+formatDate(end), headers)
	if err != nil {
		return err
	}

	days := make([]domain.CalendarDay, 0, len(body))
	for date, color := range body {
		day, err := time.ParseInLocation("2006-01-02", date, c.location)
		if err != nil {
			return fmt.Errorf("decode tempo: %w", err)
		}
		colorName, ok := color.(string)
		if !ok {
			continue
		}
		colorName = strings.ToUpper(colorName)
		if colorName != string(domain.TempoBlue) && colorName != string(domain.TempoWhite) && colorName != string(domain.TempoRed) {
			continue
		}
		days = append(days, domain.CalendarDay{Date: day, Color: domain.TempoColor(colorName)})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	return c.store.StoreTempo(ctx, days)
}

func (c *Client) Ecowatt(ctx context.Context, headers map[string]string) error {
	today := c.today()
	start := today.AddDate(0, 0, -ecowattRangeDays)
	end := today.AddDate(0, 0, ecowattRangeDays)

	body, err := c.calendar(ctx, "rte_ecowatt", "/rte/ecowatt/"+formatDate(start)+"/"+formatDate(end), headers)
	if err != nil {
		return err
	}

	days := make([]domain.EcowattDay, 0, len(body))
	for date, raw := range body {
		day, err := time.ParseInLocation("2006-01-02", date, c.location)
		if err != nil {
			return fmt.Errorf("decode ecowatt: %w", err)
		}

		var signal ecowattResponse
		encoded, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("decode ecowatt: %w", err)
		}
		if err := json.Unmarshal(encoded, &signal); err != nil {
			return fmt.Errorf("decode ecowatt: %w", err)
		}

		detail := ""
		if len(signal.Detail) > 0 {
			encodedDetail, err := json.Marshal(signal.Detail)
			if err != nil {
				return fmt.Errorf("decode ecowatt: %w", err)
			}
			detail = string(encodedDetail)
		}

		days = append(days, domain.EcowattDay{Date: day, Value: signal.Value, Message: signal.Message, Detail: detail})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	return c.store.StoreEcowatt(ctx, days)
}
