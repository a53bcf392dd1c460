package metering

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/myelectricaldata/importer/internal/domain"
)

type contractResponse struct {
	Customer struct {
		UsagePoints []struct {
			UsagePoint struct {
				Addresses struct {
					Street     string `json:"street"`
					Locality   string `json:"locality"`
					PostalCode string `json:"postal_code"`
					InseeCode  string `json:"insee_code"`
					City       string `json:"city"`
					Country    string `json:"country"`
				} `json:"usage_point_addresses"`
			} `json:"usage_point"`
			Contracts struct {
				Segment                          string `json:"segment"`
				SubscribedPower                  string `json:"subscribed_power"`
				DistributionTariff               string `json:"distribution_tariff"`
				OffpeakHours                     string `json:"offpeak_hours"`
				ContractStatus                   string `json:"contract_status"`
				LastActivationDate               string `json:"last_activation_date"`
				LastDistributionTariffChangeDate string `json:"last_distribution_tariff_change_date"`
			} `json:"contracts"`
		} `json:"usage_points"`
	} `json:"customer"`
}

type meterReadingResponse struct {
	MeterReading struct {
		IntervalReading []struct {
			Value          json.Number `json:"value"`
			Date           string      `json:"date"`
			IntervalLength string      `json:"interval_length"`
		} `json:"interval_reading"`
	} `json:"meter_reading"`
}

func convert(body map[string]interface{}, target interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, target)
}

// Status returns the account status payload
func (c *Client) Status(ctx context.Context, up domain.UsagePoint, headers map[string]string) (map[string]interface{}, error) {
	return c.get(ctx, "valid_access", usagePointPath(up, "valid_access", up.ID.String()), headers)
}

func (c *Client) Contract(ctx context.Context, up domain.UsagePoint, headers map[string]string) error {
	body, err := c.get(ctx, "contracts", usagePointPath(up, "contracts", up.ID.String()), headers)
	if err != nil {
		return err
	}

	var response contractResponse
	if err := convert(body, &response); err != nil {
		return fmt.Errorf("decode contract: %w", err)
	}
	if len(response.Customer.UsagePoints) == 0 {
		return fmt.Errorf("decode contract: no usage point in answer")
	}

	contracts := response.Customer.UsagePoints[0].Contracts
	return c.store.StoreContract(ctx, up.ID, domain.Contract{
		Segment:                          contracts.Segment,
		SubscribedPower:                  contracts.SubscribedPower,
		DistributionTariff:               contracts.DistributionTariff,
		OffpeakHours:                     contracts.OffpeakHours,
		ContractStatus:                   contracts.ContractStatus,
		LastActivationDate:               contracts.LastActivationDate,
		LastDistributionTariffChangeDate: contracts.LastDistributionTariffChangeDate,
	})
}

func (c *Client) Addresses(ctx context.Context, up domain.UsagePoint, headers map[string]string) error {
	body, err := c.get(ctx, "addresses", usagePointPath(up, "addresses", up.ID.String()), headers)
	if err != nil {
		return err
	}

	var response contractResponse
	if err := convert(body, &response); err != nil {
		return fmt.Errorf("decode addresses: %w", err)
	}
	if len(response.Customer.UsagePoints) == 0 {
		return fmt.Errorf("decode addresses: no usage point in answer")
	}

	address := response.Customer.UsagePoints[0].UsagePoint.Addresses
	return c.store.StoreAddress(ctx, up.ID, domain.Address{
		Street:     address.Street,
		Locality:   address.Locality,
		PostalCode: address.PostalCode,
		InseeCode:  address.InseeCode,
		City:       address.City,
		Country:    address.Country,
	})
}

func (c *Client) Daily(ctx context.Context, up domain.UsagePoint, headers map[string]string, measure domain.MeasureType) error {
	endpoint := "daily_" + measure.String()

	for _, window := range c.windows(c.dailyDays, dailyWindowDays) {
		readings, err := c.fetchReadings(ctx, endpoint, up, headers, window)
		if err != nil {
			return err
		}
		if err := c.store.StoreDaily(ctx, up.ID, measure, readings); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Detail(ctx context.Context, up domain.UsagePoint, headers map[string]string, measure domain.MeasureType) error {
	endpoint := measure.String() + "_load_curve"

	for _, window := range c.windows(c.detailDays, detailWindowDays) {
		readings, err := c.fetchReadings(ctx, endpoint, up, headers, window)
		if err != nil {
			return err
		}
		if err := c.store.StoreDetail(ctx, up.ID, measure, readings); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) MaxPower(ctx context.Context, up domain.UsagePoint, headers map[string]string) error {
	for _, window := range c.windows(c.dailyDays, dailyWindowDays) {
		readings, err := c.fetchReadings(ctx, "daily_consumption_max_power", up, headers, window)
		if err != nil {
			return err
		}
		if err := c.store.StoreMaxPower(ctx, up.ID, readings); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) fetchReadings(ctx context.Context, endpoint string, up domain.UsagePoint, headers map[string]string, window dateWindow) ([]domain.Reading, error) {
	path := usagePointPath(up, endpoint, up.ID.String(), "start", formatDate(window.start), "end", formatDate(window.end))

	body, err := c.get(ctx, endpoint, path, headers)
	if err != nil {
		return nil, err
	}

	var response meterReadingResponse
	if err := convert(body, &response); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}

	readings := make([]domain.Reading, 0, len(response.MeterReading.IntervalReading))
	for _, raw := range response.MeterReading.IntervalReading {
		if raw.Value == "" {
			continue
		}
		reading, err := c.parseReading(raw.Date, raw.Value.String(), raw.IntervalLength)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", endpoint, err)
		}
		readings = append(readings, reading)
	}

	return readings, nil
}

// parseReading localizes a reading date; load curve dates mark the start of
// the interval and are shifted to its end
func (c *Client) parseReading(date string, value string, intervalLength string) (domain.Reading, error) {
	layout := "2006-01-02 15:04:05"
	if len(date) == len("2006-01-02") {
		layout = "2006-01-02"
	}

	parsed, err := time.ParseInLocation(layout, date, c.location)
	if err != nil {
		return domain.Reading{}, err
	}

	parsedValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("invalid value %q: %w", value, err)
	}

	reading := domain.Reading{Date: parsed, Value: parsedValue}

	if intervalLength != "" {
		interval, err := parseIntervalLength(intervalLength)
		if err != nil {
			return domain.Reading{}, err
		}
		reading.Interval = interval
		reading.Date = parsed.Add(time.Duration(interval) * time.Minute)
	}

	return reading, nil
}

func parseIntervalLength(intervalLength string) (int, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(intervalLength, "PT"), "M")
	interval, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid interval length %q: %w", intervalLength, err)
	}
	return interval, nil
}
