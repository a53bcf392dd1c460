package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

// runImport triggers one run now, without the start delay of the scheduled job
func runImport(ctx context.Context, usagePointID string) error {

	logger.InitLogger()
	defer logger.FlushLogger()

	cfg := loadConfig()

	imp, err := buildImporter(cfg)
	if err != nil {
		return err
	}
	defer imp.Close()

	result, err := imp.job.ImportData(ctx, domain.UsagePointID(usagePointID))
	if err != nil {
		logger.LogError("Import failed", err)
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"run_id":       result.RunID,
		"usage_points": result.UsagePoints,
		"duration":     result.FinishedAt.Sub(result.StartedAt).String(),
	}).Info("Import finished")

	return nil
}

func printAccountStatus(ctx context.Context, usagePointID string, out io.Writer) error {

	logger.InitLogger()
	defer logger.FlushLogger()

	cfg := loadConfig()

	imp, err := buildImporter(cfg)
	if err != nil {
		return err
	}
	defer imp.Close()

	status, err := imp.job.AccountStatus(ctx, domain.UsagePointID(usagePointID))
	if err != nil {
		logger.LogError("Unable to query the account status", err)
		return err
	}

	encoded, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(encoded))
	return err
}
