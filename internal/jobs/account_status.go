package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/metering"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

// AccountStatus checks the account of a usage point on demand. The gateway
// answer, or its error body, is returned with the last successful call
// rendered as HH:MM and the last account error stored for the usage point.
func (j *Job) AccountStatus(ctx context.Context, id domain.UsagePointID) (map[string]interface{}, error) {
	log := logger.Log.WithFields(logrus.Fields{"usage_point_id": id})
	log.Info(fmt.Sprintf("[%s] CHECK DU STATUT DU COMPTE.", strings.ToUpper(id.String())))

	up, err := j.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	payload, err := j.client.Status(ctx, up, HeaderGenerate(up))

	var remoteErr *metering.RemoteError
	if errors.As(err, &remoteErr) {
		if logErr := j.store.SetErrorLog(ctx, up.ID, remoteErr.Error()); logErr != nil {
			logger.LogErrorWithUsagePoint("Unable to store the account error", logErr, up.ID.String())
		}
		status := remoteErrorPayload(remoteErr)
		status["error_log"] = j.storedErrorLog(ctx, up.ID)
		return status, nil
	}
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Erreur lors de la récupération du statut du compte")
		return nil, err
	}

	status := make(map[string]interface{}, len(payload)+2)
	for key, value := range payload {
		status[key] = value
	}
	status["last_call"] = nil
	if up.LastCall != nil {
		status["last_call"] = up.LastCall.In(j.location).Format("15:04")
	}
	status["error_log"] = j.storedErrorLog(ctx, up.ID)

	return status, nil
}

// storedErrorLog returns nil when no account error was ever stored
func (j *Job) storedErrorLog(ctx context.Context, id domain.UsagePointID) interface{} {
	message, err := j.store.GetErrorLog(ctx, id)
	if err != nil {
		logger.LogErrorWithUsagePoint("Unable to read the account error", err, id.String())
		return nil
	}
	if message == "" {
		return nil
	}
	return message
}

func remoteErrorPayload(remoteErr *metering.RemoteError) map[string]interface{} {
	status := map[string]interface{}{}
	for key, value := range remoteErr.Body {
		status[key] = value
	}
	if len(status) == 0 {
		status["error"] = true
		if remoteErr.StatusCode != "" {
			status["status_code"] = remoteErr.StatusCode
		}
		status["description"] = remoteErr.Description
	}
	status["last_call"] = nil
	return status
}
