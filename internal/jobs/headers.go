package jobs

import (
	"github.com/myelectricaldata/importer/internal/domain"
	"github.com/myelectricaldata/importer/internal/version"
)

const callService = "myelectricaldata"

// HeaderGenerate builds the gateway headers for the given usage point
func HeaderGenerate(up domain.UsagePoint) map[string]string {
	headers := globalHeaders()
	headers["Authorization"] = up.Token
	return headers
}

func globalHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"call-service": callService,
		"version":      version.Version,
	}
}
