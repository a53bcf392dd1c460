package metering

import (
	"fmt"
	"strings"
)

// RemoteError is a well-formed error answer from the gateway
type RemoteError struct {
	StatusCode  string
	Description string
	Body        map[string]interface{}
}

func (e *RemoteError) Error() string {
	if e.StatusCode == "" {
		return e.Description
	}
	return e.StatusCode + " - " + e.Description
}

func newRemoteError(httpStatus int, body map[string]interface{}, raw []byte) *RemoteError {
	remoteErr := &RemoteError{Body: body}

	if code, found := body["status_code"]; found && code != nil {
		remoteErr.StatusCode = fmt.Sprint(code)
	} else if httpStatus >= 300 {
		remoteErr.StatusCode = fmt.Sprint(httpStatus)
	}

	switch description := body["description"].(type) {
	case string:
		remoteErr.Description = description
	case map[string]interface{}:
		if detail, found := description["detail"]; found {
			remoteErr.Description = fmt.Sprint(detail)
		}
	}

	if remoteErr.Description == "" {
		if message, ok := body["error"].(string); ok {
			remoteErr.Description = message
		} else if body == nil {
			remoteErr.Description = strings.TrimSpace(string(raw))
		}
	}

	return remoteErr
}

// isErrorBody reports whether the gateway flagged the answer as an error
func isErrorBody(body map[string]interface{}) bool {
	flag, found := body["error"]
	if !found || flag == nil {
		return false
	}
	switch v := flag.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	}
	return true
}
