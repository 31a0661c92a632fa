package channel

import (
	"errors"

	"github.com/aws/smithy-go"

	"github.com/afikmenashe/alert-fanout/internal/failure"
)

// Error codes returned by SNS that map to non-default kinds.
var (
	throttledCodes = map[string]bool{
		"Throttled":                true,
		"ThrottledException":       true,
		"Throttling":               true,
		"ThrottlingException":      true,
		"TooManyRequestsException": true,
		"KMSThrottling":            true,
	}
	invalidAddressCodes = map[string]bool{
		"InvalidParameter":      true,
		"InvalidParameterValue": true,
	}
)

// classify wraps a transport error in a *failure.Error. Anything that is not
// recognized as throttling or a rejected address is TransportUnavailable.
func classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case throttledCodes[code]:
			return failure.New(failure.Throttled, op, err)
		case invalidAddressCodes[code]:
			return failure.New(failure.InvalidAddress, op, err)
		}
	}
	return failure.New(failure.TransportUnavailable, op, err)
}
