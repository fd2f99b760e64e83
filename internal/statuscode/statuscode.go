// Package statuscode classifies SwitchBot cloud status codes into recovery
// actions.
//
// A cloud response carries two codes: the HTTP status of the transport and
// the statusCode field of the JSON body. Both are classified independently.
package statuscode

import "fmt"

// Known SwitchBot cloud status codes.
const (
	Processing          = 100
	OK                  = 200
	CommandNotSupported = 151
	DeviceNotFound      = 152
	CommandUnsupported  = 160
	DeviceOffline       = 161
	HubOffline          = 171
	DeviceInternalError = 190
)

// BugReportURL is included in the log line for unrecognised codes.
const BugReportURL = "https://tinyurl.com/SwitchBotBug"

// Action is the recovery a caller takes for a status code.
type Action int

const (
	// ActionNone means success; nothing to do.
	ActionNone Action = iota

	// ActionLog means log an error and leave canonical state untouched.
	ActionLog

	// ActionAbort means the operation cannot succeed on this device or
	// firmware; log an error and do not retry.
	ActionAbort

	// ActionOffline means the device or its hub is unreachable; log an error
	// and move the device to its offline baseline.
	ActionOffline

	// ActionUnknown means the code is not recognised; log at info level with
	// a bug-report hint.
	ActionUnknown
)

// String returns the action name for logs and metrics labels.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionLog:
		return "log"
	case ActionAbort:
		return "abort"
	case ActionOffline:
		return "offline"
	case ActionUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Classification is the result of Classify.
type Classification struct {
	Code    int
	Action  Action
	Message string
}

// Success reports whether the code belongs to the 100/200 success family.
func Success(code int) bool {
	return code == OK || code == Processing
}

// Classify maps a status code to its recovery action.
func Classify(code int) Classification {
	switch code {
	case Processing, OK:
		return Classification{Code: code, Action: ActionNone, Message: "Request successful"}
	case CommandNotSupported:
		return Classification{Code: code, Action: ActionAbort, Message: "Command not supported by this deviceType"}
	case CommandUnsupported:
		return Classification{Code: code, Action: ActionAbort, Message: "Command is not supported"}
	case DeviceNotFound:
		return Classification{Code: code, Action: ActionLog, Message: "Device not found"}
	case DeviceOffline:
		return Classification{Code: code, Action: ActionOffline, Message: "Device is offline"}
	case HubOffline:
		return Classification{Code: code, Action: ActionOffline, Message: "Hub Device is offline"}
	case DeviceInternalError:
		return Classification{
			Code:    code,
			Action:  ActionLog,
			Message: "Device internal error due to device states not synchronized with server, or command format is invalid",
		}
	default:
		return Classification{
			Code:    code,
			Action:  ActionUnknown,
			Message: fmt.Sprintf("Unknown statusCode: %d, submit bugs here: %s", code, BugReportURL),
		}
	}
}

// Worst returns the classification that demands the strongest recovery, so a
// response whose transport and body codes disagree is handled once.
func Worst(codes ...int) Classification {
	worst := Classify(OK)
	for _, c := range codes {
		cl := Classify(c)
		if severity(cl.Action) > severity(worst.Action) {
			worst = cl
		}
	}
	return worst
}

func severity(a Action) int {
	switch a {
	case ActionOffline:
		return 4 //nolint:mnd // ordering only
	case ActionAbort:
		return 3 //nolint:mnd // ordering only
	case ActionLog:
		return 2 //nolint:mnd // ordering only
	case ActionUnknown:
		return 1
	default:
		return 0
	}
}
