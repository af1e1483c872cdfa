package command

import (
	"time"
)

// Request is the JSON payload of an inbound command.
// The verb is carried by the topic (envirocore/command/{verb}), not the
// payload, so a retained stray message on one verb can never execute
// another.
type Request struct {
	// RequestID correlates the reply with the request. Replies are
	// published to envirocore/reply/{request_id}.
	RequestID string `json:"request_id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Parameters contains verb-specific values.
	// Examples:
	//   {"sensor": "greenhouse", "kind": "temperature"} for get_reading
	//   {"max_age_ms": 10000} for set_max_cache_age
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Reply is the JSON payload published in response to a command.
// Topic: envirocore/reply/{request_id}
type Reply struct {
	// RequestID is the ID from the original request.
	RequestID string `json:"request_id"`

	// Timestamp is when the reply was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Success indicates whether the command succeeded.
	Success bool `json:"success"`

	// Data contains the reply payload (if successful).
	Data map[string]any `json:"data,omitempty"`

	// Error contains error details (if failed).
	Error *ReplyError `json:"error,omitempty"`
}

// ReplyError contains error details for failed commands.
type ReplyError struct {
	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeUnknownVerb       = "UNKNOWN_VERB"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeSensorNotFound    = "SENSOR_NOT_FOUND"
	ErrCodeUnsupportedKind   = "UNSUPPORTED_KIND"
	ErrCodeNoReading         = "NO_READING"
	ErrCodeBusy              = "BUSY"
	ErrCodeReloadFailed      = "RELOAD_FAILED"
	ErrCodeInternal          = "INTERNAL"
)

// Known command verbs. Each maps to one topic under envirocore/command/.
const (
	VerbGetReading     = "get_reading"
	VerbListSensors    = "list_sensors"
	VerbReconnect      = "reconnect"
	VerbGetMaxCacheAge = "get_max_cache_age"
	VerbSetMaxCacheAge = "set_max_cache_age"
	VerbReloadConfig   = "reload_config"
)

// newReply creates a successful reply for a request.
func newReply(requestID string, data map[string]any) Reply {
	return Reply{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      data,
	}
}

// newReplyError creates a failed reply with error details.
func newReplyError(requestID, code, message string) Reply {
	return Reply{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error: &ReplyError{
			Code:    code,
			Message: message,
		},
	}
}
