package apmagent

import "time"

// ErrorEvent is a captured exception or log message. Go has no runtime
// equivalent of frame-local-variable introspection, so Vars is populated
// only when the caller supplies it explicitly via WithVars — see DESIGN.md
// for why this is a language-level adaptation rather than a dropped
// feature.
type ErrorEvent struct {
	ExceptionType   string
	ExceptionModule string
	Message         string
	ParamMessage    string
	LoggerName      string
	Frames          []Frame
	Vars            map[string]interface{}
	Custom          map[string]interface{}
	TransactionID   SpanID
	Handled         bool
	Timestamp       time.Time
}

// CaptureErrorOption customizes an ErrorEvent built by CaptureError or
// CaptureMessage.
type CaptureErrorOption func(*ErrorEvent)

// WithVars attaches captured local variables to the error event, subject to
// truncation limits applied at serialization time.
func WithVars(vars map[string]interface{}) CaptureErrorOption {
	return func(e *ErrorEvent) { e.Vars = vars }
}

// WithLoggerName sets the logger name on a message/error event.
func WithLoggerName(name string) CaptureErrorOption {
	return func(e *ErrorEvent) { e.LoggerName = name }
}

// WithErrorContext attaches arbitrary structured context (e.g. request
// metadata) that the encoder writes as the serialized error record's
// "context" object.
func WithErrorContext(ctx map[string]interface{}) CaptureErrorOption {
	return func(e *ErrorEvent) { e.Custom = ctx }
}
