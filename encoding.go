package apmagent

import (
	"fmt"
	"time"
)

// KeywordMaxLength is the maximum number of code units a keyword field
// (transaction and span names and types, results, exception types) retains
// before truncation.
const KeywordMaxLength = 1024

// truncationMarker replaces the final code unit of a truncated keyword so
// that the truncated string can never compare equal to a shorter original
// that happened to share a prefix.
const truncationMarker = '…'

// truncateKeyword enforces KeywordMaxLength on s, operating on runes (code
// units) rather than bytes so multi-byte UTF-8 sequences are not split.
func truncateKeyword(s string) string {
	runes := []rune(s)
	if len(runes) <= KeywordMaxLength {
		return s
	}
	runes = runes[:KeywordMaxLength-1]
	runes = append(runes, truncationMarker)
	return string(runes)
}

// truncateVars applies localVarMaxLength / localVarListMaxLength limits to
// a captured-variables map. Applied when encodeError builds the record
// (which Client.captureError does before queueing the event), not when the
// variables are attached with WithVars.
func truncateVars(vars map[string]interface{}, maxLen, maxListLen int) map[string]interface{} {
	if vars == nil {
		return nil
	}
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		out[k] = truncateVarValue(v, maxLen, maxListLen)
	}
	return out
}

func truncateVarValue(v interface{}, maxLen, maxListLen int) interface{} {
	switch val := v.(type) {
	case string:
		if maxLen > 0 && len(val) > maxLen {
			return val[:maxLen] + "…"
		}
		return val
	case []interface{}:
		if maxListLen > 0 && len(val) > maxListLen {
			return val[:maxListLen]
		}
		return val
	default:
		return v
	}
}

// metadataRecord is the static record that precedes every event in a batch,
// identifying the reporting service and the agent itself.
type metadataRecord struct {
	Service struct {
		Name        string `json:"name"`
		Version     string `json:"version,omitempty"`
		Environment string `json:"environment,omitempty"`
		Agent       struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"agent"`
	} `json:"service"`
}

// agentName/agentVersion identify this module in the User-Agent header and
// the metadata record.
const (
	agentName    = "apmagent-go"
	agentVersion = "0.1.0"
)

func newMetadataRecord(serviceName, environment string) metadataRecord {
	var m metadataRecord
	m.Service.Name = serviceName
	m.Service.Environment = environment
	m.Service.Agent.Name = agentName
	m.Service.Agent.Version = agentVersion
	return m
}

// encodedTransaction is the canonical textual form of a Transaction,
// excluding its child spans: those are encoded and queued as independent
// `span` events that reference TransactionID instead of nesting inline.
type encodedTransaction struct {
	ID        string                 `json:"id"`
	TraceID   string                 `json:"trace_id"`
	ParentID  string                 `json:"parent_id,omitempty"`
	Name      string                 `json:"name"`
	Type      string                 `json:"type"`
	Duration  float64                `json:"duration"`
	Result    string                 `json:"result,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Sampled   bool                   `json:"sampled"`
	Context   map[string]interface{} `json:"context,omitempty"`
	SpanCount *spanCount             `json:"span_count,omitempty"`
}

type spanCount struct {
	Started int `json:"started"`
	Dropped int `json:"dropped"`
}

func encodeTransaction(t *Transaction) encodedTransaction {
	e := encodedTransaction{
		ID:        t.ID.String(),
		TraceID:   t.TraceID.String(),
		Name:      truncateKeyword(t.Name),
		Type:      truncateKeyword(t.Type),
		Duration:  t.Duration.Seconds() * 1000,
		Result:    truncateKeyword(t.Result),
		Timestamp: t.Timestamp.UTC().Format(time.RFC3339Nano),
		Sampled:   t.Sampled,
	}
	if !t.ParentID.IsZero() {
		e.ParentID = t.ParentID.String()
	}
	if t.Sampled {
		e.Context = t.Context
	}
	if t.spanCounter > 0 {
		e.SpanCount = &spanCount{Started: t.spanCounter - t.droppedSpans, Dropped: t.droppedSpans}
	}
	return e
}

// encodedSpan is the canonical textual form of a Span.
type encodedSpan struct {
	ID            int                    `json:"id"`
	TransactionID string                 `json:"transaction_id"`
	TraceID       string                 `json:"trace_id"`
	Parent        *int                   `json:"parent,omitempty"`
	Name          string                 `json:"name"`
	Type          string                 `json:"type"`
	Start         float64                `json:"start"`
	Duration      float64                `json:"duration"`
	Context       map[string]interface{} `json:"context,omitempty"`
	Stacktrace    []Frame                `json:"stacktrace,omitempty"`
}

func encodeSpan(t *Transaction, s *Span) encodedSpan {
	name := s.Name
	if s.Count > 0 {
		name = fmt.Sprintf("(%dx) %s", s.Count, s.Name)
	}
	return encodedSpan{
		ID:            s.Index,
		TransactionID: t.ID.String(),
		TraceID:       t.TraceID.String(),
		Parent:        s.Parent,
		Name:          truncateKeyword(name),
		Type:          truncateKeyword(s.Type),
		Start:         s.Start.Seconds() * 1000,
		Duration:      s.Duration.Seconds() * 1000,
		Context:       s.Context,
		Stacktrace:    s.Frames,
	}
}

// encodedError is the canonical textual form of an ErrorEvent.
type encodedError struct {
	Timestamp     string                 `json:"timestamp"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	Logger        string                 `json:"logger,omitempty"`
	Exception     *encodedException      `json:"exception,omitempty"`
	Log           *encodedLog            `json:"log,omitempty"`
	Context       map[string]interface{} `json:"context,omitempty"`
}

type encodedException struct {
	Type       string  `json:"type,omitempty"`
	Module     string  `json:"module,omitempty"`
	Message    string  `json:"message"`
	Handled    bool    `json:"handled"`
	Stacktrace []Frame `json:"stacktrace,omitempty"`
}

type encodedLog struct {
	Message      string  `json:"message"`
	ParamMessage string  `json:"param_message,omitempty"`
	LoggerName   string  `json:"logger_name,omitempty"`
	Stacktrace   []Frame `json:"stacktrace,omitempty"`
}

func encodeError(e *ErrorEvent, mode collectLocalVariablesMode, localVarMaxLen, localVarListMaxLen int) encodedError {
	out := encodedError{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Logger:    e.LoggerName,
		Context:   e.Custom,
	}
	if !e.TransactionID.IsZero() {
		out.TransactionID = e.TransactionID.String()
	}
	// e.Vars holds locals the caller captured at the point of the error,
	// which Go has no way to recover automatically; attach them to the
	// innermost frame, the one nearest to where the error actually occurred,
	// but only when collection is enabled for errors.
	collectForErrors := mode == collectErrors || mode == collectAll
	if collectForErrors && len(e.Frames) > 0 && e.Vars != nil && e.Frames[len(e.Frames)-1].Vars == nil {
		e.Frames[len(e.Frames)-1].Vars = e.Vars
	}
	for i := range e.Frames {
		e.Frames[i].Vars = truncateVars(e.Frames[i].Vars, localVarMaxLen, localVarListMaxLen)
	}
	if e.ExceptionType != "" {
		out.Exception = &encodedException{
			Type:       truncateKeyword(e.ExceptionType),
			Module:     e.ExceptionModule,
			Message:    e.Message,
			Handled:    e.Handled,
			Stacktrace: e.Frames,
		}
	} else {
		out.Log = &encodedLog{
			Message:      e.Message,
			ParamMessage: e.ParamMessage,
			LoggerName:   e.LoggerName,
			Stacktrace:   e.Frames,
		}
	}
	return out
}
