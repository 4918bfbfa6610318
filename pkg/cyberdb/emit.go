package cyberdb

import (
	"github.com/google/uuid"

	"github.com/redopsio/cyberkb/pkg/metrics"
	"github.com/redopsio/cyberkb/pkg/shared/severity"
)

// Control statuses. A control row either passed ("ok") or failed ("ko");
// an alert is a control that can only fail.
const (
	StatusOK = "ok"
	StatusKO = "ko"
)

// Emitter is the protocol scanners use to record results. One emitter is
// bound to one scanner invocation.
type Emitter struct {
	db      *CyberDB
	scanner string
}

// EmitOption attaches confidence/severity metadata to a control or alert.
type EmitOption func(*emitParams)

type emitParams struct {
	confidence severity.Confidence
	severity   severity.Level
}

// WithConfidence sets how certain the scanner is about the result.
func WithConfidence(c severity.Confidence) EmitOption {
	return func(p *emitParams) { p.confidence = c }
}

// WithSeverity sets the severity of a failing result.
func WithSeverity(s severity.Level) EmitOption {
	return func(p *emitParams) { p.severity = s }
}

// Enabled reports whether the named check is active in the current
// configuration. Scanners must consult this before evaluating a check;
// a disabled check emits nothing, which is distinct from "checked and
// passed".
func (e *Emitter) Enabled(control string) bool {
	return e.db.cfg.ControlEnabled(control)
}

// Control records the outcome of a named pass/fail check for one subject.
func (e *Emitter) Control(control string, ok bool, details Details, opts ...EmitOption) error {
	status := StatusKO
	if ok {
		status = StatusOK
	}
	return e.emit(control, status, details, opts)
}

// Alert records a named finding unconditionally; there is no passing case.
func (e *Emitter) Alert(control string, details Details, opts ...EmitOption) error {
	return e.emit(control, StatusKO, details, opts)
}

func (e *Emitter) emit(control, status string, details Details, opts []EmitOption) error {
	var p emitParams
	for _, opt := range opts {
		opt(&p)
	}

	fields := Fields{
		"id":      uuid.NewString(),
		"name":    control,
		"scanner": e.scanner,
		"status":  status,
		"details": details,
	}
	if p.confidence != "" {
		fields["confidence"] = p.confidence.String()
	}
	if p.severity != "" {
		fields["severity"] = p.severity.String()
	}

	if _, err := e.db.Feed("control", fields); err != nil {
		return err
	}
	metrics.Alerts.WithLabelValues(control, status).Inc()
	return nil
}
