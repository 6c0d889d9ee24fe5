package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	authkit "github.com/edugraminho/authkit"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is the slice of Engine the exporter reads from.
type metricsSource interface {
	MetricsSnapshot() authkit.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	id   authkit.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{authkit.MetricLoginSuccess, "authkit_login_success_total", "Completed logins, direct or code-verified."},
	{authkit.MetricLoginFailure, "authkit_login_failure_total", "Logins rejected on credentials or account status."},
	{authkit.MetricLoginLocked, "authkit_login_locked_total", "Logins rejected by the brute-force lockout flag."},
	{authkit.MetricCodeIssued, "authkit_code_issued_total", "Verification codes generated."},
	{authkit.MetricCodeVerified, "authkit_code_verified_total", "Verification codes accepted."},
	{authkit.MetricCodeRejected, "authkit_code_rejected_total", "Wrong or expired code submissions."},
	{authkit.MetricCodeExhausted, "authkit_code_exhausted_total", "Code checks rejected by the attempt budget."},
	{authkit.MetricCodeCooldown, "authkit_code_cooldown_total", "Code requests rejected by the resend cooldown."},
	{authkit.MetricDeliveryFailed, "authkit_delivery_failed_total", "Verification code deliveries that failed."},
	{authkit.MetricTokenIssued, "authkit_token_issued_total", "Signed tokens of every kind."},
	{authkit.MetricTokenRejected, "authkit_token_rejected_total", "Tokens that failed validation."},
	{authkit.MetricTokenRevoked, "authkit_token_revoked_total", "Individual and cascaded revocations."},
	{authkit.MetricRefreshSuccess, "authkit_refresh_success_total", "Successful refresh rotations."},
	{authkit.MetricRateLimited, "authkit_rate_limited_total", "Token issuance calls denied by the limiter."},
}

type observedCounter struct {
	id         authkit.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter mirrors engine counters into OTel observable instruments.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers instruments for every engine counter on meter.
func NewExporter(meter metric.Meter, engine *authkit.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot source, which
// keeps tests off a full Engine.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(counterDefs)),
	}

	observables := make([]metric.Observable, 0, len(counterDefs)+1)
	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.id, instrument: ins})
		observables = append(observables, ins)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"authkit_audit_dropped_total",
		metric.WithDescription("Audit events dropped under dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
