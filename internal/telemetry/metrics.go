package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/hrdesk"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Authorization metrics
	PermissionChecksTotal  metric.Int64Counter
	PermissionDeniedTotal  metric.Int64Counter
	TenantResolutionsTotal metric.Int64Counter

	// Invite ledger metrics
	InviteRedemptionsTotal metric.Int64Counter
	InviteConflictsTotal   metric.Int64Counter
	EmployeeLinksTotal     metric.Int64Counter

	// Action metrics
	ActionsTotal    metric.Int64Counter
	ActionDuration  metric.Float64Histogram
	SessionsCreated metric.Int64Counter
	SessionsSwept   metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// RecordInviteRedemption counts a ledger outcome such as "redeemed", "expired" or "conflict".
func (m *Metrics) RecordInviteRedemption(ctx context.Context, kind, outcome string) {
	m.InviteRedemptionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// RecordAction counts an action invocation and its duration in milliseconds.
func (m *Metrics) RecordAction(ctx context.Context, action, outcome string, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	)
	m.ActionsTotal.Add(ctx, 1, attrs)
	m.ActionDuration.Record(ctx, durationMs, attrs)
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Authorization metrics
	m.PermissionChecksTotal, _ = meter.Int64Counter(
		"hrdesk.authz.checks.total",
		metric.WithDescription("Total number of permission checks"),
		metric.WithUnit("{check}"),
	)

	m.PermissionDeniedTotal, _ = meter.Int64Counter(
		"hrdesk.authz.denied.total",
		metric.WithDescription("Total number of denied permission checks"),
		metric.WithUnit("{check}"),
	)

	m.TenantResolutionsTotal, _ = meter.Int64Counter(
		"hrdesk.tenant.resolutions.total",
		metric.WithDescription("Total number of tenant resolutions"),
		metric.WithUnit("{resolution}"),
	)

	// Invite ledger metrics
	m.InviteRedemptionsTotal, _ = meter.Int64Counter(
		"hrdesk.invites.redemptions.total",
		metric.WithDescription("Total number of invite redemption attempts by outcome"),
		metric.WithUnit("{redemption}"),
	)

	m.InviteConflictsTotal, _ = meter.Int64Counter(
		"hrdesk.invites.conflicts.total",
		metric.WithDescription("Total number of compare-and-swap conflicts on invite codes"),
		metric.WithUnit("{conflict}"),
	)

	m.EmployeeLinksTotal, _ = meter.Int64Counter(
		"hrdesk.employees.links.total",
		metric.WithDescription("Total number of LINE identities linked to employees"),
		metric.WithUnit("{link}"),
	)

	// Action metrics
	m.ActionsTotal, _ = meter.Int64Counter(
		"hrdesk.actions.total",
		metric.WithDescription("Total number of admin actions by outcome"),
		metric.WithUnit("{action}"),
	)

	m.ActionDuration, _ = meter.Float64Histogram(
		"hrdesk.actions.duration",
		metric.WithDescription("Duration of admin actions"),
		metric.WithUnit("ms"),
	)

	m.SessionsCreated, _ = meter.Int64Counter(
		"hrdesk.sessions.created.total",
		metric.WithDescription("Total number of console sessions created"),
		metric.WithUnit("{session}"),
	)

	m.SessionsSwept, _ = meter.Int64Counter(
		"hrdesk.sessions.swept.total",
		metric.WithDescription("Total number of expired sessions removed by the sweeper"),
		metric.WithUnit("{session}"),
	)

	return m
}
