package session

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	opLogin     = "login"
	opRefresh   = "refresh"
	opLogout    = "logout"
	opLogoutAll = "logout_all"

	outcomeSuccess   = "success"
	outcomeFailure   = "failure"
	outcomeSkipped   = "skipped"
	outcomeDiscarded = "discarded"
)

var (
	sessionMetricsOnce sync.Once
	sessionCounter     metric.Int64Counter
)

func recordSessionEvent(ctx context.Context, operation, outcome string) {
	sessionMetricsOnce.Do(func() {
		counter, err := otel.Meter("github.com/jrsteele09/go-auth-session/session").Int64Counter("session.events")
		if err == nil {
			sessionCounter = counter
		}
	})
	if sessionCounter == nil {
		return
	}
	sessionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
