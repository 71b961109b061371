package utils

import (
	"context"

	"github.com/mmdatafocus/indicator_monitor/appctx"
)

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyTrigger       = appctx.ContextKeyTrigger
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetTriggerFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyTrigger)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// SetTriggerInContext tags the context with the entrypoint that started the run.
// An existing tag is kept so a sweep stays a sweep all the way down.
func SetTriggerInContext(ctx context.Context, trigger string) context.Context {
	if v, ok := GetTriggerFromContext(ctx); ok && v != "" {
		return ctx
	}
	return appctx.Set(ctx, ContextKeyTrigger, trigger)
}
