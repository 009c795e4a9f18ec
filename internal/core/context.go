package core

import "context"

type contextKey string

const (
	ctxKeyTrigger   contextKey = "sync_trigger"
	ctxKeyIPAddress contextKey = "sync_ip"
)

// Trigger sources recorded on run logs.
const (
	TriggerCron      = "cron"
	TriggerManual    = "manual"
	TriggerFullReset = "full_reset"
	TriggerScheduler = "scheduler"
	TriggerCLI       = "cli"
)

// ContextWithTrigger records what started a run, for the run log.
func ContextWithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, ctxKeyTrigger, trigger)
}

// TriggerFromContext returns the trigger recorded by ContextWithTrigger.
func TriggerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTrigger).(string); ok {
		return v
	}
	return ""
}

// ContextWithIPAddress records the caller address for logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// IPAddressFromContext extracts the caller address.
func IPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}
