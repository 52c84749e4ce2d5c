package utils

import (
	"context"
)

// RunContext carries batch-run metadata through the pipeline so spans, logs
// and event payloads can correlate everything one run produced.
type RunContext struct {
	RunId  string
	Source string
}

var runContextKey = "RUN_CONTEXT"

func WithRunContext(ctx context.Context, runContext *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey, runContext)
}

func GetRunContext(ctx context.Context) *RunContext {
	runContext, ok := ctx.Value(runContextKey).(*RunContext)
	if !ok {
		return new(RunContext)
	}
	return runContext
}

func GetRunIdFromContext(ctx context.Context) string {
	return GetRunContext(ctx).RunId
}

func GetSourceFromContext(ctx context.Context) string {
	return GetRunContext(ctx).Source
}
