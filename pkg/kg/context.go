package kg

import "context"

type runIDKey struct{}

// WithRunID attaches the pipeline run identifier to the context so
// stages can stamp it onto provenance records.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier, or "" when unset.
func RunIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}
