package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Business context (discussion_id, role, candidate, ...) is attached once and then
// included in every log statement made with that context.
type LogFields struct {
	DiscussionID *int64  // Discussion being orchestrated
	Role         *string // Role whose turn is being generated
	TurnIndex    *int    // Sequence index of the turn
	Candidate    *string // Backend candidate currently invoked
	Backend      *string // Backend family ("chain" or "threads")
	Component    string  // Component name (OTel semantic convention style, e.g., "boardroom.discussion.sequencer")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.DiscussionID != nil {
		result.DiscussionID = new.DiscussionID
	}
	if new.Role != nil {
		result.Role = new.Role
	}
	if new.TurnIndex != nil {
		result.TurnIndex = new.TurnIndex
	}
	if new.Candidate != nil {
		result.Candidate = new.Candidate
	}
	if new.Backend != nil {
		result.Backend = new.Backend
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{Role: logger.Ptr("CFO")})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like raw model output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
