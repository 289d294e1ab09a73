package logging

import "context"

type contextKey string

const (
	operationIDKey contextKey = "operation_id"
	componentKey   contextKey = "component"
)

// WithOperationID attaches a bulk-operation id to the context so every log
// line emitted during the batch carries it.
func WithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, operationIDKey, operationID)
}

// GetOperationID returns the operation id carried by the context, or "".
func GetOperationID(ctx context.Context) string {
	if v, ok := ctx.Value(operationIDKey).(string); ok {
		return v
	}
	return ""
}

// WithComponent tags the context with the engine component doing the work.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// GetComponent returns the component tag carried by the context, or "".
func GetComponent(ctx context.Context) string {
	if v, ok := ctx.Value(componentKey).(string); ok {
		return v
	}
	return ""
}

// GetLogFields flattens the context tags into zap-style key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 4)
	if id := GetOperationID(ctx); id != "" {
		fields = append(fields, "operation_id", id)
	}
	if component := GetComponent(ctx); component != "" {
		fields = append(fields, "component", component)
	}
	return fields
}
