package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldBackend is the structured log field key for the service backend name.
	FieldBackend = "backend"
	// FieldModel is the structured log field key for the model identifier.
	FieldModel = "model"
	// FieldStage is the structured log field key for the workflow stage.
	FieldStage = "stage"
	// FieldSeq is the structured log field key for the per-stage request number.
	FieldSeq = "seq"
	// FieldRequestID is the structured log field key for the outgoing request ID.
	FieldRequestID = "request_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// BackendFields describes the gateway backend and model. Empty values are dropped.
func BackendFields(backend, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldBackend, Value: backend},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithBackend(logger *zap.Logger, backend, model string) *zap.Logger {
	return WithFields(logger, BackendFields(backend, model)...)
}

// StageFields identifies one controller request. A zero seq marks a rejected request.
func StageFields(stage string, seq uint64) []zap.Field {
	fields := StringFields(StringField{Key: FieldStage, Value: stage})
	if seq > 0 {
		fields = append(fields, zap.Uint64(FieldSeq, seq))
	}
	return fields
}

func RequestID(id string) zap.Field {
	return zap.String(FieldRequestID, id)
}
