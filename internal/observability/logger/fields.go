package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// STANDARD FIELDS - HTTP
// =================================================================================

// RequestID field for the request id.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method field for the HTTP method.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path field for the request path.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status field for the HTTP status code.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration field for the request duration.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// DurationMs field for the duration in milliseconds.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Bytes field for the response size.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// ClientIP field for the caller's IP.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// =================================================================================
// STANDARD FIELDS - BUSINESS
// =================================================================================

// ClientID field for the OAuth client id.
func ClientID(v string) zap.Field {
	return zap.String("client_id", v)
}

// UserID field for the user id.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// GrantType field for the OAuth grant type.
func GrantType(v string) zap.Field {
	return zap.String("grant_type", v)
}

// TokenID field for a token row id (jti).
func TokenID(v string) zap.Field {
	return zap.String("token_id", v)
}

// Scope field for the space-joined scope string.
func Scope(v string) zap.Field {
	return zap.String("scope", v)
}

// =================================================================================
// STANDARD FIELDS - SYSTEM
// =================================================================================

// Component field for the component/module.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op field for the current operation.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer field for the layer (controller, service, repository).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err field for an error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// GENERIC FIELDS
// =================================================================================

// Count field for a count.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String generic string field.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int generic int field.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool generic bool field.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any generic field for any value.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
