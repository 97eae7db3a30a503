package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// statusValues are the canonical handler and job statuses.
var statusValues = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"retry":        {},
	"denied":       {},
	"rate_limited": {},
	"cancelled":    {},
}

func normalizeLevel(level string) string {
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	if level == "" {
		return "INFO"
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if _, ok := statusValues[s]; ok {
		return s
	}
	return status
}

// defaultKeyOrder puts identity first, then the update, then outcome and errors.
// Unlisted keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"action",
	"op",
	"cb_key",
	"payload",
	"duration_ms",
	"messages",
	"kb",
	"category_id",
	"product_id",
	"state",
	"categories",
	"products",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"retryable",
	"attempts",
	"backoff_ms",
}
