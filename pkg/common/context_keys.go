package common

type contextKey string

const (
	FingerprintContextKey contextKey = "fingerprint"
	TraceIdKey            contextKey = "trace_id"
)
