package tracing

// Context carries per-request identifiers through handler and
// repository layers for log correlation.
type Context struct {
	RequestID     string `json:"request_id"`
	RequestSource string `json:"request_source"`
}
