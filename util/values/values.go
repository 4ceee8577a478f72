package values

type contextKey string

// ContextTracingKey is the context key under which the tracing
// context for a request is stored.
const ContextTracingKey = contextKey("tracing-context")

const (
	HeaderRequestID     = "X-Request-Id"
	HeaderRequestSource = "X-Request-Source"
)

const (
	Success        = "success"
	Created        = "created"
	Error          = "error"
	BadRequestBody = "bad-request-body"
	Unprocessable  = "unprocessable"
	NotFound       = "not-found"
	NotAllowed     = "not-allowed"
	Conflict       = "conflict"
	NotAuthorised  = "not-authorised"
	TokenExpired   = "token-expired"
	ActiveLogin    = "active-login"
	Unavailable    = "unavailable"
)
