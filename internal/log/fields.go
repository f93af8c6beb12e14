package log

// Field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldRoute      = "route"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldSource     = "source"
	FieldRows       = "rows"
	FieldFilterKey  = "filter_key"
	FieldFiltered   = "filtered_rows"
	FieldTab        = "tab"
	FieldCacheHit   = "cache_hit"
	FieldURL        = "url"
)

// Component names.
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentDataset    = "dataset"
	ComponentDashboard  = "dashboard"
	ComponentBoundaries = "boundaries"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentEvents     = "events"
	ComponentCache      = "cache"
	ComponentSecurity   = "security"
	ComponentRateLimit  = "rate_limit"
	ComponentTrace      = "trace"
	ComponentTemplate   = "template"
)

// Operation names.
const (
	OpLoad     = "load"
	OpFilter   = "filter"
	OpRender   = "render"
	OpFetch    = "fetch"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields builds a set of structured log attributes.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds err when it is non-nil.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithSelection records the filter key and how many rows it selected.
func (f LogFields) WithSelection(filterKey string, filtered int) LogFields {
	f[FieldFilterKey] = filterKey
	f[FieldFiltered] = filtered
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice flattens the fields into slog key/value pairs. The component
// is left out since Logger adds it.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, v)
	}
	return slice
}
