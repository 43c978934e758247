package log

import "net/http"

// Attribute keys shared by every component.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldUserID        = "user_id"
	FieldTransactionID = "transaction_id"
	FieldKind          = "type"
	FieldCategory      = "category"
	FieldAmountCents   = "amount_cents"
	FieldSheetsRef     = "sheets_ref"
)

// Component names.
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentAuth        = "auth"
	ComponentTransaction = "transaction"
	ComponentSavings     = "savings"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentSheets      = "sheets"
	ComponentCache       = "cache"
	ComponentSecurity    = "security"
	ComponentRateLimit   = "rate_limit"
	ComponentTrace       = "trace"
	ComponentBackend     = "backend"
	ComponentTemplate    = "template"
	ComponentSeed        = "seed"
)

// Operation names.
const (
	OpCreate = "create"
	OpDelete = "delete"
	OpSync   = "sync"
	OpRender = "render"
)

// Error categories, logged under FieldErrorType.
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeForbidden     = "forbidden_error"
	ErrorTypeInternal      = "internal_error"
	ErrorTypeSecurity      = "security_error"
	ErrorTypeRateLimit     = "rate_limit_error"
)

// LogFields collects attributes for one log line. Setters skip empty
// identifiers so lines stay free of blank keys.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	return f.setNonEmpty(FieldRequestID, requestID)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	return f.setNonEmpty(FieldClientIP, ip)
}

func (f LogFields) WithUser(userID string) LogFields {
	return f.setNonEmpty(FieldUserID, userID)
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	return f.setNonEmpty(FieldOperation, op)
}

// WithTransaction records what was stored. Titles and notes are never
// logged.
func (f LogFields) WithTransaction(id, kind, category string, amountCents int64) LogFields {
	f[FieldTransactionID] = id
	f[FieldKind] = kind
	f[FieldCategory] = category
	f[FieldAmountCents] = amountCents
	return f
}

func (f LogFields) WithPeriod(year, month int) LogFields {
	f[FieldYear] = year
	f[FieldMonth] = month
	return f
}

// WithRequest records the method and path. The query is added only when
// present; the user agent only when withAgent is set.
func (f LogFields) WithRequest(r *http.Request, withAgent bool) LogFields {
	f[FieldMethod] = r.Method
	f[FieldPath] = r.URL.Path
	f.setNonEmpty(FieldQuery, r.URL.RawQuery)
	if withAgent {
		f.setNonEmpty(FieldUserAgent, r.UserAgent())
	}
	return f
}

func (f LogFields) WithResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < http.StatusBadRequest
	return f
}

// ToSlice flattens f into slog's alternating key/value form.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}

func (f LogFields) setNonEmpty(key, value string) LogFields {
	if value != "" {
		f[key] = value
	}
	return f
}
