package log

// Common field names for structured logging
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
	FieldReferer       = "referer"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldOwnerID       = "owner_id"
	FieldAccountID     = "account_id"
	FieldAccountKind   = "kind"
	FieldEntryID       = "entry_id"
	FieldAmount        = "amount"
	FieldTotal         = "total"
	FieldTransactionID = "transaction_id"
	FieldCategoryID    = "category_id"
	FieldYear          = "year"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentRates     = "rates"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpCreate      = "create"
	OpRead        = "read"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpList        = "list"
	OpAddEntry    = "add_entry"
	OpUpdateEntry = "update_entry"
	OpDeleteEntry = "delete_entry"
	OpNormalize   = "normalize"
	OpReconcile   = "reconcile"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeUpstream      = "upstream_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error text; a nil error is skipped.
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

// WithAccount adds the fields identifying a goal or debt.
func (f LogFields) WithAccount(ownerID, kind, accountID string) LogFields {
	f[FieldOwnerID] = ownerID
	f[FieldAccountKind] = kind
	f[FieldAccountID] = accountID
	return f
}

// WithEntry adds entry id and amount. Amounts are logged as strings.
func (f LogFields) WithEntry(entryID, amount string) LogFields {
	if entryID != "" {
		f[FieldEntryID] = entryID
	}
	if amount != "" {
		f[FieldAmount] = amount
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
