package log

// Attribute keys shared across packages.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldOwnerID       = "owner_id"
	FieldBusinessID    = "business_id"
	FieldRecordKind    = "record_kind"
	FieldRecordID      = "record_id"
	FieldAmount        = "amount"
	FieldPaymentMethod = "payment_method"
	FieldCashBalance   = "cash_balance"
	FieldBankBalance   = "bank_balance"
)

const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentReport  = "report"
	ComponentAuth    = "auth"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentCache   = "cache"
	ComponentBackend = "backend"
	ComponentCLI     = "cli"
)

// Values of FieldOperation.
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpOnboard   = "onboard"
	OpReconcile = "reconcile"
	OpPublish   = "publish"
)

// LogFields collects attributes before they are handed to slog.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	if ip != "" {
		f[FieldClientIP] = ip
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithBusiness(businessID string) LogFields {
	f[FieldBusinessID] = businessID
	return f
}

// WithRecord adds ledger record fields. Amount is the decimal string.
func (f LogFields) WithRecord(kind, id, amount, method string) LogFields {
	f[FieldRecordKind] = kind
	f[FieldRecordID] = id
	f[FieldAmount] = amount
	f[FieldPaymentMethod] = method
	return f
}

// WithBalances adds the business balances as decimal strings.
func (f LogFields) WithBalances(cash, bank string) LogFields {
	f[FieldCashBalance] = cash
	f[FieldBankBalance] = bank
	return f
}

// WithRequest omits an empty query.
func (f LogFields) WithRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	return f
}

func (f LogFields) WithResponse(status int, durationMs int64) LogFields {
	f[FieldStatusCode] = status
	f[FieldDuration] = durationMs
	return f
}

// ToSlice flattens the fields into slog's alternating key/value form.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
