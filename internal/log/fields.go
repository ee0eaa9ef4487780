package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status_code"
	FieldDuration  = "duration_ms"
	FieldError     = "error"

	FieldUser      = "user"
	FieldAmount    = "amount"
	FieldPrincipal = "principal"
	FieldInterest  = "accrued_interest"
	FieldEventKind = "event_kind"
	FieldRateBps   = "annual_rate_bps"
	FieldLock      = "lock_period"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
)
