package domain

// Payment methods
const (
	MethodBank       = "bank"
	MethodAvtaleGiro = "avtalegiro"
	MethodAutoGiro   = "autogiro"
	MethodVipps      = "vipps"
	MethodSwish      = "swish"
)

// Agreement statuses
const (
	AgreementStatusDraft      = "DRAFT"
	AgreementStatusActive     = "ACTIVE"
	AgreementStatusPaused     = "PAUSED"
	AgreementStatusTerminated = "TERMINATED"
)

// Charge statuses
const (
	ChargeStatusPending   = "PENDING"
	ChargeStatusDue       = "DUE"
	ChargeStatusCharged   = "CHARGED"
	ChargeStatusFailed    = "FAILED"
	ChargeStatusCancelled = "CANCELLED"
	ChargeStatusRefunded  = "REFUNDED"
)

// ClaimDayMonthEnd is the sentinel claim day meaning "last day of month".
const ClaimDayMonthEnd = 0

// MaxClaimDay is the highest configurable exact claim day. Days 29-31 are
// not configurable so every agreement stays chargeable in every month.
const MaxClaimDay = 28

// Batch job names used in run log entries and the run lock.
const (
	JobDailyClaims     = "daily_claims"
	JobRetryClaims     = "retry_claims"
	JobInboundOCR      = "inbound_ocr"
	JobInboundAutoGiro = "inbound_autogiro"
	JobAutoGiroClaims  = "autogiro_claims"
)

// Run log results
const (
	RunResultOK      = "OK"
	RunResultAborted = "ABORTED"
	RunResultNoop    = "NOOP"
)
