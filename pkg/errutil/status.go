package errutil

import "net/http"

// CoreStatus is a transport-independent error code. Webhook statuses that
// must be acknowledged to the provider (to stop redelivery) intentionally map
// to 200 even though they describe failures.
type CoreStatus string

const (
	StatusBadRequest      CoreStatus = "BAD_REQUEST"
	StatusNotFound        CoreStatus = "NOT_FOUND"
	StatusConflict        CoreStatus = "CONFLICT"
	StatusUnauthorized    CoreStatus = "UNAUTHORIZED"
	StatusValidationError CoreStatus = "VALIDATION_FAILED"
	StatusInternal        CoreStatus = "INTERNAL_ERROR"
	StatusBadGateway      CoreStatus = "BAD_GATEWAY"
	StatusUnknown         CoreStatus = "UNKNOWN"

	// Payment event taxonomy.
	StatusInvalidSignature  CoreStatus = "INVALID_SIGNATURE"
	StatusMalformedPayload  CoreStatus = "MALFORMED_PAYLOAD"
	StatusTenantMismatch    CoreStatus = "TENANT_MISMATCH"
	StatusInvalidUserID     CoreStatus = "INVALID_USER_ID"
	StatusUnknownPackage    CoreStatus = "UNKNOWN_PACKAGE"
	StatusUnknownAccount    CoreStatus = "UNKNOWN_ACCOUNT"
	StatusLedgerUnavailable CoreStatus = "LEDGER_UNAVAILABLE"
)

func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest, StatusValidationError, StatusInvalidSignature, StatusMalformedPayload:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusTenantMismatch, StatusInvalidUserID, StatusUnknownPackage,
		StatusUnknownAccount, StatusLedgerUnavailable:
		// acknowledged: the provider must not retry these deliveries
		return http.StatusOK
	case StatusBadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
