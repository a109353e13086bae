package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeInvalidStatus   = "ERR_INVALID_STATUS"
	ErrCodeInvalidTenant   = "ERR_INVALID_TENANT"
	ErrCodeInvalidRole     = "ERR_INVALID_ROLE"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized    = "ERR_UNAUTHORIZED"
	ErrCodeForbidden       = "ERR_FORBIDDEN"
	ErrCodeUserNotFound    = "ERR_USER_NOT_FOUND"
	ErrCodeInvalidIdentity = "ERR_INVALID_IDENTITY"
)

// Resource error codes
const (
	ErrCodeNotFound       = "ERR_NOT_FOUND"
	ErrCodeTenantNotFound = "ERR_TENANT_NOT_FOUND"
	ErrCodeLeadNotFound   = "ERR_LEAD_NOT_FOUND"
)

// Session state error codes
const (
	// ErrCodeStaleTenant is used when a result or request belongs to a tenant that is no
	// longer the session's active tenant
	ErrCodeStaleTenant    = "ERR_STALE_TENANT"
	ErrCodeEditInProgress = "ERR_EDIT_IN_PROGRESS"
	ErrCodeInvalidState   = "ERR_INVALID_STATE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeInvalidStatus:   http.StatusBadRequest,
	ErrCodeInvalidTenant:   http.StatusBadRequest,
	ErrCodeInvalidRole:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeForbidden:       http.StatusForbidden,
	ErrCodeUserNotFound:    http.StatusUnauthorized,
	ErrCodeInvalidIdentity: http.StatusUnprocessableEntity,

	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeTenantNotFound: http.StatusNotFound,
	ErrCodeLeadNotFound:   http.StatusNotFound,

	ErrCodeStaleTenant:    http.StatusConflict,
	ErrCodeEditInProgress: http.StatusConflict,
	ErrCodeInvalidState:   http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":        ErrCodeNotFound,
	"INVALID_INPUT":    ErrCodeInvalidInput,
	"INVALID_STATE":    ErrCodeInvalidState,
	"UNAUTHORIZED":     ErrCodeUnauthorized,
	"FORBIDDEN":        ErrCodeForbidden,
	"INVALID_IDENTITY": ErrCodeInvalidIdentity,
	"INVALID_NAME":     ErrCodeInvalidIdentity,
	"INVALID_ROLE":     ErrCodeInvalidRole,
	"INVALID_TENANT":   ErrCodeInvalidTenant,
	"INVALID_STATUS":   ErrCodeInvalidStatus,
	"USER_NOT_FOUND":   ErrCodeUserNotFound,
	"TENANT_NOT_FOUND": ErrCodeTenantNotFound,
	"LEAD_NOT_FOUND":   ErrCodeLeadNotFound,
	"STALE_TENANT":     ErrCodeStaleTenant,
	"EDIT_IN_PROGRESS": ErrCodeEditInProgress,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
