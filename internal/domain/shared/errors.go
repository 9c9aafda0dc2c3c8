package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors. The messages are user-visible and pass through
// the response envelope verbatim.
var (
	ErrSessionRequired    = NewDomainError("SESSION_REQUIRED", "You need to sign in before performing this action")
	ErrMissingCustomerKey = NewDomainError("MISSING_CUSTOMER_KEY", "Unable to update customer status: missing identifier.")
	ErrReportUnavailable  = NewDomainError("REPORT_UNAVAILABLE", "No aging report has been loaded")
	ErrBackendRejected    = NewDomainError("BACKEND_REJECTED", "The backend rejected the request")
)
