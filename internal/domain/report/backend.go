package report

import (
	"context"
	"encoding/json"
)

// StatusUpdate carries one status edit to the backend: the customer
// identity plus exactly the one changed field. Field selection is
// structural so a payload can never carry two edits at once.
type StatusUpdate struct {
	CustomerID  string
	ExternalRef string

	// Field is one of the four editable status fields.
	Field string
	// Action holds the new action text for action_taken edits; nil
	// marshals to an explicit null (cleared), never an empty string.
	Action *string
	// Flag holds the new value for the three boolean fields.
	Flag bool
}

// MarshalJSON emits the identity and the single changed field.
func (u StatusUpdate) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, 3)
	if u.CustomerID != "" {
		payload["customer_id"] = u.CustomerID
	}
	if u.ExternalRef != "" {
		payload["external_ref"] = u.ExternalRef
	}
	switch u.Field {
	case FieldActionTaken:
		payload[FieldActionTaken] = u.Action
	case FieldSlackUpdated, FieldFollowUp, FieldEscalation:
		payload[u.Field] = u.Flag
	}
	return json.Marshal(payload)
}

// Backend is the report/status/login boundary. Implementations live in
// infrastructure; application services depend on this interface only.
type Backend interface {
	// ArAgingReport fetches the aging report, optionally for a specific
	// report date (YYYY-MM-DD; empty means the backend's default).
	ArAgingReport(ctx context.Context, accessToken, reportDate string) (*RawReport, error)

	// UpdateCustomerStatus sends one status edit. A non-2xx response or
	// an ok:false envelope is an error.
	UpdateCustomerStatus(ctx context.Context, accessToken string, update StatusUpdate) error

	// LoginRedirect starts the accounting-provider OAuth flow and
	// returns the URL the whole page must navigate to.
	LoginRedirect(ctx context.Context, accessToken, returnTo string) (string, error)
}
