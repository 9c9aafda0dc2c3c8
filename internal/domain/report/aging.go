package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonical row field keys. Bucket columns use derived keys on top of
// these; see BucketDescriptor.
const (
	FieldCustomer          = "customer"
	FieldTotalBalance      = "total_balance"
	FieldCredits           = "credits"
	FieldRecommendedAction = "recommended_action"
	FieldActionTaken       = "action_taken"
	FieldSlackUpdated      = "slack_updated"
	FieldFollowUp          = "follow_up"
	FieldEscalation        = "escalation"
	FieldOldestDaysPastDue = "oldest_invoice_days_past_due"
	FieldOldestAmount      = "oldest_invoice_amount"
	FieldCustomerID        = "customer_id"
	FieldExternalRef       = "external_ref"
)

// DefaultActionTaken is the built-in value when neither the status
// sub-object nor the legacy top-level field carries one.
const DefaultActionTaken = "Not Started"

// ActionTakenOptions are the select choices offered for the action column.
// The field still accepts free text from older reports.
var ActionTakenOptions = []string{"Not Started", "Contacted", "Followed Up", "Resolved"}

// StatusFields is the exact set of editable status fields.
var StatusFields = map[string]bool{
	FieldActionTaken:  true,
	FieldSlackUpdated: true,
	FieldFollowUp:     true,
	FieldEscalation:   true,
}

// RawStatus is the optional status sub-object on a raw report row.
type RawStatus struct {
	ActionTaken  *string `json:"action_taken,omitempty"`
	SlackUpdated *bool   `json:"slack_updated,omitempty"`
	FollowUp     *bool   `json:"follow_up,omitempty"`
	Escalation   *bool   `json:"escalation,omitempty"`
}

// RawInvoice describes the oldest open invoice of a customer.
type RawInvoice struct {
	DocNum      string           `json:"doc_num,omitempty"`
	TxnType     string           `json:"txn_type,omitempty"`
	DueDate     string           `json:"due_date,omitempty"`
	DaysPastDue *int             `json:"days_past_due,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
}

// RawRow is one per-customer entry as the report backend ships it.
// Status fields exist both as a sub-object and as legacy top-level
// fields; resolution precedence lives in the normalizer.
type RawRow struct {
	Customer          string          `json:"customer"`
	TotalBalance      decimal.Decimal `json:"total_balance"`
	Buckets           Buckets         `json:"buckets"`
	Credits           decimal.Decimal `json:"credits"`
	RecommendedAction string          `json:"recommended_action"`
	CustomerID        string          `json:"customer_id,omitempty"`
	ExternalRef       string          `json:"external_ref,omitempty"`
	ActionTaken       *string         `json:"action_taken,omitempty"`
	SlackUpdated      *bool           `json:"slack_updated,omitempty"`
	FollowUp          *bool           `json:"follow_up,omitempty"`
	Escalation        *bool           `json:"escalation,omitempty"`
	Status            *RawStatus      `json:"status,omitempty"`
	OldestInvoice     *RawInvoice     `json:"oldest_invoice,omitempty"`
}

// RawReport is the aging report response body.
type RawReport struct {
	GeneratedAt string   `json:"generated_at"`
	Rows        []RawRow `json:"rows"`
}

// Buckets is a label→amount mapping that preserves the report's own
// label order. Values stay raw so downstream filtering can tell a
// genuine number from junk instead of coercing junk to zero.
type Buckets struct {
	labels []string
	values map[string]json.RawMessage
}

// UnmarshalJSON walks the object token stream so insertion order survives.
func (b *Buckets) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*b = Buckets{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("buckets: expected object, got %v", tok)
	}

	b.labels = nil
	b.values = make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		label := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if _, seen := b.values[label]; !seen {
			b.labels = append(b.labels, label)
		}
		b.values[label] = value
	}
	_, err = dec.Token() // closing brace
	return err
}

// MarshalJSON writes labels back in their original order.
func (b Buckets) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, label := range b.labels {
		if i > 0 {
			sb.WriteByte(',')
		}
		key, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		sb.Write(key)
		sb.WriteByte(':')
		sb.Write(b.values[label])
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}

// Labels returns bucket labels in report order.
func (b Buckets) Labels() []string {
	return b.labels
}

// Value returns the raw amount for a label.
func (b Buckets) Value(label string) (json.RawMessage, bool) {
	v, ok := b.values[label]
	return v, ok
}

// NewBuckets builds a bucket map in the given order. Test helper and
// programmatic construction path.
func NewBuckets(pairs ...BucketAmount) Buckets {
	b := Buckets{values: make(map[string]json.RawMessage)}
	for _, p := range pairs {
		if _, seen := b.values[p.Label]; !seen {
			b.labels = append(b.labels, p.Label)
		}
		b.values[p.Label] = p.Value
	}
	return b
}

// BucketAmount pairs a label with its raw amount.
type BucketAmount struct {
	Label string
	Value json.RawMessage
}

// BucketDescriptor addresses one dynamic bucket column: the report's
// human label, the collision-free row field key, and the URL slug.
// Descriptors are recomputed per report fetch and never mutated.
type BucketDescriptor struct {
	Label     string `json:"label"`
	FieldKey  string `json:"field"`
	RouteSlug string `json:"slug"`
}

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// BucketFieldKey derives the row field key for a bucket label:
// "90+" becomes "bucket_90_".
func BucketFieldKey(label string) string {
	return "bucket_" + nonAlnumRun.ReplaceAllString(strings.ToLower(label), "_")
}

// BucketRouteSlug derives the URL slug for a bucket label. The "+"
// character is spelled out before generic replacement so "90+" yields
// "90plus" rather than dropping the symbol.
func BucketRouteSlug(label string) string {
	slug := strings.ToLower(label)
	slug = strings.ReplaceAll(slug, "+", "plus")
	slug = nonAlnumRun.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "bucket"
	}
	return slug
}

// Column describes one grid column.
type Column struct {
	Field    string   `json:"field"`
	Header   string   `json:"header_name"`
	Kind     string   `json:"kind"` // text, currency, boolean, select, number
	Editable bool     `json:"editable,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// Row is a flat grid row keyed by canonical field keys. Bucket cells
// hold decimal.Decimal, a raw string, or nil.
type Row map[string]any

// CustomerKey returns the resolvable identity of a row, preferring the
// stable customer ID over the external reference.
func (r Row) CustomerKey() (customerID, externalRef string) {
	if v, ok := r[FieldCustomerID].(string); ok {
		customerID = v
	}
	if v, ok := r[FieldExternalRef].(string); ok {
		externalRef = v
	}
	return customerID, externalRef
}

// Table is the canonical view-model for one fetched report. It is
// replaced wholesale on every fetch; cell mutations go through the
// status reconciler only.
type Table struct {
	Columns     []Column           `json:"columns"`
	Rows        []Row              `json:"rows"`
	Buckets     []BucketDescriptor `json:"buckets"`
	GeneratedAt string             `json:"generated_at"`
}
