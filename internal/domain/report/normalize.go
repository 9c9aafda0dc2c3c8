package report

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize converts a raw aging report into the canonical table. It is
// a pure function: the same raw report always yields the same table,
// independent of call order or prior state.
func Normalize(raw *RawReport) *Table {
	buckets := deriveBuckets(raw)

	columns := buildColumns(buckets)
	rows := make([]Row, 0, len(raw.Rows))
	for _, rawRow := range raw.Rows {
		rows = append(rows, normalizeRow(rawRow, buckets))
	}

	return &Table{
		Columns:     columns,
		Rows:        rows,
		Buckets:     buckets,
		GeneratedAt: raw.GeneratedAt,
	}
}

// deriveBuckets builds the descriptor list from the first raw row only;
// the report schema is assumed uniform across rows. Labels are
// de-duplicated in order and field keys are kept collision-free by
// suffixing when two labels normalize identically.
func deriveBuckets(raw *RawReport) []BucketDescriptor {
	if len(raw.Rows) == 0 {
		return nil
	}

	labels := raw.Rows[0].Buckets.Labels()
	descriptors := make([]BucketDescriptor, 0, len(labels))
	seenLabels := make(map[string]bool, len(labels))
	usedFields := make(map[string]bool, len(labels))

	for _, label := range labels {
		if seenLabels[label] {
			continue
		}
		seenLabels[label] = true

		field := BucketFieldKey(label)
		for n := 2; usedFields[field]; n++ {
			field = BucketFieldKey(label) + "_" + strconv.Itoa(n)
		}
		usedFields[field] = true

		descriptors = append(descriptors, BucketDescriptor{
			Label:     label,
			FieldKey:  field,
			RouteSlug: BucketRouteSlug(label),
		})
	}
	return descriptors
}

func buildColumns(buckets []BucketDescriptor) []Column {
	columns := []Column{
		{Field: FieldCustomer, Header: "Customer", Kind: "text"},
		{Field: FieldTotalBalance, Header: "Total Balance", Kind: "currency"},
	}
	for _, b := range buckets {
		columns = append(columns, Column{Field: b.FieldKey, Header: b.Label, Kind: "currency"})
	}
	columns = append(columns,
		Column{Field: FieldCredits, Header: "Credits", Kind: "currency"},
		Column{Field: FieldRecommendedAction, Header: "Recommended Action", Kind: "text"},
		Column{Field: FieldActionTaken, Header: "Action Taken", Kind: "select", Editable: true, Options: ActionTakenOptions},
		Column{Field: FieldSlackUpdated, Header: "Slack Updated", Kind: "boolean", Editable: true},
		Column{Field: FieldFollowUp, Header: "Follow Up", Kind: "boolean", Editable: true},
		Column{Field: FieldEscalation, Header: "Escalation", Kind: "boolean", Editable: true},
		Column{Field: FieldOldestDaysPastDue, Header: "Days Past Due", Kind: "number"},
		Column{Field: FieldOldestAmount, Header: "Oldest Amount", Kind: "currency"},
	)
	return columns
}

func normalizeRow(raw RawRow, buckets []BucketDescriptor) Row {
	row := Row{
		FieldCustomer:          raw.Customer,
		FieldTotalBalance:      raw.TotalBalance,
		FieldCredits:           raw.Credits,
		FieldRecommendedAction: raw.RecommendedAction,
		FieldActionTaken:       resolveActionTaken(raw),
		FieldSlackUpdated:      resolveStatusFlag(statusSlackUpdated(raw.Status), raw.SlackUpdated),
		FieldFollowUp:          resolveStatusFlag(statusFollowUp(raw.Status), raw.FollowUp),
		FieldEscalation:        resolveStatusFlag(statusEscalation(raw.Status), raw.Escalation),
		FieldCustomerID:        raw.CustomerID,
		FieldExternalRef:       raw.ExternalRef,
	}

	if raw.OldestInvoice != nil && raw.OldestInvoice.DaysPastDue != nil {
		row[FieldOldestDaysPastDue] = *raw.OldestInvoice.DaysPastDue
	} else {
		row[FieldOldestDaysPastDue] = nil
	}
	if raw.OldestInvoice != nil && raw.OldestInvoice.Amount != nil {
		row[FieldOldestAmount] = *raw.OldestInvoice.Amount
	} else {
		row[FieldOldestAmount] = nil
	}

	// Every bucket field key is present on every row; rows without a
	// value for a bucket get nil, not omission.
	for _, b := range buckets {
		value, ok := raw.Buckets.Value(b.Label)
		if !ok {
			row[b.FieldKey] = nil
			continue
		}
		row[b.FieldKey] = decodeBucketCell(value)
	}
	return row
}

// decodeBucketCell turns a raw bucket amount into its canonical cell
// value: a decimal for numbers, the string itself for JSON strings, nil
// for null or anything else.
func decodeBucketCell(value json.RawMessage) any {
	trimmed := strings.TrimSpace(string(value))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(value, &num); err == nil {
		if d, err := decimal.NewFromString(num.String()); err == nil {
			return d
		}
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	return nil
}

// resolveActionTaken applies the explicit precedence order: status
// sub-object, then the legacy top-level field, then the default.
func resolveActionTaken(raw RawRow) string {
	if raw.Status != nil && raw.Status.ActionTaken != nil {
		return *raw.Status.ActionTaken
	}
	if raw.ActionTaken != nil {
		return *raw.ActionTaken
	}
	return DefaultActionTaken
}

// resolveStatusFlag resolves a boolean status field with the same
// precedence: sub-object, legacy top-level, then false.
func resolveStatusFlag(sub, legacy *bool) bool {
	if sub != nil {
		return *sub
	}
	if legacy != nil {
		return *legacy
	}
	return false
}

func statusSlackUpdated(s *RawStatus) *bool {
	if s == nil {
		return nil
	}
	return s.SlackUpdated
}

func statusFollowUp(s *RawStatus) *bool {
	if s == nil {
		return nil
	}
	return s.FollowUp
}

func statusEscalation(s *RawStatus) *bool {
	if s == nil {
		return nil
	}
	return s.Escalation
}
