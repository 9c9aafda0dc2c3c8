package report

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func sampleReport() *RawReport {
	return &RawReport{
		GeneratedAt: "2026-08-31T17:00:00Z",
		Rows: []RawRow{
			{
				Customer:     "Acme Farms",
				TotalBalance: decimal.NewFromInt(1500),
				Credits:      decimal.NewFromInt(-50),
				Buckets: NewBuckets(
					BucketAmount{Label: "0-30", Value: json.RawMessage(`1000`)},
					BucketAmount{Label: "31-60", Value: json.RawMessage(`400`)},
					BucketAmount{Label: "90+", Value: json.RawMessage(`100`)},
				),
				RecommendedAction: "Call customer",
				CustomerID:        "cust-1",
			},
			{
				Customer:     "Bravo Orchards",
				TotalBalance: decimal.NewFromInt(200),
				Buckets: NewBuckets(
					BucketAmount{Label: "0-30", Value: json.RawMessage(`200`)},
				),
				ExternalRef: "ref-2",
			},
		},
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := sampleReport()

	first := Normalize(raw)
	second := Normalize(raw)

	assert.Equal(t, first, second)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestNormalizeUniformBucketSchema(t *testing.T) {
	table := Normalize(sampleReport())

	require.Len(t, table.Buckets, 3)
	for _, row := range table.Rows {
		for _, b := range table.Buckets {
			_, present := row[b.FieldKey]
			assert.True(t, present, "row missing bucket field %s", b.FieldKey)
		}
	}

	// The second row has no 31-60 or 90+ value: nil, not omission.
	second := table.Rows[1]
	assert.Nil(t, second[table.Buckets[1].FieldKey])
	assert.Nil(t, second[table.Buckets[2].FieldKey])
}

func TestBucketSlugDerivation(t *testing.T) {
	labels := []string{"0-30", "31-60", "90+"}
	want := []string{"0-30", "31-60", "90plus"}

	for i, label := range labels {
		assert.Equal(t, want[i], BucketRouteSlug(label))
	}

	assert.Equal(t, "current", BucketRouteSlug("Current"))
	assert.Equal(t, "bucket", BucketRouteSlug("---"))
}

func TestBucketFieldKeysDistinct(t *testing.T) {
	table := Normalize(sampleReport())

	seen := make(map[string]bool)
	for _, b := range table.Buckets {
		assert.False(t, seen[b.FieldKey], "field key %s not unique", b.FieldKey)
		seen[b.FieldKey] = true
	}
}

func TestDeriveBucketsDeduplicatesCollidingKeys(t *testing.T) {
	raw := &RawReport{
		Rows: []RawRow{{
			Buckets: NewBuckets(
				BucketAmount{Label: "90+", Value: json.RawMessage(`1`)},
				BucketAmount{Label: "90town", Value: json.RawMessage(`2`)},
				BucketAmount{Label: "90 ", Value: json.RawMessage(`3`)},
			),
		}},
	}

	table := Normalize(raw)
	require.Len(t, table.Buckets, 3)
	assert.NotEqual(t, table.Buckets[0].FieldKey, table.Buckets[2].FieldKey)
}

func TestStatusPrecedenceResolution(t *testing.T) {
	raw := &RawReport{
		Rows: []RawRow{
			{
				// Sub-object wins over legacy top-level fields.
				Customer:     "Sub wins",
				ActionTaken:  strPtr("Contacted"),
				SlackUpdated: boolPtr(false),
				Status: &RawStatus{
					ActionTaken:  strPtr("Resolved"),
					SlackUpdated: boolPtr(true),
				},
				Buckets: NewBuckets(BucketAmount{Label: "0-30", Value: json.RawMessage(`1`)}),
			},
			{
				// Legacy fields used when the sub-object is missing them.
				Customer:    "Legacy",
				ActionTaken: strPtr("Followed Up"),
				FollowUp:    boolPtr(true),
				Status:      &RawStatus{},
			},
			{
				// Built-in defaults when neither source has a value.
				Customer: "Defaults",
			},
		},
	}

	table := Normalize(raw)

	assert.Equal(t, "Resolved", table.Rows[0][FieldActionTaken])
	assert.Equal(t, true, table.Rows[0][FieldSlackUpdated])

	assert.Equal(t, "Followed Up", table.Rows[1][FieldActionTaken])
	assert.Equal(t, true, table.Rows[1][FieldFollowUp])

	assert.Equal(t, DefaultActionTaken, table.Rows[2][FieldActionTaken])
	assert.Equal(t, false, table.Rows[2][FieldSlackUpdated])
	assert.Equal(t, false, table.Rows[2][FieldFollowUp])
	assert.Equal(t, false, table.Rows[2][FieldEscalation])
}

func TestBucketsPreserveReportOrder(t *testing.T) {
	var row RawRow
	err := json.Unmarshal([]byte(`{
		"customer": "Acme",
		"total_balance": 10,
		"credits": 0,
		"recommended_action": "",
		"buckets": {"0-30": 5, "31-60": 3, "61-90": 1, "90+": 1}
	}`), &row)
	require.NoError(t, err)

	assert.Equal(t, []string{"0-30", "31-60", "61-90", "90+"}, row.Buckets.Labels())
}

func TestNormalizeEmptyReport(t *testing.T) {
	table := Normalize(&RawReport{GeneratedAt: "2026-08-31T17:00:00Z"})

	assert.Empty(t, table.Buckets)
	assert.Empty(t, table.Rows)
	assert.Equal(t, "2026-08-31T17:00:00Z", table.GeneratedAt)
}

func TestOldestInvoiceFlattening(t *testing.T) {
	days := 95
	amount := decimal.NewFromInt(320)
	raw := &RawReport{
		Rows: []RawRow{
			{Customer: "With", OldestInvoice: &RawInvoice{DaysPastDue: &days, Amount: &amount}},
			{Customer: "Without"},
		},
	}

	table := Normalize(raw)

	assert.Equal(t, 95, table.Rows[0][FieldOldestDaysPastDue])
	assert.Equal(t, amount, table.Rows[0][FieldOldestAmount])
	assert.Nil(t, table.Rows[1][FieldOldestDaysPastDue])
	assert.Nil(t, table.Rows[1][FieldOldestAmount])
}

func TestStatusUpdateMarshal(t *testing.T) {
	cleared := StatusUpdate{CustomerID: "cust-1", Field: FieldActionTaken}
	data, err := json.Marshal(cleared)
	require.NoError(t, err)
	assert.JSONEq(t, `{"customer_id":"cust-1","action_taken":null}`, string(data))

	flag := StatusUpdate{ExternalRef: "ref-9", Field: FieldSlackUpdated, Flag: true}
	data, err = json.Marshal(flag)
	require.NoError(t, err)
	assert.JSONEq(t, `{"external_ref":"ref-9","slack_updated":true}`, string(data))

	text := StatusUpdate{CustomerID: "cust-1", Field: FieldActionTaken, Action: strPtr("Contacted")}
	data, err = json.Marshal(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"customer_id":"cust-1","action_taken":"Contacted"}`, string(data))
}
