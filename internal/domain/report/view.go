package report

import (
	"github.com/shopspring/decimal"
)

// ResolveBucket matches a route slug against the table's buckets. A nil
// result (unknown slug, empty slug, or no table yet) means "show all
// buckets, unfiltered".
func ResolveBucket(slug string, table *Table) *BucketDescriptor {
	if slug == "" || table == nil {
		return nil
	}
	for i := range table.Buckets {
		if table.Buckets[i].RouteSlug == slug {
			return &table.Buckets[i]
		}
	}
	return nil
}

// StaleSlug reports whether a non-empty slug no longer matches any
// bucket of a loaded table. The caller must redirect to the unfiltered
// root view instead of showing an inconsistent filter.
func StaleSlug(slug string, table *Table) bool {
	if slug == "" || table == nil {
		return false
	}
	return ResolveBucket(slug, table) == nil
}

// VisibleColumns projects the column set for the active bucket: every
// bucket column except the active one is hidden, non-bucket columns
// always stay.
func (t *Table) VisibleColumns(active *BucketDescriptor) []Column {
	if t == nil {
		return nil
	}
	if active == nil {
		return t.Columns
	}

	bucketFields := make(map[string]bool, len(t.Buckets))
	for _, b := range t.Buckets {
		bucketFields[b.FieldKey] = true
	}

	visible := make([]Column, 0, len(t.Columns))
	for _, col := range t.Columns {
		if bucketFields[col.Field] && col.Field != active.FieldKey {
			continue
		}
		visible = append(visible, col)
	}
	return visible
}

// VisibleRows projects the row set for the active bucket: only rows
// whose value under the active field is numeric and greater than zero.
// Null and unparsable values are excluded, not treated as zero.
func (t *Table) VisibleRows(active *BucketDescriptor) []Row {
	if t == nil {
		return nil
	}
	if active == nil {
		return t.Rows
	}

	visible := make([]Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		if bucketCellPositive(row[active.FieldKey]) {
			visible = append(visible, row)
		}
	}
	return visible
}

func bucketCellPositive(value any) bool {
	switch v := value.(type) {
	case decimal.Decimal:
		return v.IsPositive()
	case string:
		d, err := decimal.NewFromString(v)
		return err == nil && d.IsPositive()
	default:
		return false
	}
}
