package report

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Raulito1/collections-web/internal/domain/report"
	"github.com/Raulito1/collections-web/internal/domain/shared"
)

// CellEdit is a single-cell-change event from the grid surface.
type CellEdit struct {
	Field       string `json:"field" binding:"required"`
	OldValue    any    `json:"old_value"`
	NewValue    any    `json:"new_value"`
	CustomerID  string `json:"customer_id"`
	ExternalRef string `json:"external_ref"`
}

// EditResult tells the grid what the cell must show after the edit
// settled: the optimistic value on success, the pre-edit value when the
// edit was reverted.
type EditResult struct {
	Field    string `json:"field"`
	Value    any    `json:"value"`
	Reverted bool   `json:"reverted"`
}

// Reconciler applies status edits optimistically against the service's
// table and reconciles them with the status backend, rolling the cell
// back when the backend rejects the change. Edits are independent per
// cell; there is no batching or queuing, and a second edit to the same
// cell before the first resolves is last-writer-wins.
type Reconciler struct {
	svc    *Service
	logger *zap.Logger
}

// NewReconciler wires a status reconciler onto the report service.
func NewReconciler(svc *Service, logger *zap.Logger) *Reconciler {
	return &Reconciler{svc: svc, logger: logger.Named("status")}
}

// HandleCellChange processes one grid edit end to end.
func (r *Reconciler) HandleCellChange(ctx context.Context, edit CellEdit) EditResult {
	// Edits outside the four status fields and no-op edits are ignored:
	// no network call, no message mutation.
	if !report.StatusFields[edit.Field] || equalCellValues(edit.OldValue, edit.NewValue) {
		return EditResult{Field: edit.Field, Value: edit.NewValue}
	}

	if edit.CustomerID == "" && edit.ExternalRef == "" {
		requestLog(ctx, r.logger).Warn("missing identifier for customer status update",
			zap.String("field", edit.Field),
		)
		r.svc.mu.Lock()
		r.svc.messages.StatusError = shared.ErrMissingCustomerKey.Message
		r.svc.mu.Unlock()
		return EditResult{Field: edit.Field, Value: edit.OldValue, Reverted: true}
	}

	update := report.StatusUpdate{
		CustomerID:  edit.CustomerID,
		ExternalRef: edit.ExternalRef,
		Field:       edit.Field,
	}
	var optimistic any
	if edit.Field == report.FieldActionTaken {
		text := strings.TrimSpace(cellString(edit.NewValue))
		if text != "" {
			update.Action = &text
		}
		optimistic = cellString(edit.NewValue)
	} else {
		update.Flag = cellBool(edit.NewValue)
		optimistic = update.Flag
	}

	// Optimistic apply; the previous value is the rollback target.
	r.svc.mu.Lock()
	row := findRow(r.svc.table, edit.CustomerID, edit.ExternalRef)
	if row != nil {
		row[edit.Field] = optimistic
	}
	r.svc.messages.StatusMessage = ""
	r.svc.messages.StatusError = ""
	r.svc.mu.Unlock()

	token := r.svc.sessions.AccessToken()
	err := r.svc.backend.UpdateCustomerStatus(ctx, token, update)
	if err != nil {
		requestLog(ctx, r.logger).Error("failed to update customer status",
			zap.String("field", edit.Field),
			zap.Error(err),
		)
		r.svc.mu.Lock()
		if row != nil {
			row[edit.Field] = edit.OldValue
		}
		r.svc.messages.StatusError = "Unable to update customer status. Please try again."
		r.svc.mu.Unlock()
		return EditResult{Field: edit.Field, Value: edit.OldValue, Reverted: true}
	}

	r.svc.mu.Lock()
	r.svc.messages.StatusMessage = "Customer status updated."
	r.svc.mu.Unlock()
	return EditResult{Field: edit.Field, Value: optimistic}
}

// findRow locates the edited row by its customer identity.
func findRow(table *report.Table, customerID, externalRef string) report.Row {
	if table == nil {
		return nil
	}
	for _, row := range table.Rows {
		id, ref := row.CustomerKey()
		if customerID != "" && id == customerID {
			return row
		}
		if customerID == "" && externalRef != "" && ref == externalRef {
			return row
		}
	}
	return nil
}

// equalCellValues compares grid cell values loosely: JSON decoding may
// hand back bool or string for the same checkbox state.
func equalCellValues(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// cellBool coerces a grid cell value to a boolean the way the payload
// requires.
func cellBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	default:
		return false
	}
}
