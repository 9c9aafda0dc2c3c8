package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	appreport "github.com/Raulito1/collections-web/internal/application/report"
	"github.com/Raulito1/collections-web/internal/domain/report"
	"github.com/Raulito1/collections-web/internal/domain/session"
	"github.com/Raulito1/collections-web/internal/domain/shared"
)

// DashboardHandler serves the aging dashboard: the grid payload, bucket
// filter projections, report loads, cell edits, CSV export, and the
// QuickBooks connect flow.
type DashboardHandler struct {
	BaseHandler
	svc        *appreport.Service
	reconciler *appreport.Reconciler
	sessions   *session.Store
	returnTo   string
	logger     *zap.Logger
}

// NewDashboardHandler wires the dashboard handler. returnTo is the
// absolute address the accounting provider redirects back to.
func NewDashboardHandler(
	svc *appreport.Service,
	reconciler *appreport.Reconciler,
	sessions *session.Store,
	returnTo string,
	logger *zap.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		svc:        svc,
		reconciler: reconciler,
		sessions:   sessions,
		returnTo:   returnTo,
		logger:     logger.Named("dashboard"),
	}
}

// RegisterRoutes registers dashboard routes
func (h *DashboardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", h.Dashboard)
	rg.GET("/bucket/:slug", h.Dashboard)
	rg.GET("/export/ar-aging.csv", h.ExportCSV)
	rg.POST("/report/load", h.LoadReport)
	rg.POST("/report/cell-change", h.CellChange)
	rg.POST("/quickbooks/connect", h.ConnectQuickBooks)
	rg.GET("/quickbooks/connected", h.Connected)
}

// UserView is the signed-in identity as the dashboard header shows it.
type UserView struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Initials    string `json:"initials"`
}

// DashboardView is the grid payload for one projection of the current
// report.
type DashboardView struct {
	Columns       []report.Column           `json:"columns"`
	Rows          []report.Row              `json:"rows"`
	Buckets       []report.BucketDescriptor `json:"buckets"`
	GeneratedAt   string                    `json:"generated_at,omitempty"`
	ActiveBucket  *report.BucketDescriptor  `json:"active_bucket,omitempty"`
	ActionOptions []string                  `json:"action_options"`
	Messages      appreport.Messages        `json:"messages"`
	User          *UserView                 `json:"user,omitempty"`
}

// Dashboard serves the grid payload for / and /bucket/:slug. A slug that
// no bucket of the current report carries redirects to the unfiltered
// view rather than serving an empty grid.
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	slug := c.Param("slug")
	table, messages := h.svc.Snapshot()

	if slug != "" && report.StaleSlug(slug, table) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	view := h.buildView(table, messages, slug, c.Query("q"))
	h.Success(c, view)
}

// loadReportRequest selects the report date for a fetch.
type loadReportRequest struct {
	ReportDate string `json:"report_date" binding:"omitempty,datetime=2006-01-02"`
}

// LoadReport fetches and normalizes the report, then serves the fresh
// unfiltered projection. A backend failure keeps the previous table and
// surfaces a report error in the payload.
func (h *DashboardHandler) LoadReport(c *gin.Context) {
	var req loadReportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	if req.ReportDate == "" {
		req.ReportDate = time.Now().Format("2006-01-02")
	}

	if err := h.svc.Load(c.Request.Context(), req.ReportDate); err != nil {
		if errors.Is(err, shared.ErrSessionRequired) {
			h.HandleError(c, err)
			return
		}
		// Other fetch failures degrade: the previous table stays usable
		// behind the report error message in the payload.
	}

	table, messages := h.svc.Snapshot()
	h.Success(c, h.buildView(table, messages, "", ""))
}

// CellChange applies one grid edit through the reconciler and reports
// the settled cell value back to the grid.
func (h *DashboardHandler) CellChange(c *gin.Context) {
	var edit appreport.CellEdit
	if err := c.ShouldBindJSON(&edit); err != nil {
		h.BindError(c, err)
		return
	}

	result := h.reconciler.HandleCellChange(c.Request.Context(), edit)
	_, messages := h.svc.Snapshot()
	h.Success(c, gin.H{
		"result":   result,
		"messages": messages,
	})
}

// connectRequest optionally overrides the OAuth return address.
type connectRequest struct {
	ReturnTo string `json:"return_to" binding:"omitempty,url"`
}

// ConnectQuickBooks starts the accounting-provider OAuth flow and hands
// back the URL for whole-page navigation.
func (h *DashboardHandler) ConnectQuickBooks(c *gin.Context) {
	var req connectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	returnTo := req.ReturnTo
	if returnTo == "" {
		returnTo = h.returnTo
	}

	redirectURL, err := h.svc.ConnectRedirect(c.Request.Context(), returnTo)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"redirect_url": redirectURL})
}

// Connected consumes the one-shot result of the provider redirect and
// sends the browser back to the clean dashboard address. A missing ok
// parameter counts as success: older backend versions redirect without
// it after a completed connection.
func (h *DashboardHandler) Connected(c *gin.Context) {
	okParam := c.Query("ok")
	ok := okParam == "" || okParam == "true" || okParam == "1"
	h.svc.ApplyConnectResult(ok, c.Query("message"))
	c.Redirect(http.StatusFound, "/")
}

// ExportCSV streams the currently displayed projection as ar-aging.csv.
// The same slug and quick-filter parameters as the grid views apply.
func (h *DashboardHandler) ExportCSV(c *gin.Context) {
	table, _ := h.svc.Snapshot()
	if table == nil {
		h.HandleError(c, shared.ErrReportUnavailable)
		return
	}

	slug := c.Query("bucket")
	if slug != "" && report.StaleSlug(slug, table) {
		h.NotFound(c, "Unknown aging bucket")
		return
	}
	active := report.ResolveBucket(slug, table)
	columns := table.VisibleColumns(active)
	rows := applyQuickFilter(table.VisibleRows(active), c.Query("q"))

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="ar-aging.csv"`)

	w := csv.NewWriter(c.Writer)
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Header
	}
	if err := w.Write(header); err != nil {
		h.logger.Error("csv export failed", zap.Error(err))
		return
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = csvCell(row[col.Field], col.Kind)
		}
		if err := w.Write(record); err != nil {
			h.logger.Error("csv export failed", zap.Error(err))
			return
		}
	}
	w.Flush()
}

// buildView assembles one projection of the table.
func (h *DashboardHandler) buildView(table *report.Table, messages appreport.Messages, slug, quickFilter string) DashboardView {
	view := DashboardView{
		Columns:       []report.Column{},
		Rows:          []report.Row{},
		Buckets:       []report.BucketDescriptor{},
		ActionOptions: report.ActionTakenOptions,
		Messages:      messages,
	}

	if snapshot := h.sessions.Snapshot(); snapshot.Session != nil {
		user := snapshot.Session.User
		view.User = &UserView{
			DisplayName: user.DisplayName(),
			Email:       user.Email,
			AvatarURL:   user.AvatarSource(),
			Initials:    user.Initials(),
		}
	}

	if table == nil {
		return view
	}

	active := report.ResolveBucket(slug, table)
	view.Columns = table.VisibleColumns(active)
	view.Rows = applyQuickFilter(table.VisibleRows(active), quickFilter)
	view.Buckets = table.Buckets
	view.GeneratedAt = table.GeneratedAt
	view.ActiveBucket = active
	return view
}

// applyQuickFilter keeps rows with any cell containing the query,
// case-insensitive. An empty query keeps everything.
func applyQuickFilter(rows []report.Row, query string) []report.Row {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return rows
	}
	filtered := make([]report.Row, 0, len(rows))
	for _, row := range rows {
		for _, value := range row {
			if value == nil {
				continue
			}
			if strings.Contains(strings.ToLower(fmt.Sprintf("%v", value)), query) {
				filtered = append(filtered, row)
				break
			}
		}
	}
	return filtered
}

// amountPrinter renders currency amounts with grouping, e.g. 12,340.50.
var amountPrinter = message.NewPrinter(language.AmericanEnglish)

// csvCell renders one cell for the CSV export.
func csvCell(value any, kind string) string {
	switch v := value.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		if kind == "currency" {
			f, _ := v.Float64()
			return amountPrinter.Sprint(number.Decimal(f,
				number.MinFractionDigits(2),
				number.MaxFractionDigits(2),
			))
		}
		return v.String()
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
