package report

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Raulito1/collections-web/internal/domain/report"
	"github.com/Raulito1/collections-web/internal/domain/session"
	"github.com/Raulito1/collections-web/internal/domain/shared"
	"github.com/Raulito1/collections-web/internal/infrastructure/logger"
)

// requestLog returns the request-scoped logger carried in ctx by the
// HTTP middleware, or the fallback when the call did not come through a
// request (startup, tests).
func requestLog(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger.GetRequestID(ctx) != "" {
		return logger.FromContext(ctx)
	}
	return fallback
}

// Messages is the user-visible message state of the dashboard. Each
// field is cleared and set the way the operations below describe; empty
// string means no message.
type Messages struct {
	ConnectError   string `json:"connect_error,omitempty"`
	ConnectSuccess string `json:"connect_success,omitempty"`
	ReportError    string `json:"report_error,omitempty"`
	StatusMessage  string `json:"status_message,omitempty"`
	StatusError    string `json:"status_error,omitempty"`
}

// Service owns the current report table. The table is replaced
// wholesale on each successful fetch; the only cell-level mutations go
// through the status reconciler.
type Service struct {
	backend  report.Backend
	sessions *session.Store
	provider session.Provider
	logger   *zap.Logger

	mu       sync.Mutex
	table    *report.Table
	messages Messages

	// Fetch generation stamping: responses carrying a stale token are
	// discarded so a slow fetch cannot overwrite a newer one.
	issued  uint64
	applied uint64
}

// NewService wires the report service.
func NewService(backend report.Backend, sessions *session.Store, provider session.Provider, logger *zap.Logger) *Service {
	return &Service{
		backend:  backend,
		sessions: sessions,
		provider: provider,
		logger:   logger.Named("report"),
	}
}

// Table returns the current table, or nil before the first successful
// fetch.
func (s *Service) Table() *report.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// Snapshot returns the current table and messages together.
func (s *Service) Snapshot() (*report.Table, Messages) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table, s.messages
}

// Load fetches and normalizes the aging report for the given report
// date (YYYY-MM-DD, empty for the backend default). A fetch error keeps
// the previously loaded table usable behind a report error message.
func (s *Service) Load(ctx context.Context, reportDate string) error {
	token := s.sessions.AccessToken()
	if token == "" {
		s.mu.Lock()
		s.messages.ReportError = "Unable to load AR aging report."
		s.mu.Unlock()
		return shared.ErrSessionRequired
	}

	s.mu.Lock()
	s.issued++
	generation := s.issued
	s.messages.ReportError = ""
	s.mu.Unlock()

	raw, err := s.backend.ArAgingReport(ctx, token, reportDate)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation <= s.applied {
		// A newer fetch already resolved; this response is stale.
		requestLog(ctx, s.logger).Debug("discarding stale report fetch",
			zap.Uint64("generation", generation),
			zap.Uint64("applied", s.applied),
		)
		return nil
	}
	s.applied = generation
	if err != nil {
		requestLog(ctx, s.logger).Error("failed to load ar aging report", zap.Error(err))
		s.messages.ReportError = "Unable to load AR aging report."
		return err
	}

	s.table = report.Normalize(raw)
	s.messages.StatusMessage = ""
	s.messages.StatusError = ""
	return nil
}

// ConnectRedirect starts the accounting-provider OAuth flow: it ensures
// a usable bearer token (refreshing once when the store has none) and
// returns the redirect URL for whole-page navigation.
func (s *Service) ConnectRedirect(ctx context.Context, returnTo string) (string, error) {
	s.mu.Lock()
	s.messages.ConnectError = ""
	s.messages.ConnectSuccess = ""
	s.mu.Unlock()

	token := s.sessions.AccessToken()
	if token == "" {
		refreshed, err := s.provider.Refresh(ctx)
		if err == nil && refreshed != nil {
			token = refreshed.AccessToken
		}
	}
	if token == "" {
		s.mu.Lock()
		s.messages.ConnectError = "You need to sign in again before connecting QuickBooks."
		s.mu.Unlock()
		return "", shared.ErrSessionRequired
	}

	redirectURL, err := s.backend.LoginRedirect(ctx, token, returnTo)
	if err != nil {
		requestLog(ctx, s.logger).Error("failed to start quickbooks auth", zap.Error(err))
		s.mu.Lock()
		s.messages.ConnectError = "Unable to start QuickBooks connection. Please try again."
		s.mu.Unlock()
		return "", err
	}
	return redirectURL, nil
}

// ApplyConnectResult consumes the one-shot result of the provider
// redirect: success clears the stale table (it predates the new
// connection), failure surfaces a connect error.
func (s *Service) ApplyConnectResult(ok bool, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		if message == "" {
			message = "QuickBooks connected successfully."
		}
		s.messages.ConnectSuccess = message
		s.messages.ConnectError = ""
		s.table = nil
		return
	}
	if message == "" {
		message = "QuickBooks connection was not completed."
	}
	s.messages.ConnectError = message
	s.messages.ConnectSuccess = ""
}
